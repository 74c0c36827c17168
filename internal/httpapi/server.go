package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/config"
	"github.com/mircoferri/taskhub/internal/directory"
	"github.com/mircoferri/taskhub/internal/hub"
	"github.com/mircoferri/taskhub/internal/identity"
	"github.com/mircoferri/taskhub/internal/observability"
	"github.com/mircoferri/taskhub/internal/tasks"
)

type Server struct {
	cfg       config.Config
	resolver  *auth.Resolver
	taskSvc   *tasks.Service
	directory *directory.Service
	hub       *hub.Hub
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, resolver *auth.Resolver, taskSvc *tasks.Service, dir *directory.Service, h *hub.Hub, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		resolver:  resolver,
		taskSvc:   taskSvc,
		directory: dir,
		hub:       h,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot ride a user's token.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	// The streaming endpoint authenticates via query parameter, before any
	// upgrade, so it sits outside the header middleware.
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.resolver))
		r.Route("/api", func(r chi.Router) {
			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleCreateTask)
			r.Get("/tasks/{id}", s.handleGetTask)
			r.Patch("/tasks/{id}", s.handleUpdateTask)
			r.Put("/tasks/{id}", s.handleUpdateTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)

			r.Get("/users", s.handleUserList)
			r.Get("/admins", s.handleAdminList)
			r.Get("/me", s.handleMe)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.Connections(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, auth.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, tasks.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, tasks.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, identity.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "directory_misconfigured", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
