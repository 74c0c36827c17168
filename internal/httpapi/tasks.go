package httpapi

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/tasks"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	listed, err := s.taskSvc.List(r.Context(), ident, filterFromQuery(r.URL.Query()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listed)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())

	var in tasks.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	created, err := s.taskSvc.Create(r.Context(), ident, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.taskSvc.Get(r.Context(), ident, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	// The non-admin gate checks which keys the client sent, so the patch
	// stays a raw field map. An empty body is an empty patch.
	fields := map[string]any{}
	if err := decodeJSON(r, &fields); err != nil && err != errEmptyBody {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	updated, err := s.taskSvc.Update(r.Context(), ident, id, fields)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.taskSvc.Delete(r.Context(), ident, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_task_id", "task id must be a positive integer")
		return 0, false
	}
	return id, true
}

// filterFromQuery builds the listing filter. Unparseable values degrade to
// the filter not being applied, never to an error response.
func filterFromQuery(q url.Values) tasks.Filter {
	f := tasks.Filter{
		ApprovalStatus: q.Get("approval_status"),
		DueKeyword:     q.Get("due_date"),
	}
	if raw := q.Get("priority"); raw != "" {
		if p := tasks.Priority(raw); p.Valid() {
			f.Priority = &p
		}
	}
	if raw := q.Get("assigned_to"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.AssignedTo = &id
		}
	}
	if raw := q.Get("assigned_by"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.AssignedBy = &id
		}
	}
	if raw := q.Get("is_completed"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			f.IsCompleted = &b
		}
	}
	return f
}
