package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/mircoferri/taskhub/internal/hub"
)

// handleWS is the authenticated channel gateway. The token arrives as a
// query parameter; anonymous principals are rejected before the upgrade and
// are therefore never registered in any group.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ident := s.resolver.Resolve(r.Context(), r.URL.Query().Get("token"))
	if !ident.Authenticated {
		s.metrics.ConnectionEvents.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusUnauthorized, "unauthorized", "a valid token query parameter is required")
		return
	}

	// Group membership is computed once at connect time; a server-side role
	// change requires a new connection to take effect.
	group := hub.UserGroup(ident.UserID)
	if ident.IsAdmin() {
		group = hub.AdminsGroup
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	handle := hub.NewConn(s.cfg.WSSendBuffer)
	handle.OnDrop(func() {
		s.metrics.WSWriteErrors.WithLabelValues("queue_full").Inc()
	})

	s.hub.Join(group, handle)
	s.metrics.ConnectionEvents.WithLabelValues("joined").Inc()
	s.metrics.ActiveConnections.Set(float64(s.hub.Connections()))
	defer func() {
		handle.Close()
		s.hub.Leave(handle)
		s.metrics.ConnectionEvents.WithLabelValues("closed").Inc()
		s.metrics.ActiveConnections.Set(float64(s.hub.Connections()))
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Unblock the read loop when the writer tears the connection down.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-handle.Outbound():
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
					cancel()
					return
				}
				s.metrics.WSMessages.WithLabelValues("outbound").Inc()
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	// No inbound protocol is defined beyond the handshake: client frames
	// are read to keep control frames flowing, then discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		s.metrics.WSMessages.WithLabelValues("inbound").Inc()
	}

	cancel()
	<-writerDone
}
