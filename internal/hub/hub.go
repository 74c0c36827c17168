// Package hub holds the connection/group registry behind the realtime
// notification fan-out. Groups come in two families: the single admins group
// and one group per ordinary user.
package hub

import "sync"

// Hub maps group names to the set of live connections, with a reverse index
// for O(1) removal. A connection belongs to at most one group for its
// lifetime. All methods are safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
	byConn map[*Conn]string
}

func New() *Hub {
	return &Hub{
		groups: make(map[string]map[*Conn]struct{}),
		byConn: make(map[*Conn]string),
	}
}

// Join adds the connection to the named group. Joining twice has no
// additional effect; joining a different group moves the connection.
func (h *Hub) Join(group string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.byConn[c]; ok {
		if prev == group {
			return
		}
		h.removeLocked(c, prev)
	}
	m := h.groups[group]
	if m == nil {
		m = make(map[*Conn]struct{})
		h.groups[group] = m
	}
	m[c] = struct{}{}
	h.byConn[c] = group
}

// Leave removes the connection from whatever group it was in. No-op when
// the connection was never joined.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.byConn[c]
	if !ok {
		return
	}
	h.removeLocked(c, group)
}

func (h *Hub) removeLocked(c *Conn, group string) {
	delete(h.byConn, c)
	m := h.groups[group]
	if m == nil {
		return
	}
	delete(m, c)
	if len(m) == 0 {
		delete(h.groups, group)
	}
}

// Publish delivers the event to every connection currently in the group.
// Delivery is best-effort and independent per connection: a saturated
// outbound queue drops the frame for that connection only.
func (h *Hub) Publish(group string, ev Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.deliver(ev)
	}
}

// Members reports the current size of a group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Connections reports the number of joined connections across all groups.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byConn)
}
