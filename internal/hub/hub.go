// Package hub maintains live connection and group membership and delivers
// alert events to connected clients. Delivery is best-effort and
// fire-and-forget: a disconnected target simply does not receive the
// payload, and there is no persisted inbox.
package hub

import (
	"log/slog"
	"sync"

	"creditwatch/internal/auth"
	"creditwatch/internal/routing"
)

// connection is one live client connection tracked by the hub. The send
// channel is drained by the transport's write pump; a full buffer drops the
// payload rather than blocking delivery.
type connection struct {
	id     string
	userID string
	send   chan []byte
	groups map[string]struct{}
}

// Hub tracks connection↔group membership and performs group- and
// user-addressed delivery. All membership mutations and delivery reads are
// serialized under one lock; contention is brief because sends are
// non-blocking channel writes.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*connection
	groups map[string]map[string]struct{} // group name -> connection ids
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		conns:  make(map[string]*connection),
		groups: make(map[string]map[string]struct{}),
	}
}

// OnConnect registers a connection and joins it to the role group of every
// role the principal holds. A new connection id always starts with a fresh
// membership set; joining a group twice is a no-op.
func (h *Hub) OnConnect(connID string, principal auth.Principal, send chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &connection{
		id:     connID,
		userID: principal.UserID,
		send:   send,
		groups: make(map[string]struct{}),
	}
	h.conns[connID] = c

	for _, role := range principal.Roles {
		h.joinLocked(c, routing.RoleGroup(role))
	}

	slog.Info("Client connected to notification hub",
		"connection_id", connID,
		"user_id", principal.UserID,
		"roles", principal.Roles,
	)
}

// OnDisconnect removes the connection from every group and forgets it.
// Calling it twice for the same id is safe.
func (h *Hub) OnDisconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	for group := range c.groups {
		h.leaveLocked(c, group)
	}
	delete(h.conns, connID)
	close(c.send)

	slog.Info("Client disconnected from notification hub",
		"connection_id", connID,
		"user_id", c.userID,
	)
}

// JoinAccountGroup subscribes the connection to one account's alerts.
// Unknown connections and repeated joins are no-ops.
func (h *Hub) JoinAccountGroup(connID string, accountID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	h.joinLocked(c, routing.AccountGroup(accountID))

	slog.Info("Client joined account group",
		"connection_id", connID,
		"user_id", c.userID,
		"account_id", accountID,
	)
}

// LeaveAccountGroup drops the connection's subscription to one account.
// Unknown connections and absent memberships are no-ops.
func (h *Hub) LeaveAccountGroup(connID string, accountID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	h.leaveLocked(c, routing.AccountGroup(accountID))

	slog.Info("Client left account group",
		"connection_id", connID,
		"user_id", c.userID,
		"account_id", accountID,
	)
}

// DeliverToGroups sends the event to every connection in any of the named
// groups. A connection in several of the groups receives the payload at
// most once per call. Returns the number of connections the payload was
// handed to.
func (h *Hub) DeliverToGroups(groups []string, event Event) int {
	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode hub event", "event", event.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make(map[string]*connection)
	for _, group := range groups {
		for connID := range h.groups[group] {
			if c, ok := h.conns[connID]; ok {
				targets[connID] = c
			}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.deliver(data) {
			delivered++
		}
	}
	return delivered
}

// DeliverToUser sends the event to every connection authenticated as the
// given user.
func (h *Hub) DeliverToUser(userID string, event Event) int {
	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode hub event", "event", event.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*connection, 0, 1)
	for _, c := range h.conns {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.deliver(data) {
			delivered++
		}
	}
	return delivered
}

// Broadcast sends the event to every live connection.
func (h *Hub) Broadcast(event Event) int {
	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode hub event", "event", event.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.deliver(data) {
			delivered++
		}
	}
	return delivered
}

// DeliverToConnection sends the event to one connection, addressing the
// caller of a hub command. Unknown ids are a no-op.
func (h *Hub) DeliverToConnection(connID string, event Event) bool {
	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode hub event", "event", event.Event, "error", err)
		return false
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.deliver(data)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Groups returns the names of the groups the connection currently belongs
// to, or nil for an unknown connection.
func (h *Hub) Groups(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return nil
	}
	groups := make([]string, 0, len(c.groups))
	for g := range c.groups {
		groups = append(groups, g)
	}
	return groups
}

// deliver hands the payload to the connection's write pump without
// blocking. A full buffer means the client is too slow; the payload is
// dropped, never retried. A disconnect may close the channel between the
// membership snapshot and the send, so the send panic is absorbed and
// counted as a miss.
func (c *connection) deliver(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		slog.Debug("Dropping event for slow client", "connection_id", c.id)
		return false
	}
}

// joinLocked adds the connection to a group. Caller holds the write lock.
func (h *Hub) joinLocked(c *connection, group string) {
	if _, ok := c.groups[group]; ok {
		return
	}
	c.groups[group] = struct{}{}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[c.id] = struct{}{}
}

// leaveLocked removes the connection from a group, discarding the group
// once empty. Caller holds the write lock.
func (h *Hub) leaveLocked(c *connection, group string) {
	delete(c.groups, group)
	if members, ok := h.groups[group]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}
