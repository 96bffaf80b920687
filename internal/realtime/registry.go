package realtime

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ashureev/quotechat/internal/metrics"
	"github.com/coder/websocket"
)

// Registry tracks live connections, who owns them and which conversation
// rooms they have joined. It is process-local.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*Connection            // connID -> connection
	owners    map[string]string                 // connID -> participantID
	rooms     map[string]map[string]*Connection // conversationID -> connID -> connection
	connRooms map[string]map[string]struct{}    // connID -> set of conversationIDs
	log       *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:     make(map[string]*Connection),
		owners:    make(map[string]string),
		rooms:     make(map[string]map[string]*Connection),
		connRooms: make(map[string]map[string]struct{}),
		log:       logger,
	}
}

// Attach makes conn known to the registry. Attaching twice is a no-op.
func (r *Registry) Attach(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; ok {
		return
	}
	r.conns[conn.ID] = conn
	if conn.Participant.ID != "" {
		r.owners[conn.ID] = conn.Participant.ID
	}
	metrics.ConnectionsActive.WithLabelValues(conn.Kind).Inc()
}

// Join records conn as a member of conversationID owned by participantID.
// Joining the same room twice has no additional effect. It returns false if
// conn is not attached.
func (r *Registry) Join(conn *Connection, conversationID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; !ok {
		return false
	}
	if participantID != "" {
		r.owners[conn.ID] = participantID
	}

	room := r.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[conversationID] = room
	}
	room[conn.ID] = conn

	memberships := r.connRooms[conn.ID]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.connRooms[conn.ID] = memberships
	}
	memberships[conversationID] = struct{}{}
	return true
}

// Leave removes conn and all of its room memberships. It returns false if
// conn was already gone, so duplicate disconnect notices are harmless.
func (r *Registry) Leave(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; !ok {
		return false
	}
	for conversationID := range r.connRooms[conn.ID] {
		if room := r.rooms[conversationID]; room != nil {
			delete(room, conn.ID)
			if len(room) == 0 {
				delete(r.rooms, conversationID)
			}
		}
	}
	delete(r.connRooms, conn.ID)
	delete(r.owners, conn.ID)
	delete(r.conns, conn.ID)
	metrics.ConnectionsActive.WithLabelValues(conn.Kind).Dec()
	return true
}

// MembersOf returns a snapshot of the connections joined to conversationID.
func (r *Registry) MembersOf(conversationID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[conversationID]
	members := make([]*Connection, 0, len(room))
	for _, conn := range room {
		members = append(members, conn)
	}
	return members
}

// Connections returns a snapshot of every attached connection.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Rooms returns the sorted conversation ids conn has joined.
func (r *Registry) Rooms(conn *Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.connRooms[conn.ID]))
	for id := range r.connRooms[conn.ID] {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	return rooms
}

// Owner returns the participant id recorded for conn, if any.
func (r *Registry) Owner(conn *Connection) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[conn.ID]
}

// Len returns the number of attached connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close closes every tracked connection and clears registry state.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
		metrics.ConnectionsActive.WithLabelValues(conn.Kind).Dec()
	}
	r.conns = make(map[string]*Connection)
	r.owners = make(map[string]string)
	r.rooms = make(map[string]map[string]*Connection)
	r.connRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
	r.log.Info("Registry closed", "connections", len(conns))
}
