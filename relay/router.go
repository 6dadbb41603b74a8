package relay

import (
	"sync"
)

// Router coordinates websocket sessions and conversation rooms.
// Authenticated users get at most one active socket; fan-out to a
// conversation reaches every member currently joined to its room.
type Router struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // sessionID -> connection
	userSessions map[string]string                 // userID -> sessionID
	rooms        map[string]map[string]*Connection // conversationID -> sessionID -> connection
	sessionRooms map[string]map[string]struct{}    // sessionID -> set of conversationIDs
}

func NewRouter() *Router {
	return &Router{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]string),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a connection. If the user already has a session, the old
// one is swapped out and closed to enforce one active socket per user.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if conn.Authenticated() {
		if existingID, ok := r.userSessions[conn.UserID]; ok {
			if existing := r.sessions[existingID]; existing != nil {
				previous = existing
				r.detachLocked(existingID)
			}
		}
		r.userSessions[conn.UserID] = conn.ID
	}

	r.sessions[conn.ID] = conn
	r.sessionRooms[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	if previous != nil {
		previous.Close(4000, "session replaced")
	}
}

// Detach removes the connection from every room and forgets the session.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

func (r *Router) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	for roomID := range r.sessionRooms[sessionID] {
		delete(r.rooms[roomID], sessionID)
		if len(r.rooms[roomID]) == 0 {
			delete(r.rooms, roomID)
		}
	}

	delete(r.sessionRooms, sessionID)
	delete(r.sessions, sessionID)

	if conn.Authenticated() && r.userSessions[conn.UserID] == sessionID {
		delete(r.userSessions, conn.UserID)
	}
}

func (r *Router) Join(conn *Connection, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[conn.ID]; !ok {
		return
	}

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*Connection)
	}
	r.rooms[roomID][conn.ID] = conn
	r.sessionRooms[conn.ID][roomID] = struct{}{}
}

func (r *Router) Leave(conn *Connection, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms[roomID], conn.ID)
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
	if rooms, ok := r.sessionRooms[conn.ID]; ok {
		delete(rooms, roomID)
	}
}

// Broadcast sends payload to every connection currently in the room.
func (r *Router) Broadcast(roomID string, payload []byte) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.rooms[roomID]))
	for _, conn := range r.rooms[roomID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Send(payload)
	}
}

// SendToUser delivers payload to the user's active socket, if any.
func (r *Router) SendToUser(userID string, payload []byte) {
	r.mu.RLock()
	var conn *Connection
	if sessionID, ok := r.userSessions[userID]; ok {
		conn = r.sessions[sessionID]
	}
	r.mu.RUnlock()

	if conn != nil {
		_ = conn.Send(payload)
	}
}

// InRoom reports whether the connection has joined the room.
func (r *Router) InRoom(conn *Connection, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][conn.ID]
	return ok
}
