// internal/handlers/rooms.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// wsEnvelope is the wire shape of every gateway message, inbound and
// outbound: a type tag plus a payload.
type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// roomConn is one subscribed WebSocket connection. The out channel is
// buffered so broadcasts never block the session lock; a connection too
// slow to drain its buffer loses messages and resyncs from the next
// full state broadcast.
type roomConn struct {
	userID uuid.UUID
	out    chan wsEnvelope
}

// Room is the set of connections subscribed to one session.
type Room struct {
	mu    sync.Mutex
	conns map[*roomConn]struct{}
}

func newRoom() *Room {
	return &Room{conns: make(map[*roomConn]struct{})}
}

func (r *Room) add(c *roomConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// remove drops one connection and reports whether the room is now empty.
func (r *Room) remove(c *roomConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
	return len(r.conns) == 0
}

// send fans the envelope out to every subscribed connection without
// blocking.
func (r *Room) send(env wsEnvelope, log *logrus.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.conns {
		select {
		case c.out <- env:
		default:
			if log != nil {
				log.WithField("user", c.userID).Warn("gateway: dropping message for slow consumer")
			}
		}
	}
}

// RoomStore maps session ids to their rooms.
type RoomStore struct {
	log   *logrus.Logger
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

func NewRoomStore(log *logrus.Logger) *RoomStore {
	return &RoomStore{
		log:   log,
		rooms: make(map[uuid.UUID]*Room),
	}
}

// room returns the session's room, creating it on first subscription.
func (rs *RoomStore) room(sessionID uuid.UUID) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.rooms[sessionID]
	if !ok {
		r = newRoom()
		rs.rooms[sessionID] = r
	}
	return r
}

// drop removes a connection from its room and garbage-collects the room
// once empty. Dropping membership says nothing about session seating:
// a disconnected player stays seated until an explicit leave.
func (rs *RoomStore) drop(sessionID uuid.UUID, c *roomConn) {
	rs.mu.Lock()
	r, ok := rs.rooms[sessionID]
	rs.mu.Unlock()
	if !ok {
		return
	}
	if r.remove(c) {
		rs.mu.Lock()
		if cur, ok := rs.rooms[sessionID]; ok && cur == r {
			delete(rs.rooms, sessionID)
		}
		rs.mu.Unlock()
	}
}

// Broadcast is the session manager's BroadcastFunc: it is invoked while
// the session lock is held, so it must not block.
func (rs *RoomStore) Broadcast(sessionID uuid.UUID, messageType string, data interface{}) {
	rs.mu.Lock()
	r, ok := rs.rooms[sessionID]
	rs.mu.Unlock()
	if !ok {
		return
	}
	r.send(wsEnvelope{Type: messageType, Data: data}, rs.log)
}
