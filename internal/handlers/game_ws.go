// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/middleware"
	"github.com/jmlee487/gambit/internal/models"
)

// gatewayMessage is the inbound frame shape: game:join and game:leave
// carry an optional payload, game:command wraps the command to record.
type gatewayMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Command *commandBody           `json:"command,omitempty"`
}

type commandBody struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// GameWSHandler upgrades the connection for a session's realtime feed.
// It authenticates the handshake once, subscribes the connection to the
// session's room, sends the current state, and then pumps messages both
// ways until the socket closes. Closing the socket only drops room
// membership; the player keeps their seat.
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "session_id")
	if err != nil {
		http.Error(w, "invalid session_id", http.StatusBadRequest)
		return
	}
	if _, err := s.Sessions.GetState(sessionID); err != nil {
		writeError(w, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error for session %s: %v", sessionID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler exit")

	if c.Subprotocol() != "game" {
		c.Close(BadSubprotocolError, "client must speak the game subprotocol")
		return
	}

	userID, err := authenticate(r)
	if err != nil {
		s.Logger.Warnf("websocket auth failed for session %s: %v", sessionID, err)
		c.Close(InvalidAuthTokenError, "authentication failed")
		return
	}
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &roomConn{userID: userID, out: make(chan wsEnvelope, 32)}
	room := s.rooms.room(sessionID)
	room.add(conn)
	defer s.rooms.drop(sessionID, conn)

	// Current state first, so a reconnecting client resyncs before any
	// incremental broadcast reaches it.
	if state, err := s.Sessions.GetState(sessionID); err == nil {
		conn.out <- wsEnvelope{Type: "game:state", Data: state}
	}

	go writePump(ctx, cancel, c, conn, s.Logger)
	s.readPump(ctx, c, conn, sessionID)

	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
}

// readPump reads frames until the socket closes and routes them to the
// session manager.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *roomConn, sessionID uuid.UUID) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.Logger.Debugf("websocket closed normally for user %s in session %s", conn.userID, sessionID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				s.Logger.Warnf("websocket read error for user %s in session %s: %v", conn.userID, sessionID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg gatewayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, "invalid JSON frame")
			continue
		}
		s.dispatch(ctx, conn, sessionID, msg)
	}
}

// dispatch routes one inbound frame. Rejections reach only the
// submitter as game:error; accepted mutations reach the whole room via
// the manager's broadcasts.
func (s *Server) dispatch(ctx context.Context, conn *roomConn, sessionID uuid.UUID, msg gatewayMessage) {
	switch msg.Type {
	case "game:join":
		displayName, _ := msg.Payload["displayName"].(string)
		if displayName == "" {
			displayName = s.displayName(ctx, conn.userID)
		}
		if _, err := s.Sessions.JoinSession(sessionID, conn.userID, displayName); err != nil {
			s.sendError(conn, err.Error())
		}

	case "game:leave":
		if _, err := s.Sessions.LeaveSession(sessionID, conn.userID); err != nil {
			s.sendError(conn, err.Error())
			return
		}
		// An explicit leave also unsubscribes from the room, so the
		// departed player stops receiving broadcasts even while the
		// socket stays open.
		s.rooms.drop(sessionID, conn)

	case "game:command":
		if msg.Command == nil || msg.Command.Type == "" {
			s.sendError(conn, "missing command")
			return
		}
		// PlayerID is stamped server-side from the authenticated
		// handshake; a client cannot submit for another seat.
		cmd := models.GameCommand{
			Type:     msg.Command.Type,
			PlayerID: conn.userID,
			Payload:  msg.Command.Payload,
		}
		if _, err := s.Sessions.AddCommand(sessionID, cmd); err != nil {
			s.sendError(conn, err.Error())
		}

	case "ping":
		select {
		case conn.out <- wsEnvelope{Type: "pong"}:
		default:
		}

	default:
		s.sendError(conn, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// sendError delivers a game:error frame to one connection only.
func (s *Server) sendError(conn *roomConn, message string) {
	select {
	case conn.out <- wsEnvelope{Type: "game:error", Data: map[string]string{"message": message}}:
	default:
		s.Logger.WithField("user", conn.userID).Warn("gateway: dropping error for slow consumer")
	}
}

// writePump drains the connection's out channel onto the socket. A write
// failure cancels the connection context, which also stops the reader.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *roomConn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-conn.out:
			msgBytes, err := json.Marshal(env)
			if err != nil {
				logger.Errorf("marshal gateway message (%s): %v", env.Type, err)
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, msgBytes)
			writeCancel()
			if err != nil {
				logger.Debugf("websocket write failed for user %s: %v", conn.userID, err)
				cancel()
				return
			}
		}
	}
}
