// internal/handlers/game_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jmlee487/gambit/internal/auth"
	"github.com/jmlee487/gambit/internal/models"
	"github.com/jmlee487/gambit/internal/session"
)

// wireEnvelope mirrors the outbound frame shape for decoding in tests.
type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialGame(t *testing.T, ctx context.Context, baseURL string, sessionID, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := auth.CreateJWT(userID.String())
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	hdr := http.Header{}
	hdr.Set("Cookie", "auth_token="+token)

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/game/ws/" + sessionID.String()
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"game"},
		HTTPHeader:   hdr,
	})
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return env
}

func expectFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) wireEnvelope {
	t.Helper()
	env := readFrame(t, ctx, conn)
	if env.Type != frameType {
		t.Fatalf("expected %s frame, got %s (%s)", frameType, env.Type, env.Data)
	}
	return env
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frame interface{}) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func decodeState(t *testing.T, env wireEnvelope) models.SessionState {
	t.Helper()
	var state models.SessionState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestGameWSResyncAndCommandFlow(t *testing.T) {
	srv := newTestServer(t)
	host := uuid.New()
	guest := uuid.New()

	sess := srv.Sessions.CreateSession("othello", host, "host")
	if _, err := srv.Sessions.JoinSession(sess.ID, guest, "guest"); err != nil {
		t.Fatalf("seat guest: %v", err)
	}

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialGame(t, ctx, ts.URL, sess.ID, host)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// A fresh connection resyncs from the current state before any
	// incremental broadcast.
	state := decodeState(t, expectFrame(t, ctx, conn, "game:state"))
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 seated players in resync, got %d", len(state.Players))
	}
	if state.Status != models.SessionWaiting {
		t.Fatalf("expected waiting session, got %s", state.Status)
	}

	// Host readies over the socket: the command relay and the new state
	// come back in mutation order.
	sendFrame(t, ctx, conn, map[string]interface{}{
		"type":    "game:command",
		"command": map[string]interface{}{"type": "ready"},
	})
	expectFrame(t, ctx, conn, "game:command")
	expectFrame(t, ctx, conn, "game:state")

	// Guest readies through the manager directly; the broadcast still
	// reaches this socket and starts the session.
	if _, err := srv.Sessions.AddCommand(sess.ID, models.GameCommand{
		Type:     session.CmdReady,
		PlayerID: guest,
	}); err != nil {
		t.Fatalf("guest ready: %v", err)
	}
	expectFrame(t, ctx, conn, "game:command")
	state = decodeState(t, expectFrame(t, ctx, conn, "game:state"))
	if state.Status != models.SessionPlaying {
		t.Fatalf("expected playing after both ready, got %s", state.Status)
	}

	// Host opens with a legal move. Black opens, and the host holds the
	// first seat.
	sendFrame(t, ctx, conn, map[string]interface{}{
		"type": "game:command",
		"command": map[string]interface{}{
			"type":    "move",
			"payload": map[string]interface{}{"row": 2, "col": 3},
		},
	})
	expectFrame(t, ctx, conn, "game:command")
	state = decodeState(t, expectFrame(t, ctx, conn, "game:state"))
	if state.Data.Othello == nil {
		t.Fatalf("expected othello data after the opening move")
	}
	if got := state.Players[0].Score; got != 4 {
		t.Fatalf("expected opener score 4, got %d", got)
	}

	// Out of turn now; the rejection reaches only the submitter as a
	// game:error frame, with no broadcast.
	sendFrame(t, ctx, conn, map[string]interface{}{
		"type": "game:command",
		"command": map[string]interface{}{
			"type":    "move",
			"payload": map[string]interface{}{"row": 2, "col": 2},
		},
	})
	expectFrame(t, ctx, conn, "game:error")

	// Ping keeps the socket warm without touching the session.
	sendFrame(t, ctx, conn, map[string]interface{}{"type": "ping"})
	expectFrame(t, ctx, conn, "pong")
}

func TestGameWSLeaveUnsubscribesFromRoom(t *testing.T) {
	srv := newTestServer(t)
	host := uuid.New()
	guest := uuid.New()

	sess := srv.Sessions.CreateSession("othello", host, "host")
	if _, err := srv.Sessions.JoinSession(sess.ID, guest, "guest"); err != nil {
		t.Fatalf("seat guest: %v", err)
	}

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialGame(t, ctx, ts.URL, sess.ID, guest)
	defer conn.Close(websocket.StatusNormalClosure, "")

	state := decodeState(t, expectFrame(t, ctx, conn, "game:state"))
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 seated players in resync, got %d", len(state.Players))
	}

	// The departing player still sees the state broadcast carrying their
	// own leave, then nothing more from the room.
	sendFrame(t, ctx, conn, map[string]interface{}{"type": "game:leave"})
	state = decodeState(t, expectFrame(t, ctx, conn, "game:state"))
	if len(state.Players) != 1 {
		t.Fatalf("expected 1 remaining player after leave, got %d", len(state.Players))
	}

	// A ping round trip through the same read loop guarantees the leave
	// dispatch, including the room unsubscribe, has completed.
	sendFrame(t, ctx, conn, map[string]interface{}{"type": "ping"})
	expectFrame(t, ctx, conn, "pong")

	// Room traffic after the leave must not reach the departed player
	// even though the socket is still open.
	if _, err := srv.Sessions.AddCommand(sess.ID, models.GameCommand{
		Type:     session.CmdReady,
		PlayerID: host,
	}); err != nil {
		t.Fatalf("host ready: %v", err)
	}

	sendFrame(t, ctx, conn, map[string]interface{}{"type": "ping"})
	if env := readFrame(t, ctx, conn); env.Type != "pong" {
		t.Fatalf("expected pong as the next frame after leaving, got %s (%s)", env.Type, env.Data)
	}
}

func TestGameWSRejectsBadHandshake(t *testing.T) {
	srv := newTestServer(t)
	host := uuid.New()
	sess := srv.Sessions.CreateSession("othello", host, "host")

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Unknown session: refused before the upgrade.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws/" + uuid.New().String()
	if _, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"game"},
	}); err == nil {
		t.Fatalf("expected dial to an unknown session to fail")
	}

	// Missing credential: the server closes with its auth code after the
	// upgrade, so the first read fails.
	wsURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws/" + sess.ID.String()
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"game"},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatalf("expected unauthenticated connection to be closed")
	} else if status := websocket.CloseStatus(err); status != InvalidAuthTokenError {
		t.Fatalf("expected close code %d, got %d (%v)", InvalidAuthTokenError, status, err)
	}
}
