// internal/session/manager_test.go
package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlee487/gambit/internal/models"
)

// collector records broadcasts instead of sending them over WS.
type collector struct {
	mu       sync.Mutex
	messages []collected
}

type collected struct {
	sessionID   uuid.UUID
	messageType string
	data        interface{}
}

func (c *collector) fn(sessionID uuid.UUID, messageType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, collected{sessionID, messageType, data})
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.messageType
	}
	return out
}

func newTestManager() (*Manager, *collector) {
	m := NewManager(nil)
	c := &collector{}
	m.BroadcastFn = c.fn
	return m, c
}

func TestCreateSessionSeatsHost(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()

	s := m.CreateSession("othello", host, "alice")

	state, err := m.GetState(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, state.Status)
	require.Len(t, state.Players, 1)
	assert.Equal(t, host, state.Players[0].PlayerID)
	assert.True(t, state.Players[0].IsHost)
	assert.Equal(t, "alice", state.Players[0].DisplayName)

	// The host seat is a recorded command like any other.
	cmds, _, err := m.Logs(s.ID)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdJoin, cmds[0].Type)
}

func TestJoinIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")

	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	state, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)
	assert.Len(t, state.Players, 2)

	// The re-join was short-circuited, not recorded.
	cmds, _, err := m.Logs(s.ID)
	require.NoError(t, err)
	assert.Len(t, cmds, 2)
}

func TestReadyStartsSession(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")
	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: host})
	require.NoError(t, err)
	state, err := m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: p2})
	require.NoError(t, err)

	assert.Equal(t, models.SessionPlaying, state.Status)

	_, events, err := m.Logs(s.ID)
	require.NoError(t, err)
	assert.Equal(t, EventSessionStarted, events[len(events)-1].Type)
}

func TestBroadcastOrderFollowsMutationOrder(t *testing.T) {
	m, c := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")
	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: host})
	require.NoError(t, err)

	// Client commands relay before the state they produced.
	assert.Equal(t, []string{"game:state", "game:state", "game:command", "game:state"}, c.types())
}

func TestRejectedCommandStaysLogged(t *testing.T) {
	m, c := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")

	_, err := m.AddCommand(s.ID, models.GameCommand{Type: CmdScore, PlayerID: uuid.New(), Payload: map[string]interface{}{"points": 5.0}})
	assert.ErrorIs(t, err, models.ErrNotFound)

	cmds, events, err := m.Logs(s.ID)
	require.NoError(t, err)
	assert.Len(t, cmds, 2, "rejected command must stay in the log")
	assert.Equal(t, EventCommandRejected, events[len(events)-1].Type)

	// Nothing was relayed or broadcast for the rejection.
	for _, mt := range c.types()[1:] {
		assert.NotEqual(t, "game:command", mt)
	}
}

func TestLeaveHandsOffHostAndEndsWhenEmpty(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")
	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	state, err := m.LeaveSession(s.ID, host)
	require.NoError(t, err)
	require.Len(t, state.Players, 1)
	assert.True(t, state.Players[0].IsHost, "departing host hands off")

	state, err = m.LeaveSession(s.ID, p2)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, state.Status)
}

func TestFinishedSessionRejectsMutations(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")

	_, err := m.EndSession(s.ID)
	require.NoError(t, err)

	_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: host})
	assert.ErrorIs(t, err, models.ErrConflict)
	_, err = m.EndSession(s.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	// Reads keep working, and a seated player can still resync via join.
	_, err = m.GetState(s.ID)
	assert.NoError(t, err)
	state, err := m.JoinSession(s.ID, host, "alice")
	assert.NoError(t, err)
	assert.Equal(t, models.SessionFinished, state.Status)
}

func TestOnFinishFires(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")

	var finished []uuid.UUID
	m.OnFinish = func(id uuid.UUID, final models.SessionState) {
		finished = append(finished, id)
		assert.Equal(t, models.SessionFinished, final.Status)
	}

	_, err := m.EndSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{s.ID}, finished)
}

func TestUpdateStateMerges(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")

	paused := models.SessionPaused
	state, err := m.UpdateState(s.ID, StatePatch{Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, state.Status)

	_, events, err := m.Logs(s.ID)
	require.NoError(t, err)
	assert.Equal(t, EventStateUpdated, events[len(events)-1].Type)
}

func TestUnknownSession(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.GetState(uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = m.JoinSession(uuid.New(), uuid.New(), "x")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReplayReproducesState(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")
	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	for _, pid := range []uuid.UUID{host, p2} {
		_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: pid})
		require.NoError(t, err)
	}
	_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdScore, PlayerID: host, Payload: map[string]interface{}{"points": 3.0}})
	require.NoError(t, err)

	// A rejected command in the log must not disturb the replay.
	m.AddCommand(s.ID, models.GameCommand{Type: CmdScore, PlayerID: uuid.New(), Payload: map[string]interface{}{"points": 9.0}})

	live, err := m.GetState(s.ID)
	require.NoError(t, err)
	cmds, _, err := m.Logs(s.ID)
	require.NoError(t, err)

	replayed := Replay(cmds, nil)
	assert.Equal(t, live.Status, replayed.Status)
	require.Len(t, replayed.Players, 2)
	assert.Equal(t, live.Players, replayed.Players)
}

func TestCommandTimestampsMonotone(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()
	s := m.CreateSession("othello", host, "alice")
	p2 := uuid.New()
	_, err := m.JoinSession(s.ID, p2, "bob")
	require.NoError(t, err)

	// A client-supplied timestamp in the past is clamped forward.
	_, err = m.AddCommand(s.ID, models.GameCommand{Type: CmdReady, PlayerID: host, Timestamp: 1})
	require.NoError(t, err)

	cmds, _, err := m.Logs(s.ID)
	require.NoError(t, err)
	for i := 1; i < len(cmds); i++ {
		assert.GreaterOrEqual(t, cmds[i].Timestamp, cmds[i-1].Timestamp)
	}
}
