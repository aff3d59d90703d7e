// internal/matchmaking/processor_test.go
package matchmaking

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmlee487/gambit/internal/models"
)

// stubMaterializer records lobby creation instead of building real
// lobbies.
type stubMaterializer struct {
	mu         sync.Mutex
	created    map[uuid.UUID][]Entry
	discarded  []uuid.UUID
	failCreate bool
	onCreate   func() // runs inside CreateLobby, before it returns
}

func newStubMaterializer() *stubMaterializer {
	return &stubMaterializer{created: make(map[uuid.UUID][]Entry)}
}

func (m *stubMaterializer) CreateLobby(gameType string, members []Entry) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return uuid.Nil, fmt.Errorf("boom")
	}
	if m.onCreate != nil {
		m.onCreate()
	}
	id := uuid.New()
	m.created[id] = members
	return id, nil
}

func (m *stubMaterializer) DiscardLobby(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = append(m.discarded, id)
}

func (m *stubMaterializer) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func TestQueueJoinRejectsDuplicate(t *testing.T) {
	store := NewQueueStore()
	player := uuid.New()

	_, err := store.Join(player, 1000, "othello")
	require.NoError(t, err)

	_, err = store.Join(player, 1000, "othello")
	assert.ErrorIs(t, err, models.ErrConflict)

	// A different game type is a separate queue.
	_, err = store.Join(player, 1000, "chess")
	assert.NoError(t, err)
}

func TestQueueLeave(t *testing.T) {
	store := NewQueueStore()
	player := uuid.New()

	e, err := store.Join(player, 1000, "othello")
	require.NoError(t, err)

	cancelled, err := store.Leave(player)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{e.ID}, cancelled)

	_, err = store.Leave(player)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.Status(player)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestQueueStatus(t *testing.T) {
	store := NewQueueStore()
	p1, p2 := uuid.New(), uuid.New()

	_, err := store.Join(p1, 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(p2, 1010, "othello")
	require.NoError(t, err)

	status, err := store.Status(p1)
	require.NoError(t, err)
	assert.Equal(t, EntryWaiting, status.Status)
	assert.Equal(t, 2, status.Position)
	assert.Equal(t, "othello", status.GameType)
	assert.GreaterOrEqual(t, status.WaitTimeMs, int64(0))
}

func TestGroupByRatingBand(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	p := NewProcessor(store, mat, nil)

	ratings := []int{950, 1000, 1020, 1400}
	players := make([]uuid.UUID, len(ratings))
	for i, r := range ratings {
		players[i] = uuid.New()
		_, err := store.Join(players[i], r, "othello")
		require.NoError(t, err)
	}

	p.RunOnce()

	require.Equal(t, 1, mat.createdCount())
	for _, members := range mat.created {
		assert.Len(t, members, 3, "950/1000/1020 chain within the band")
	}

	// The outlier is still waiting.
	status, err := store.Status(players[3])
	require.NoError(t, err)
	assert.Equal(t, EntryWaiting, status.Status)

	// A second pass with no new players matches nobody.
	p.RunOnce()
	assert.Equal(t, 1, mat.createdCount())
}

func TestMatchedStatusCarriesLobby(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	p := NewProcessor(store, mat, nil)

	p1, p2 := uuid.New(), uuid.New()
	_, err := store.Join(p1, 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(p2, 1050, "othello")
	require.NoError(t, err)

	var matched []Entry
	var matchedLobby uuid.UUID
	p.OnMatch = func(lobbyID uuid.UUID, group []Entry) {
		matchedLobby = lobbyID
		matched = group
	}

	p.RunOnce()

	require.Len(t, matched, 2)
	status, err := store.Status(p1)
	require.NoError(t, err)
	assert.Equal(t, EntryMatched, status.Status)
	assert.Equal(t, matchedLobby, status.MatchID)
}

func TestCommitAbortDiscardsLobby(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	p := NewProcessor(store, mat, nil)

	p1, p2 := uuid.New(), uuid.New()
	_, err := store.Join(p1, 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(p2, 1050, "othello")
	require.NoError(t, err)

	// p2 cancels between the tick read and the commit.
	mat.onCreate = func() {
		if _, err := store.Leave(p2); err != nil {
			t.Errorf("leave: %v", err)
		}
	}

	p.RunOnce()

	assert.Len(t, mat.discarded, 1, "lobby must be rolled back")

	// p1 is untouched and stays waiting for the next pass.
	status, err := store.Status(p1)
	require.NoError(t, err)
	assert.Equal(t, EntryWaiting, status.Status)
}

func TestCreateFailureLeavesGroupQueued(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	mat.failCreate = true
	p := NewProcessor(store, mat, nil)

	p1, p2 := uuid.New(), uuid.New()
	_, err := store.Join(p1, 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(p2, 1050, "othello")
	require.NoError(t, err)

	p.RunOnce()

	for _, id := range []uuid.UUID{p1, p2} {
		status, err := store.Status(id)
		require.NoError(t, err)
		assert.Equal(t, EntryWaiting, status.Status)
	}
}

func TestStaleEntriesSkipped(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	p := NewProcessor(store, mat, nil)

	p1, p2 := uuid.New(), uuid.New()
	stale, err := store.Join(p1, 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(p2, 1050, "othello")
	require.NoError(t, err)

	store.mu.Lock()
	store.entries[stale.ID].JoinedAt = time.Now().Add(-10 * time.Minute)
	store.mu.Unlock()

	p.RunOnce()

	assert.Equal(t, 0, mat.createdCount(), "only one fresh entry, below minimum group size")

	// The stale entry is skipped, not cancelled.
	status, err := store.Status(p1)
	require.NoError(t, err)
	assert.Equal(t, EntryWaiting, status.Status)
}

func TestProcessorStartStop(t *testing.T) {
	store := NewQueueStore()
	mat := newStubMaterializer()
	p := NewProcessor(store, mat, nil)
	p.Interval = 10 * time.Millisecond

	_, err := store.Join(uuid.New(), 1000, "othello")
	require.NoError(t, err)
	_, err = store.Join(uuid.New(), 1050, "othello")
	require.NoError(t, err)

	p.Start()
	p.Start() // idempotent

	deadline := time.After(2 * time.Second)
	for mat.createdCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("processor never matched the pair")
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Stop()
	p.Stop() // idempotent
}
