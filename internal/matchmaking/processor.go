// internal/matchmaking/processor.go
package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Defaults mirror the service's matchmaking policy: greedy nearest-
// neighbor bucketing that favors low latency over optimal pairing.
const (
	DefaultRatingBand = 200
	DefaultMinPlayers = 2
	DefaultMaxWait    = 5 * time.Minute
	DefaultInterval   = 5 * time.Second
)

// Materializer turns a closed candidate group into a lobby. CreateLobby
// performs the side effect; DiscardLobby rolls it back when the queue
// commit fails (a member cancelled between the tick read and the commit).
type Materializer interface {
	CreateLobby(gameType string, members []Entry) (uuid.UUID, error)
	DiscardLobby(id uuid.UUID)
}

// Processor is the background matchmaking loop: each tick it buckets
// waiting players by game type, groups them by rating proximity, and
// materializes every closed group as a new lobby.
type Processor struct {
	store *QueueStore
	mat   Materializer
	log   *logrus.Logger

	RatingBand int
	MinPlayers int
	MaxWait    time.Duration
	Interval   time.Duration

	// OnMatch, when set, runs after a group has been committed to a
	// lobby. Used for durable status updates and notifications.
	OnMatch func(lobbyID uuid.UUID, group []Entry)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewProcessor constructs a processor with default policy knobs.
func NewProcessor(store *QueueStore, mat Materializer, log *logrus.Logger) *Processor {
	if log == nil {
		log = logrus.New()
	}
	return &Processor{
		store:      store,
		mat:        mat,
		log:        log,
		RatingBand: DefaultRatingBand,
		MinPlayers: DefaultMinPlayers,
		MaxWait:    DefaultMaxWait,
		Interval:   DefaultInterval,
	}
}

// Start launches the tick loop. Idempotent.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RunOnce()
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// RunOnce executes a single matchmaking pass. Idempotent per tick: a
// failed group leaves its members waiting for the next pass, and one bad
// group never blocks the rest of the tick.
func (p *Processor) RunOnce() {
	waiting := p.store.Waiting(p.MaxWait)
	if len(waiting) == 0 {
		return
	}

	buckets := make(map[string][]Entry)
	for _, e := range waiting {
		buckets[e.GameType] = append(buckets[e.GameType], e)
	}

	for gameType, entries := range buckets {
		if len(entries) < p.MinPlayers {
			continue
		}
		for _, group := range p.group(entries) {
			p.materialize(gameType, group)
		}
	}
}

// group sorts a bucket by rating and scans greedily: a candidate group
// extends while each newcomer's rating is within the band of the most
// recently added member; a band break closes the group if it reached the
// minimum size, else discards it.
func (p *Processor) group(entries []Entry) [][]Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rating < sorted[j].Rating })

	var groups [][]Entry
	var current []Entry
	for _, e := range sorted {
		if len(current) == 0 || e.Rating-current[len(current)-1].Rating <= p.RatingBand {
			current = append(current, e)
			continue
		}
		if len(current) >= p.MinPlayers {
			groups = append(groups, current)
		}
		current = []Entry{e}
	}
	if len(current) >= p.MinPlayers {
		groups = append(groups, current)
	}
	return groups
}

// materialize transactionally creates a lobby for a closed group and
// marks its entries matched. Either both happen or neither: a creation
// failure leaves every entry waiting, and a commit failure (member
// cancelled meanwhile) discards the just-created lobby.
func (p *Processor) materialize(gameType string, group []Entry) {
	lobbyID, err := p.mat.CreateLobby(gameType, group)
	if err != nil {
		p.log.WithError(err).WithField("gameType", gameType).Warn("matchmaking: lobby creation failed, group stays queued")
		return
	}

	ids := make([]uuid.UUID, len(group))
	for i, e := range group {
		ids[i] = e.ID
	}
	if err := p.store.CommitMatch(ids, lobbyID); err != nil {
		p.mat.DiscardLobby(lobbyID)
		p.log.WithError(err).WithField("lobby", lobbyID).Info("matchmaking: commit aborted, lobby discarded")
		return
	}

	p.log.WithFields(logrus.Fields{
		"lobby":    lobbyID,
		"gameType": gameType,
		"players":  len(group),
	}).Info("matchmaking: match created")

	if p.OnMatch != nil {
		p.OnMatch(lobbyID, group)
	}
}
