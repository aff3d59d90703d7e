// internal/historian/historian.go is an asynchronous service that pops
// session command records from a Redis queue and persists them to
// PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/cache"
	"github.com/jmlee487/gambit/internal/database"
)

// Service encapsulates the Redis + DB logic for capturing the command
// log and marking sessions abandoned after sustained inactivity.
type Service struct {
	redisClient  *redis.Client
	log          *logrus.Logger
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[uuid.UUID]time.Time per session

	batchMu  sync.Mutex
	batch    []cache.SessionCommandRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewService constructs a Service from environment variables or defaults.
func NewService(log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("SESSION_INACTIVITY_TIMEOUT_SEC", 600)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		redisClient: rdb,
		log:         log,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]cache.SessionCommandRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run starts the drain loop and the inactivity sweep, then blocks until
// Stop. The caller must have connected the database first.
func (s *Service) Run() {
	go s.readRedisLoop()
	go s.inactivityLoop()

	s.log.Info("historian service started")
	<-s.ctx.Done()
	s.log.Info("historian shutting down")
}

// Stop cancels the service context.
func (s *Service) Stop() {
	s.cancelFn()
}

// readRedisLoop BLPops command records off the queue, buffering them and
// flushing by size or delay.
func (s *Service) readRedisLoop() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-s.ctx.Done():
			s.flushBatchToDB()
			return

		case <-ticker.C:
			s.flushBatchToDB()

		default:
			// 3-second BLPop timeout keeps context cancellation responsive.
			res, err := s.redisClient.BLPop(s.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if s.ctx.Err() == nil {
					s.log.WithError(err).Error("BLPop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record cache.SessionCommandRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				s.log.WithError(err).Warn("invalid command record")
				continue
			}

			s.lastActivity.Store(record.SessionID, time.Now())
			s.appendToBatch(record)
		}
	}
}

func (s *Service) appendToBatch(record cache.SessionCommandRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, record)
	if len(s.batch) >= s.batchSize {
		s.flushLocked()
	}
}

func (s *Service) flushBatchToDB() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked()
}

// flushLocked writes the buffered records in one transaction. A failed
// flush is logged and the loop continues; the records are lost to the
// durable log but the live session state is unaffected.
func (s *Service) flushLocked() {
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]cache.SessionCommandRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]

	if err := database.InsertSessionCommands(context.Background(), batchCopy); err != nil {
		s.log.WithError(err).Error("flush batch to DB failed")
		return
	}
	s.log.WithField("count", len(batchCopy)).Debug("flushed command records")
}

// inactivityLoop periodically marks sessions without recent commands as
// finished in the durable record.
func (s *Service) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			s.lastActivity.Range(func(key, val interface{}) bool {
				sessionID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > s.inactivity {
					if err := database.MarkSessionFinished(context.Background(), sessionID); err != nil {
						s.log.WithError(err).WithField("session", sessionID).Warn("failed to mark session finished")
					} else {
						s.log.WithField("session", sessionID).Info("session marked finished after inactivity")
					}
					s.lastActivity.Delete(sessionID)
				}
				return true
			})
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
