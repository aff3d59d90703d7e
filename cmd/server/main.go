// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jmlee487/gambit/internal/auth"
	"github.com/jmlee487/gambit/internal/cache"
	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/handlers"
	"github.com/jmlee487/gambit/internal/lobby"
	"github.com/jmlee487/gambit/internal/matchmaking"
	"github.com/jmlee487/gambit/internal/middleware"
	"github.com/jmlee487/gambit/internal/models"
	"github.com/jmlee487/gambit/internal/othello"
	"github.com/jmlee487/gambit/internal/session"
)

func main() {
	if err := auth.Init(); err != nil {
		log.Fatalf("auth init: %v", err)
	}

	logger := logrus.New()
	if os.Getenv("DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	var users handlers.UserDirectory
	if os.Getenv("SKIP_DB") == "" {
		database.ConnectDB()
		users = handlers.DBUserDirectory{}
	}

	manager := session.NewManager(logger)
	manager.RegisterRules(othello.GameType, othello.NewAdapter())

	if os.Getenv("SKIP_REDIS") == "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.WithError(err).Warn("redis unavailable, command records disabled")
		} else {
			manager.RecordFn = func(sessionID uuid.UUID, index int, cmd models.GameCommand) {
				record := cache.SessionCommandRecord{
					SessionID:    sessionID,
					CommandIndex: index,
					PlayerID:     cmd.PlayerID,
					CommandType:  cmd.Type,
					Payload:      cmd.Payload,
					Timestamp:    cmd.Timestamp,
				}
				if err := cache.PublishSessionCommand(context.Background(), record); err != nil {
					logger.WithError(err).Debug("publish command record failed")
				}
			}
		}
	}

	lobbies := lobby.NewStore()
	queue := matchmaking.NewQueueStore()
	srv := handlers.NewServer(logger, lobbies, manager, queue, users)

	mat := &handlers.LobbyMaterializer{Lobbies: lobbies, Users: users, Logger: logger}
	processor := matchmaking.NewProcessor(queue, mat, logger)
	if v := os.Getenv("MATCH_TICK_INTERVAL"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			processor.Interval = time.Duration(sec) * time.Second
		}
	}
	processor.OnMatch = func(lobbyID uuid.UUID, group []matchmaking.Entry) {
		handlers.PersistMatch(logger, lobbyID, group)
	}
	processor.Start()
	defer processor.Stop()

	mux := srv.Routes()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("gambit server running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
