// internal/handlers/ranking.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jmlee487/gambit/internal/database"
	"github.com/jmlee487/gambit/internal/matchmaking"
	"github.com/jmlee487/gambit/internal/models"
	"github.com/jmlee487/gambit/internal/rating"
)

// LeaderboardHandler returns rankings ordered by rating, paginated with
// limit/offset query parameters.
func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticate(r); err != nil {
		writeError(w, err)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rankings, err := database.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

// MyRankingHandler returns the caller's ranking. Players with no games
// on record get a fresh default ranking.
func (s *Server) MyRankingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rk, err := database.GetRanking(r.Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusOK, rating.NewRanking(userID))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rk)
}

// FindMatchHandler returns the nearest-rated opponent within the band.
func (s *Server) FindMatchHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	band := queryInt(r, "band", matchmaking.DefaultRatingBand)
	opponent, err := database.FindNearestOpponent(r.Context(), userID, band)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opponent)
}

// settleRankings applies rating deltas after a session finishes: the
// highest score wins, ties draw, everyone else loses. Runs as the
// session manager's OnFinish hook.
func (s *Server) settleRankings(sessionID uuid.UUID, final models.SessionState) {
	if database.DB == nil || len(final.Players) < 2 {
		return
	}
	ctx := context.Background()

	best, holders := 0, 0
	for i, p := range final.Players {
		if i == 0 || p.Score > best {
			best, holders = p.Score, 1
		} else if p.Score == best {
			holders++
		}
	}
	allTied := holders == len(final.Players)

	for _, p := range final.Players {
		var result rating.Result
		switch {
		case allTied || (p.Score == best && holders > 1):
			result = rating.Draw
		case p.Score == best:
			result = rating.Win
		default:
			result = rating.Loss
		}

		rk, err := database.GetRanking(ctx, p.PlayerID)
		if errors.Is(err, models.ErrNotFound) {
			rk = rating.NewRanking(p.PlayerID)
		} else if err != nil {
			s.Logger.WithError(err).WithField("player", p.PlayerID).Warn("load ranking failed")
			continue
		}

		rk = rating.Apply(rk, result)
		if err := database.UpsertRanking(ctx, rk); err != nil {
			s.Logger.WithError(err).WithField("player", p.PlayerID).Warn("persist ranking failed")
		}
	}
	s.Logger.WithField("session", sessionID).Info("rankings settled")
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
