// Package librarysync fans a user's Steam library out into one enrichment
// task per owned game and refreshes the user's library aggregates.
package librarysync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steam"
)

const EventUpdate = "sync:update"

type Library interface {
	GetOwnedGames(ctx context.Context, steamID string) (*steam.OwnedGames, error)
}

// Enqueuer schedules one enrichment. Implementations must be safe to call
// again for a task that is already pending.
type Enqueuer interface {
	EnqueueEnrich(ctx context.Context, t enrichment.Task) error
}

type Stats interface {
	UpdateLibraryStats(ctx context.Context, userID string, totalGames, totalPlaytime int) error
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// Result summarizes one sync invocation.
type Result struct {
	UserID        string `json:"user_id"`
	Listed        int    `json:"listed"`
	Enqueued      int    `json:"enqueued"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	TotalGames    int    `json:"total_games"`
	TotalPlaytime int    `json:"total_playtime_minutes"`
}

type Syncer struct {
	library  Library
	enqueuer Enqueuer
	stats    Stats
	notifier EventNotifier
	logger   *zap.Logger
}

func NewSyncer(library Library, enqueuer Enqueuer, stats Stats, notifier EventNotifier, logger *zap.Logger) *Syncer {
	return &Syncer{
		library:  library,
		enqueuer: enqueuer,
		stats:    stats,
		notifier: notifier,
		logger:   logger.Named("sync"),
	}
}

// Sync lists the library behind steamID and enqueues an enrichment for every
// named game. A library that cannot be read or is empty ends the sync with
// no side effects. Only a failure to store the aggregates is returned.
func (s *Syncer) Sync(ctx context.Context, userID, steamID string) (*Result, error) {
	log := s.logger.With(zap.String("user_id", userID), zap.String("steam_id", steamID))
	res := &Result{UserID: userID}

	owned, err := s.library.GetOwnedGames(ctx, steamID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn("library unavailable; nothing to sync", zap.Error(err))
		s.notify(res, "unavailable")
		return res, nil
	}
	if owned == nil || len(owned.Games) == 0 {
		log.Info("library is empty or private; nothing to sync")
		s.notify(res, "empty")
		return res, nil
	}

	res.Listed = len(owned.Games)
	s.notify(res, "running")

	for _, g := range owned.Games {
		res.TotalPlaytime += g.PlaytimeForever
		name := strings.TrimSpace(g.Name)
		if name == "" {
			res.Skipped++
			continue
		}
		t := enrichment.Task{
			UserID:     userID,
			SteamAppID: strconv.Itoa(g.AppID),
			Name:       name,
			Playtime:   g.PlaytimeForever,
		}
		if err := s.enqueuer.EnqueueEnrich(ctx, t); err != nil {
			res.Failed++
			log.Error("enqueue enrichment failed",
				zap.String("steam_app_id", t.SteamAppID), zap.String("name", name), zap.Error(err))
			continue
		}
		res.Enqueued++
	}

	res.TotalGames = owned.GameCount
	if res.TotalGames <= 0 {
		res.TotalGames = len(owned.Games)
	}
	if err := s.stats.UpdateLibraryStats(ctx, userID, res.TotalGames, res.TotalPlaytime); err != nil {
		s.notify(res, "failed")
		return res, fmt.Errorf("update library stats for %s: %w", userID, err)
	}

	log.Info("library synced",
		zap.Int("listed", res.Listed), zap.Int("enqueued", res.Enqueued),
		zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed),
		zap.Int("total_playtime_minutes", res.TotalPlaytime))
	s.notify(res, "complete")
	return res, nil
}

func (s *Syncer) notify(res *Result, status string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(EventUpdate, map[string]interface{}{
		"user_id":  res.UserID,
		"status":   status,
		"listed":   res.Listed,
		"enqueued": res.Enqueued,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
	})
}
