package jobs

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
)

const (
	TaskSyncLibrary = "sync:library"
	TaskEnrichGame  = "enrich:game"
)

// ──────── Payloads ────────

type SyncLibraryPayload struct {
	UserID  string `json:"user_id"`
	SteamID string `json:"steam_id"`
}

type EnrichGamePayload struct {
	UserID        string `json:"user_id"`
	SteamAppID    int    `json:"steam_app_id"`
	SteamGameName string `json:"steam_game_name"`
	Playtime      int    `json:"playtime"`
}

func NewEnrichGamePayload(t enrichment.Task) (EnrichGamePayload, error) {
	appID, err := strconv.Atoi(strings.TrimSpace(t.SteamAppID))
	if err != nil {
		return EnrichGamePayload{}, fmt.Errorf("steam app id %q: %w", t.SteamAppID, err)
	}
	return EnrichGamePayload{
		UserID:        t.UserID,
		SteamAppID:    appID,
		SteamGameName: t.Name,
		Playtime:      t.Playtime,
	}, nil
}

func (p EnrichGamePayload) Task() enrichment.Task {
	return enrichment.Task{
		UserID:     p.UserID,
		SteamAppID: strconv.Itoa(p.SteamAppID),
		Name:       p.SteamGameName,
		Playtime:   p.Playtime,
	}
}

func SyncTaskID(userID string) string {
	return "sync:" + userID
}

func EnrichTaskID(userID, appID string) string {
	return "enrich:" + userID + ":" + appID
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, syncer Syncer, enricher Enricher, logger *zap.Logger) {
	q.RegisterHandler(TaskSyncLibrary, NewSyncLibraryHandler(syncer, logger))
	q.RegisterHandler(TaskEnrichGame, NewEnrichGameHandler(enricher, logger))
}
