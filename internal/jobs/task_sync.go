package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/librarysync"
)

type Syncer interface {
	Sync(ctx context.Context, userID, steamID string) (*librarysync.Result, error)
}

type SyncLibraryHandler struct {
	syncer Syncer
	logger *zap.Logger
}

func NewSyncLibraryHandler(syncer Syncer, logger *zap.Logger) *SyncLibraryHandler {
	return &SyncLibraryHandler{syncer: syncer, logger: logger.Named("jobs")}
}

func (h *SyncLibraryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p SyncLibraryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.UserID == "" || p.SteamID == "" {
		return fmt.Errorf("%s payload missing user_id or steam_id: %w", t.Type(), asynq.SkipRetry)
	}

	h.logger.Info("syncing library", zap.String("user_id", p.UserID), zap.String("steam_id", p.SteamID))
	if _, err := h.syncer.Sync(ctx, p.UserID, p.SteamID); err != nil {
		return fmt.Errorf("sync library: %w", err)
	}
	return nil
}
