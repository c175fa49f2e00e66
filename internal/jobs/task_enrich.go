package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
)

type Enricher interface {
	Enrich(ctx context.Context, t enrichment.Task) error
}

type EnrichGameHandler struct {
	enricher Enricher
	logger   *zap.Logger
}

func NewEnrichGameHandler(enricher Enricher, logger *zap.Logger) *EnrichGameHandler {
	return &EnrichGameHandler{enricher: enricher, logger: logger.Named("jobs")}
}

// ProcessTask enriches one game. Returned errors are storage failures and
// make asynq redeliver the task.
func (h *EnrichGameHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p EnrichGamePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.UserID == "" || p.SteamAppID <= 0 {
		return fmt.Errorf("%s payload missing user_id or steam_app_id: %w", t.Type(), asynq.SkipRetry)
	}

	task := p.Task()
	if err := h.enricher.Enrich(ctx, task); err != nil {
		h.logger.Error("enrichment failed",
			zap.String("steam_app_id", task.SteamAppID), zap.String("name", task.Name), zap.Error(err))
		return err
	}
	return nil
}
