package enrichment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/providers"
)

type coverStrategy struct {
	step string
	find func(ctx context.Context, t Task, d *draft) (string, error)
}

// cover runs the strategies in order and returns the first URL found. Each
// strategy is tried regardless of what the draft already carries.
func (e *Engine) cover(ctx context.Context, t Task, d *draft, log *zap.Logger) *string {
	for _, s := range e.covers {
		u, err := s.find(ctx, t, d)
		if err == nil && u != "" {
			log.Debug("cover found", zap.String("step", s.step))
			return &u
		}
		log.Debug("no image at this step", zap.String("step", s.step), zap.Error(err))
	}
	return nil
}

func (e *Engine) coverFromArt(ctx context.Context, t Task, _ *draft) (string, error) {
	cctx, cancel := e.call(ctx)
	defer cancel()
	return e.art.GetCoverBySteamAppID(cctx, t.SteamAppID)
}

func (e *Engine) coverFromIndex(ctx context.Context, _ Task, d *draft) (string, error) {
	if d.indexGame != nil {
		if u := d.indexGame.CoverURL(); u != "" {
			return u, nil
		}
		return "", fmt.Errorf("igdb game %d has no cover: %w", d.indexGame.ID, providers.ErrNotFound)
	}
	if d.input.IGDBID == nil {
		return "", fmt.Errorf("no igdb id: %w", providers.ErrNotFound)
	}
	cctx, cancel := e.call(ctx)
	defer cancel()
	g, err := e.index.GetByID(cctx, *d.input.IGDBID)
	if err != nil {
		return "", err
	}
	return g.CoverURL(), nil
}

func (e *Engine) coverFromHeader(_ context.Context, _ Task, d *draft) (string, error) {
	if d.headerImage == "" {
		return "", fmt.Errorf("no header image: %w", providers.ErrNotFound)
	}
	return d.headerImage, nil
}
