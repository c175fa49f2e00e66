package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/catalog"
	"github.com/CondeArmand/gamemate-backend/internal/models"
)

// ErrUnknownGame means neither the catalog nor IGDB knows the requested id.
// It matches catalog.ErrNotFound.
var ErrUnknownGame = fmt.Errorf("unknown game: %w", catalog.ErrNotFound)

// ResolveIGDB returns the catalog record for an IGDB id, importing it from
// IGDB when the catalog has never seen it.
func (e *Engine) ResolveIGDB(ctx context.Context, igdbID string) (*models.Game, error) {
	igdbID = strings.TrimSpace(igdbID)
	g, err := e.store.FindByIGDBID(ctx, igdbID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}

	cctx, cancel := e.call(ctx)
	defer cancel()
	ig, err := e.index.GetByID(cctx, igdbID)
	if err != nil {
		e.logger.Info("igdb id not resolvable", zap.String("igdb_id", igdbID), zap.Error(err))
		return nil, fmt.Errorf("igdb %s: %w", igdbID, ErrUnknownGame)
	}

	d := draftFromIndex(Task{Name: ig.Name}, ig)
	d.input.SteamAppID = nil
	if u := ig.CoverURL(); u != "" {
		d.input.CoverURL = &u
	}
	return e.store.SmartUpsert(ctx, &d.input)
}

// ResolveSteam looks a Steam app up in the catalog only; Steam apps enter
// the catalog through library sync.
func (e *Engine) ResolveSteam(ctx context.Context, appID string) (*models.Game, error) {
	g, err := e.store.FindBySteamAppID(ctx, strings.TrimSpace(appID))
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("steam app %s: %w", appID, ErrUnknownGame)
	}
	return g, err
}
