// Package enrichment turns one owned Steam app into a catalog record by
// cascading over the metadata providers.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/catalog"
	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/providers/igdb"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steam"
)

const (
	DefaultStaleAfter      = 180 * 24 * time.Hour
	DefaultProviderTimeout = 10 * time.Second

	EventComplete = "enrich:complete"
)

type Outcome string

const (
	// OutcomeFresh: the stored record was recent; only ownership changed.
	OutcomeFresh Outcome = "fresh"
	// OutcomeEnriched: a provider supplied details and the record was written.
	OutcomeEnriched Outcome = "enriched"
	// OutcomeMinimal: no provider knew the game; id and name were stored.
	OutcomeMinimal Outcome = "minimal"
)

// ──────────────────── Dependencies ────────────────────

type Store interface {
	FindBySteamAppID(ctx context.Context, appID string) (*models.Game, error)
	FindByIGDBID(ctx context.Context, igdbID string) (*models.Game, error)
	SmartUpsert(ctx context.Context, in *models.GameInput) (*models.Game, error)
}

type Ownership interface {
	Upsert(ctx context.Context, userID string, gameID uuid.UUID, playtime int, source models.Provider) (*models.OwnedGame, error)
}

// StoreDetails is the authoritative source of descriptive fields.
type StoreDetails interface {
	GetAppDetails(ctx context.Context, appID string) (*steam.AppDetails, error)
}

// GameIndex supplies name search, the cross-reference id, rating and covers.
type GameIndex interface {
	SearchByName(ctx context.Context, text string) ([]igdb.Game, error)
	GetByID(ctx context.Context, id string) (*igdb.Game, error)
	GetBySteamAppID(ctx context.Context, appID string) (*igdb.Game, error)
}

type ArtSource interface {
	GetCoverBySteamAppID(ctx context.Context, appID string) (string, error)
}

type Matcher interface {
	BestMatch(query string, candidates []string) (index int, score float64, ok bool)
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

type Deps struct {
	Store     Store
	Ownership Ownership
	Details   StoreDetails
	Index     GameIndex
	Art       ArtSource
	Matcher   Matcher
	Notifier  EventNotifier
}

type Config struct {
	StaleAfter      time.Duration
	ProviderTimeout time.Duration
}

// Task is one owned app to enrich. It may be delivered more than once.
type Task struct {
	UserID     string
	SteamAppID string
	Name       string
	Playtime   int
}

// ──────────────────── Engine ────────────────────

type Engine struct {
	store     Store
	ownership Ownership
	details   StoreDetails
	index     GameIndex
	art       ArtSource
	matcher   Matcher
	notifier  EventNotifier

	resolvers []resolver
	covers    []coverStrategy

	staleAfter  time.Duration
	callTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewEngine(deps Deps, cfg Config, logger *zap.Logger) *Engine {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	e := &Engine{
		store:       deps.Store,
		ownership:   deps.Ownership,
		details:     deps.Details,
		index:       deps.Index,
		art:         deps.Art,
		matcher:     deps.Matcher,
		notifier:    deps.Notifier,
		staleAfter:  cfg.StaleAfter,
		callTimeout: cfg.ProviderTimeout,
		now:         time.Now,
		logger:      logger.Named("enrich"),
	}
	e.resolvers = []resolver{
		{step: "steam_details", resolve: e.fromStoreDetails},
		{step: "igdb_search", resolve: e.fromIndexSearch},
	}
	e.covers = []coverStrategy{
		{step: "steamgriddb_cover", find: e.coverFromArt},
		{step: "igdb_cover", find: e.coverFromIndex},
		{step: "steam_header", find: e.coverFromHeader},
	}
	return e
}

// Enrich makes sure the app has a catalog record and that the user owns it
// with the task's playtime. Provider failures are absorbed; only storage
// errors are returned so the task can be redelivered.
func (e *Engine) Enrich(ctx context.Context, t Task) error {
	t.SteamAppID = strings.TrimSpace(t.SteamAppID)
	log := e.logger.With(zap.String("steam_app_id", t.SteamAppID), zap.String("name", t.Name))

	existing, err := e.store.FindBySteamAppID(ctx, t.SteamAppID)
	switch {
	case err == nil && e.isFresh(existing):
		if err := e.own(ctx, t, existing.ID); err != nil {
			return err
		}
		log.Debug("record is fresh; ownership refreshed", zap.Time("updated_at", existing.UpdatedAt))
		e.notify(t, existing.ID, OutcomeFresh)
		return nil
	case err != nil && !errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("step=lookup: %w", err)
	}

	d, failed := e.resolve(ctx, t, log)
	if d == nil {
		return e.storeMinimal(ctx, t, failed, log)
	}

	e.complement(ctx, t, d, log)
	d.input.CoverURL = e.cover(ctx, t, d, log)

	g, err := e.store.SmartUpsert(ctx, &d.input)
	if err != nil {
		log.Error("catalog upsert failed", zap.String("step", "upsert"), zap.Error(err))
		return fmt.Errorf("step=upsert: %w", err)
	}
	if err := e.own(ctx, t, g.ID); err != nil {
		return err
	}
	log.Info("game enriched", zap.String("game_id", g.ID.String()), zap.String("source", d.source))
	e.notify(t, g.ID, OutcomeEnriched)
	return nil
}

func (e *Engine) isFresh(g *models.Game) bool {
	threshold := e.now().Add(-e.staleAfter)
	return !g.UpdatedAt.Before(threshold)
}

func (e *Engine) resolve(ctx context.Context, t Task, log *zap.Logger) (*draft, []string) {
	var failed []string
	for _, r := range e.resolvers {
		d, err := r.resolve(ctx, t)
		if err == nil && d != nil {
			return d, failed
		}
		failed = append(failed, r.step)
		log.Debug("resolver produced no draft", zap.String("step", r.step), zap.Error(err))
	}
	return nil, failed
}

// storeMinimal is the terminal outcome when no provider knows the app.
func (e *Engine) storeMinimal(ctx context.Context, t Task, failed []string, log *zap.Logger) error {
	appID := t.SteamAppID
	g, err := e.store.SmartUpsert(ctx, &models.GameInput{SteamAppID: &appID, Name: t.Name})
	if err != nil {
		log.Error("minimal upsert failed", zap.String("step", "upsert_minimal"), zap.Error(err))
		return fmt.Errorf("step=upsert_minimal: %w", err)
	}
	if err := e.own(ctx, t, g.ID); err != nil {
		return err
	}
	log.Warn("no provider resolved game; stored minimal record",
		zap.Strings("failed_steps", failed), zap.String("game_id", g.ID.String()))
	e.notify(t, g.ID, OutcomeMinimal)
	return nil
}

func (e *Engine) own(ctx context.Context, t Task, gameID uuid.UUID) error {
	if _, err := e.ownership.Upsert(ctx, t.UserID, gameID, t.Playtime, models.ProviderSteam); err != nil {
		e.logger.Error("ownership upsert failed",
			zap.String("steam_app_id", t.SteamAppID), zap.String("name", t.Name),
			zap.String("step", "ownership"), zap.Error(err))
		return fmt.Errorf("step=ownership: %w", err)
	}
	return nil
}

func (e *Engine) notify(t Task, gameID uuid.UUID, outcome Outcome) {
	if e.notifier == nil {
		return
	}
	e.notifier.Broadcast(EventComplete, map[string]interface{}{
		"user_id":      t.UserID,
		"steam_app_id": t.SteamAppID,
		"game_id":      gameID.String(),
		"outcome":      string(outcome),
	})
}

// call bounds a single provider call by the per-call timeout.
func (e *Engine) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.callTimeout)
}
