// Package app wires configuration into the long-lived dependencies shared
// by the daemon and the CLI.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/cache"
	"github.com/CondeArmand/gamemate-backend/internal/catalog"
	"github.com/CondeArmand/gamemate-backend/internal/config"
	"github.com/CondeArmand/gamemate-backend/internal/db"
	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
	"github.com/CondeArmand/gamemate-backend/internal/fuzzy"
	"github.com/CondeArmand/gamemate-backend/internal/jobs"
	"github.com/CondeArmand/gamemate-backend/internal/librarysync"
	"github.com/CondeArmand/gamemate-backend/internal/ownership"
	"github.com/CondeArmand/gamemate-backend/internal/providers/igdb"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steam"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steamgriddb"
	"github.com/CondeArmand/gamemate-backend/internal/users"
)

type App struct {
	Config *config.Config
	DB     *db.DB
	Redis  *redis.Client
	Queue  *jobs.Queue
	Logger *zap.Logger

	Catalog   *catalog.Repository
	Ownership *ownership.Repository
	Users     *users.Repository

	igdbOnce sync.Once
	igdb     *igdb.Client
}

// Open connects to Postgres and Redis. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		database.Close()
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	q := jobs.NewQueue(jobs.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
		MaxRetry:      cfg.Worker.MaxRetry,
		TaskTimeout:   cfg.Worker.TaskTimeout,
	}, logger)

	return &App{
		Config:    cfg,
		DB:        database,
		Redis:     rdb,
		Queue:     q,
		Logger:    logger,
		Catalog:   catalog.NewRepository(database.DB),
		Ownership: ownership.NewRepository(database.DB),
		Users:     users.NewRepository(database.DB),
	}, nil
}

// SteamClient serves both the library listing and storefront details.
func (a *App) SteamClient() *steam.Client {
	return steam.NewClient(steam.Config{
		APIKey:         a.Config.Steam.APIKey,
		RequestsPerSec: a.Config.Steam.RequestsPerSec,
		Timeout:        a.Config.Enrichment.ProviderTimeout,
	}, a.Logger)
}

// IGDBClient returns the single IGDB client, so every caller shares one
// token cache and the Redis result cache.
func (a *App) IGDBClient() *igdb.Client {
	a.igdbOnce.Do(func() {
		cfg := a.Config
		a.igdb = igdb.NewClient(igdb.Config{
			ClientID:       cfg.IGDB.ClientID,
			ClientSecret:   cfg.IGDB.ClientSecret,
			TokenURL:       cfg.IGDB.TokenURL,
			RequestsPerSec: cfg.IGDB.RequestsPerSec,
			Timeout:        cfg.Enrichment.ProviderTimeout,
			CacheTTL:       cfg.Redis.SearchCacheTTL,
		}, cache.NewRedis(a.Redis, "gamemate:"), a.Logger)
	})
	return a.igdb
}

// Engine builds the enrichment engine over the real providers.
func (a *App) Engine(notifier enrichment.EventNotifier) *enrichment.Engine {
	cfg := a.Config
	art := steamgriddb.NewClient(steamgriddb.Config{
		APIKey:         cfg.SteamGridDB.APIKey,
		RequestsPerSec: cfg.SteamGridDB.RequestsPerSec,
		Timeout:        cfg.Enrichment.ProviderTimeout,
	}, a.Logger)

	return enrichment.NewEngine(enrichment.Deps{
		Store:     a.Catalog,
		Ownership: a.Ownership,
		Details:   a.SteamClient(),
		Index:     a.IGDBClient(),
		Art:       art,
		Matcher:   fuzzy.NewResolver(cfg.Enrichment.FuzzyThreshold),
		Notifier:  notifier,
	}, enrichment.Config{
		StaleAfter:      cfg.Enrichment.StaleAfter,
		ProviderTimeout: cfg.Enrichment.ProviderTimeout,
	}, a.Logger)
}

func (a *App) Syncer(notifier librarysync.EventNotifier) *librarysync.Syncer {
	return librarysync.NewSyncer(a.SteamClient(), a.Queue, a.Users, notifier, a.Logger)
}

func (a *App) Close() {
	a.Queue.Close()
	a.Redis.Close()
	a.DB.Close()
}
