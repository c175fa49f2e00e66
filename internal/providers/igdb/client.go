package igdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/providers"
)

const DefaultBaseURL = "https://api.igdb.com/v4"

const (
	featuredWindow = 180 * 24 * time.Hour
	featuredTTL    = 7 * 24 * time.Hour
)

// SearchCache is an optional store for search results.
type SearchCache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Config struct {
	ClientID       string
	ClientSecret   string
	TokenURL       string
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
	CacheTTL       time.Duration
}

type Client struct {
	clientID string
	baseURL  string
	tokens   *TokenCache
	req      *providers.Requester
	cache    SearchCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient builds an IGDB client. cache may be nil.
func NewClient(cfg Config, cache SearchCache, logger *zap.Logger, opts ...providers.Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	logger = logger.Named("igdb")
	opts = append([]providers.Option{providers.WithLogger(logger)}, opts...)
	return &Client{
		clientID: cfg.ClientID,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:   NewTokenCache(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, &http.Client{Timeout: cfg.Timeout}),
		req:      providers.NewRequester("igdb", cfg.RequestsPerSec, cfg.Timeout, opts...),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SearchByName returns up to 20 games with a cover and a summary.
func (c *Client) SearchByName(ctx context.Context, text string) ([]Game, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("igdb search: empty name: %w", providers.ErrNotFound)
	}
	games, err := c.cached(ctx, "igdb:search:"+strings.ToLower(text), c.cacheTTL, func() ([]Game, error) {
		return c.query(ctx, searchQuery(text))
	})
	if err != nil {
		return nil, fmt.Errorf("igdb search %q: %w", text, err)
	}
	return games, nil
}

// Featured returns up to 15 well-rated games released in the last 180 days,
// best rated first.
func (c *Client) Featured(ctx context.Context) ([]Game, error) {
	since := c.now().Add(-featuredWindow)
	games, err := c.cached(ctx, "igdb:featured", featuredTTL, func() ([]Game, error) {
		return c.query(ctx, featuredQuery(since))
	})
	if err != nil {
		return nil, fmt.Errorf("igdb featured: %w", err)
	}
	return games, nil
}

// cached reads key through the cache. Cache failures are logged and fall
// through to fetch.
func (c *Client) cached(ctx context.Context, key string, ttl time.Duration, fetch func() ([]Game, error)) ([]Game, error) {
	if c.cache != nil {
		var hit []Game
		ok, err := c.cache.Get(ctx, key, &hit)
		if err != nil {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return hit, nil
		}
	}

	games, err := fetch()
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, games, ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return games, nil
}

// GetByID fetches one game by its IGDB id.
func (c *Client) GetByID(ctx context.Context, id string) (*Game, error) {
	if !isDigits(id) {
		return nil, fmt.Errorf("igdb game %q: %w", id, providers.ErrNotFound)
	}
	return c.first(ctx, idQuery(id), "igdb game "+id)
}

// GetBySteamAppID finds the game whose Steam website entry ends in /app/<appID>.
func (c *Client) GetBySteamAppID(ctx context.Context, appID string) (*Game, error) {
	if !isDigits(appID) {
		return nil, fmt.Errorf("igdb steam app %q: %w", appID, providers.ErrNotFound)
	}
	return c.first(ctx, steamAppQuery(appID), "igdb steam app "+appID)
}

func (c *Client) first(ctx context.Context, q, what string) (*Game, error) {
	games, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("%s: %w", what, providers.ErrNotFound)
	}
	return &games[0], nil
}

// query posts an APICalypse body to /games. A 401 drops the cached token
// and is retried once with a fresh one.
func (c *Client) query(ctx context.Context, q string) ([]Game, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, providers.Unavailable("igdb", err)
		}

		h := http.Header{}
		h.Set("Client-ID", c.clientID)
		h.Set("Authorization", "Bearer "+token)
		h.Set("Content-Type", "text/plain")

		var games []Game
		err = c.req.Do(ctx, http.MethodPost, c.baseURL+"/games", []byte(q), h, &games)
		if err == nil {
			if games == nil {
				games = []Game{}
			}
			return games, nil
		}

		var statusErr *providers.StatusError
		if attempt == 0 && errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
			c.logger.Info("igdb rejected access token; refreshing")
			c.tokens.Invalidate()
			continue
		}
		// IGDB answers 404 only for unknown endpoints, never for empty results.
		if errors.Is(err, providers.ErrNotFound) {
			return nil, providers.Unavailable("igdb", err)
		}
		return nil, err
	}
}
