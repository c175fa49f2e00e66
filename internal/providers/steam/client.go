package steam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/providers"
)

const (
	DefaultAPIBaseURL   = "https://api.steampowered.com"
	DefaultStoreBaseURL = "https://store.steampowered.com"
)

type Config struct {
	APIKey         string
	APIBaseURL     string
	StoreBaseURL   string
	RequestsPerSec float64
	Timeout        time.Duration
}

// Client covers both the Web API library listing and the storefront
// appdetails endpoint.
type Client struct {
	apiKey   string
	apiURL   string
	storeURL string
	req      *providers.Requester
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger, opts ...providers.Option) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.StoreBaseURL == "" {
		cfg.StoreBaseURL = DefaultStoreBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger = logger.Named("steam")
	opts = append([]providers.Option{providers.WithLogger(logger)}, opts...)
	return &Client{
		apiKey:   cfg.APIKey,
		apiURL:   cfg.APIBaseURL,
		storeURL: cfg.StoreBaseURL,
		req:      providers.NewRequester("steam", cfg.RequestsPerSec, cfg.Timeout, opts...),
		logger:   logger,
	}
}

// GetOwnedGames lists the library of a SteamID64. A private or empty
// profile yields an empty result, not an error.
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) (*OwnedGames, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("steamid", steamID)
	q.Set("format", "json")
	q.Set("include_appinfo", "true")
	q.Set("include_played_free_games", "false")
	u := c.apiURL + "/IPlayerService/GetOwnedGames/v0001/?" + q.Encode()

	var resp ownedGamesResponse
	if err := c.req.Do(ctx, http.MethodGet, u, nil, nil, &resp); err != nil {
		// The Web API answers 404 for malformed ids; treat it as unavailable
		// so the caller sees a single failure mode for library listing.
		if errors.Is(err, providers.ErrNotFound) {
			return nil, fmt.Errorf("get owned games for %s: %w", steamID, providers.ErrUnavailable)
		}
		return nil, fmt.Errorf("get owned games for %s: %w", steamID, err)
	}
	if resp.Response == nil {
		c.logger.Warn("owned games response carried no data; profile may be private",
			zap.String("steam_id", steamID))
		return &OwnedGames{Games: []OwnedGame{}}, nil
	}
	if resp.Response.Games == nil {
		resp.Response.Games = []OwnedGame{}
	}
	return resp.Response, nil
}

// GetAppDetails fetches storefront details for one app.
func (c *Client) GetAppDetails(ctx context.Context, appID string) (*AppDetails, error) {
	if _, err := strconv.Atoi(appID); err != nil {
		return nil, fmt.Errorf("app details %q: %w", appID, providers.ErrNotFound)
	}
	u := c.storeURL + "/api/appdetails?appids=" + url.QueryEscape(appID)

	var resp map[string]appDetailsEntry
	if err := c.req.Do(ctx, http.MethodGet, u, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("app details %s: %w", appID, err)
	}
	entry, ok := resp[appID]
	if !ok {
		return nil, fmt.Errorf("app details %s: %w", appID, providers.ErrNotFound)
	}
	if !entry.Success || entry.Data == nil {
		return nil, fmt.Errorf("app details %s: success=false: %w", appID, providers.ErrUnavailable)
	}
	return entry.Data, nil
}
