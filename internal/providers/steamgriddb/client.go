package steamgriddb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/providers"
)

const DefaultBaseURL = "https://www.steamgriddb.com/api/v2"

type Config struct {
	APIKey         string
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	req     *providers.Requester
	logger  *zap.Logger
}

type gridsResponse struct {
	Success bool     `json:"success"`
	Data    []Grid   `json:"data"`
	Errors  []string `json:"errors,omitempty"`
}

type Grid struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Thumb  string `json:"thumb,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func NewClient(cfg Config, logger *zap.Logger, opts ...providers.Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger = logger.Named("steamgriddb")
	opts = append([]providers.Option{providers.WithLogger(logger)}, opts...)
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		req:     providers.NewRequester("steamgriddb", cfg.RequestsPerSec, cfg.Timeout, opts...),
		logger:  logger,
	}
}

// GetCoverBySteamAppID returns the first grid for the app. The API lists
// the highest-voted grids first.
func (c *Client) GetCoverBySteamAppID(ctx context.Context, appID string) (string, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		c.logger.Warn("cover lookup without a steam app id")
		return "", fmt.Errorf("steamgriddb cover: blank app id: %w", providers.ErrNotFound)
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)

	var resp gridsResponse
	u := c.baseURL + "/grids/steam/" + url.PathEscape(appID)
	if err := c.req.Do(ctx, http.MethodGet, u, nil, h, &resp); err != nil {
		return "", fmt.Errorf("steamgriddb cover %s: %w", appID, err)
	}
	if !resp.Success {
		return "", fmt.Errorf("steamgriddb cover %s: success=false %v: %w", appID, resp.Errors, providers.ErrUnavailable)
	}
	for _, g := range resp.Data {
		if g.URL != "" {
			return g.URL, nil
		}
	}
	return "", fmt.Errorf("steamgriddb cover %s: no grids: %w", appID, providers.ErrNotFound)
}
