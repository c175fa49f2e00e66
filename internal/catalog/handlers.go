package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/httputil"
	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/ownership"
	"github.com/CondeArmand/gamemate-backend/internal/providers"
	"github.com/CondeArmand/gamemate-backend/internal/providers/igdb"
)

type GameReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type OwnershipReader interface {
	Get(ctx context.Context, userID string, gameID uuid.UUID) (*models.OwnedGame, error)
}

// Resolver finds or imports a record by external id. Unknown ids are
// reported with an error matching ErrNotFound.
type Resolver interface {
	ResolveIGDB(ctx context.Context, igdbID string) (*models.Game, error)
	ResolveSteam(ctx context.Context, appID string) (*models.Game, error)
}

// Index is the external game index behind search and the featured list.
type Index interface {
	SearchByName(ctx context.Context, text string) ([]igdb.Game, error)
	Featured(ctx context.Context) ([]igdb.Game, error)
}

// IndexGame is an index entry that need not be in the catalog.
type IndexGame struct {
	IGDBID      string     `json:"igdb_id"`
	Name        string     `json:"name"`
	Summary     string     `json:"summary,omitempty"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Genres      []string   `json:"genres"`
	Platforms   []string   `json:"platforms"`
	Developers  []string   `json:"developers"`
	Publishers  []string   `json:"publishers"`
	Screenshots []string   `json:"screenshots"`
}

func indexGames(in []igdb.Game) []IndexGame {
	out := make([]IndexGame, 0, len(in))
	for i := range in {
		g := &in[i]
		out = append(out, IndexGame{
			IGDBID:      g.IDString(),
			Name:        g.Name,
			Summary:     g.Summary,
			CoverURL:    g.CoverURL(),
			Rating:      g.TotalRating,
			ReleaseDate: g.ReleaseDate(),
			Genres:      g.GenreNames(),
			Platforms:   g.PlatformNames(),
			Developers:  g.Developers(),
			Publishers:  g.Publishers(),
			Screenshots: g.ScreenshotURLs(),
		})
	}
	return out
}

// GameDetails is a catalog record as seen by one user.
type GameDetails struct {
	*models.Game
	IsOwned         bool               `json:"is_owned"`
	PlaytimeMinutes *int               `json:"playtime_minutes,omitempty"`
	Status          *models.GameStatus `json:"status,omitempty"`
}

type Handler struct {
	games    GameReader
	owned    OwnershipReader
	resolver Resolver
	index    Index
	logger   *zap.Logger
}

func NewHandler(games GameReader, owned OwnershipReader, resolver Resolver, index Index, logger *zap.Logger) *Handler {
	return &Handler{games: games, owned: owned, resolver: resolver, index: index, logger: logger.Named("catalog")}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/search", h.search)
	r.Get("/featured", h.featured)
	r.Get("/resolve", h.resolve)
	r.Get("/{id}", h.get)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid game id")
		return
	}
	g, err := h.games.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "game not found")
		return
	}
	if err != nil {
		h.internal(w, "get game", err)
		return
	}

	details := &GameDetails{Game: g}
	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		o, err := h.owned.Get(r.Context(), userID, g.ID)
		switch {
		case err == nil:
			details.IsOwned = true
			details.PlaytimeMinutes = &o.PlaytimeMinutes
			details.Status = &o.Status
		case !errors.Is(err, ownership.ErrNotFound):
			h.internal(w, "get ownership", err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// resolve maps an external id to a catalog record. igdb_id wins when both
// are given.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	igdbID := strings.TrimSpace(q.Get("igdb_id"))
	steamID := strings.TrimSpace(q.Get("steam_app_id"))

	var (
		g   *models.Game
		err error
	)
	switch {
	case igdbID != "":
		g, err = h.resolver.ResolveIGDB(r.Context(), igdbID)
	case steamID != "":
		g, err = h.resolver.ResolveSteam(r.Context(), steamID)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "igdb_id or steam_app_id is required")
		return
	}
	if errors.Is(err, ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "game not found")
		return
	}
	if err != nil {
		h.internal(w, "resolve game", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "q is required")
		return
	}
	games, err := h.index.SearchByName(r.Context(), q)
	h.writeIndex(w, "search games", games, err)
}

func (h *Handler) featured(w http.ResponseWriter, r *http.Request) {
	games, err := h.index.Featured(r.Context())
	h.writeIndex(w, "featured games", games, err)
}

func (h *Handler) writeIndex(w http.ResponseWriter, op string, games []igdb.Game, err error) {
	switch {
	case err == nil, errors.Is(err, providers.ErrNotFound):
		httputil.WriteJSON(w, http.StatusOK, indexGames(games))
	case errors.Is(err, providers.ErrUnavailable):
		h.logger.Warn(op+" unavailable", zap.Error(err))
		httputil.WriteError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "game index is unavailable")
	default:
		h.internal(w, op, err)
	}
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", op+" failed")
}
