package enrichment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/providers"
	"github.com/CondeArmand/gamemate-backend/internal/providers/igdb"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steam"
)

// draft is a candidate record being assembled before the upsert.
type draft struct {
	input  models.GameInput
	source string
	// indexGame is the IGDB game already fetched for this draft, if any.
	indexGame *igdb.Game
	// headerImage is the storefront header kept for the last cover fallback.
	headerImage string
}

type resolver struct {
	step    string
	resolve func(ctx context.Context, t Task) (*draft, error)
}

func (e *Engine) fromStoreDetails(ctx context.Context, t Task) (*draft, error) {
	cctx, cancel := e.call(ctx)
	defer cancel()
	details, err := e.details.GetAppDetails(cctx, t.SteamAppID)
	if err != nil {
		return nil, err
	}
	return draftFromDetails(t, details), nil
}

func draftFromDetails(t Task, d *steam.AppDetails) *draft {
	appID := t.SteamAppID
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = t.Name
	}
	return &draft{
		source: "steam",
		input: models.GameInput{
			SteamAppID:  &appID,
			Name:        name,
			Summary:     optional(d.AboutTheGame),
			ReleaseDate: steam.ParseReleaseDate(d.ReleaseDate.Date),
			Genres:      provided(d.GenreNames()),
			Platforms:   provided(d.PlatformNames()),
			Developers:  provided(d.Developers),
			Publishers:  provided(d.Publishers),
			Screenshots: provided(d.ScreenshotURLs()),
		},
		headerImage: d.HeaderImage,
	}
}

func (e *Engine) fromIndexSearch(ctx context.Context, t Task) (*draft, error) {
	cctx, cancel := e.call(ctx)
	defer cancel()
	results, err := e.index.SearchByName(cctx, t.Name)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("igdb search %q: %w", t.Name, providers.ErrNotFound)
	}

	names := make([]string, len(results))
	for i := range results {
		names[i] = results[i].Name
	}
	idx, score, ok := e.matcher.BestMatch(t.Name, names)
	e.logger.Debug("fuzzy match",
		zap.String("steam_app_id", t.SteamAppID),
		zap.String("name", t.Name),
		zap.String("best", safeName(names, idx)),
		zap.Float64("score", score))
	if !ok {
		return nil, fmt.Errorf("igdb search %q: best score %.2f below threshold: %w", t.Name, score, providers.ErrNotFound)
	}

	g := results[idx]
	return draftFromIndex(t, &g), nil
}

func draftFromIndex(t Task, g *igdb.Game) *draft {
	appID := t.SteamAppID
	igdbID := g.IDString()
	name := strings.TrimSpace(g.Name)
	if name == "" {
		name = t.Name
	}
	return &draft{
		source:    "igdb",
		indexGame: g,
		input: models.GameInput{
			SteamAppID:  &appID,
			IGDBID:      &igdbID,
			Name:        name,
			Summary:     optional(g.Summary),
			Rating:      g.TotalRating,
			ReleaseDate: g.ReleaseDate(),
			Genres:      provided(g.GenreNames()),
			Platforms:   provided(g.PlatformNames()),
			Developers:  provided(g.Developers()),
			Publishers:  provided(g.Publishers()),
			Screenshots: provided(g.ScreenshotURLs()),
		},
	}
}

// complement cross-references IGDB by Steam app id when the draft has no
// IGDB id yet. Failure leaves the draft as it is.
func (e *Engine) complement(ctx context.Context, t Task, d *draft, log *zap.Logger) {
	if d.input.IGDBID != nil {
		return
	}
	cctx, cancel := e.call(ctx)
	defer cancel()
	g, err := e.index.GetBySteamAppID(cctx, t.SteamAppID)
	if err != nil {
		log.Debug("no complementary data", zap.String("step", "igdb_complement"), zap.Error(err))
		return
	}
	mergeComplement(&d.input, g)
	d.indexGame = g
}

// mergeComplement sets the IGDB id and rating and fills only the fields the
// draft is missing.
func mergeComplement(in *models.GameInput, g *igdb.Game) {
	id := g.IDString()
	in.IGDBID = &id
	if g.TotalRating != nil {
		in.Rating = g.TotalRating
	}
	if in.Summary == nil {
		in.Summary = optional(g.Summary)
	}
	if in.ReleaseDate == nil {
		in.ReleaseDate = g.ReleaseDate()
	}
	in.Developers = fill(in.Developers, g.Developers())
	in.Publishers = fill(in.Publishers, g.Publishers())
	in.Genres = fill(in.Genres, g.GenreNames())
	in.Platforms = fill(in.Platforms, g.PlatformNames())
	in.Screenshots = fill(in.Screenshots, g.ScreenshotURLs())
}

func fill(have, from []string) []string {
	if len(have) > 0 {
		return have
	}
	return provided(from)
}

// provided maps an empty list to "not provided" so a provider that omits a
// field never wipes what the catalog already has.
func provided(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func safeName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return ""
	}
	return names[i]
}
