package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/CondeArmand/gamemate-backend/internal/models"
)

var ErrNotFound = errors.New("game not found")

const (
	steamIDIndex = "idx_games_steam_app_id"
	igdbIDIndex  = "idx_games_igdb_id"
	// maxResolveAttempts bounds re-resolution after losing insert races.
	maxResolveAttempts = 3
)

const gameColumns = `id, steam_app_id, igdb_id, name, summary, rating, release_date,
	genres, platforms, developers, publishers, screenshots, cover_url, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row scanner) (*models.Game, error) {
	g := &models.Game{}
	err := row.Scan(&g.ID, &g.SteamAppID, &g.IGDBID, &g.Name, &g.Summary, &g.Rating, &g.ReleaseDate,
		&g.Genres, &g.Platforms, &g.Developers, &g.Publishers, &g.Screenshots, &g.CoverURL,
		&g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return g, nil
}

func (r *Repository) FindBySteamAppID(ctx context.Context, appID string) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE steam_app_id = $1`, appID))
	if err != nil {
		return nil, fmt.Errorf("find game by steam app %s: %w", appID, err)
	}
	return g, nil
}

func (r *Repository) FindByIGDBID(ctx context.Context, igdbID string) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE igdb_id = $1`, igdbID))
	if err != nil {
		return nil, fmt.Errorf("find game by igdb %s: %w", igdbID, err)
	}
	return g, nil
}

// FindByEitherID matches on either external id; NULL parameters never
// match. When the ids point at two different rows the Steam match wins.
func (r *Repository) FindByEitherID(ctx context.Context, steamAppID, igdbID *string) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE steam_app_id = $1 OR igdb_id = $2
		ORDER BY (steam_app_id = $1) IS TRUE DESC, created_at
		LIMIT 1`, steamAppID, igdbID))
	if err != nil {
		return nil, fmt.Errorf("find game by ids: %w", err)
	}
	return g, nil
}

// SmartUpsert stores a candidate record without ever creating a second row
// for an external id that already exists. Unique violations caused by
// concurrent writers are resolved here and never returned.
func (r *Repository) SmartUpsert(ctx context.Context, in *models.GameInput) (*models.Game, error) {
	in = clean(in)
	if in.SteamAppID == nil && in.IGDBID == nil {
		return r.insert(ctx, in)
	}

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		existing, err := r.FindByEitherID(ctx, in.SteamAppID, in.IGDBID)
		switch {
		case err == nil:
			return r.updateResolvingConflict(ctx, existing.ID, in)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}

		g, err := r.insert(ctx, in)
		if _, conflict := uniqueViolation(err); conflict {
			// Another writer inserted one of our ids first; re-resolve.
			continue
		}
		return g, err
	}
	return nil, fmt.Errorf("smart upsert %q: ids kept conflicting after %d attempts", in.Name, maxResolveAttempts)
}

// updateResolvingConflict applies the update and, if the candidate carries
// an id already owned by a different row, retries without that id.
func (r *Repository) updateResolvingConflict(ctx context.Context, id uuid.UUID, in *models.GameInput) (*models.Game, error) {
	g, err := r.update(ctx, id, in)
	pqErr, conflict := uniqueViolation(err)
	if !conflict {
		return g, err
	}

	retry := *in
	switch pqErr.Constraint {
	case igdbIDIndex:
		retry.IGDBID = nil
	case steamIDIndex:
		retry.SteamAppID = nil
	default:
		retry.IGDBID, retry.SteamAppID = nil, nil
	}
	return r.update(ctx, id, &retry)
}

func (r *Repository) insert(ctx context.Context, in *models.GameInput) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `
		INSERT INTO games (steam_app_id, igdb_id, name, summary, rating, release_date,
			genres, platforms, developers, publishers, screenshots, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE($7, '{}'::text[]), COALESCE($8, '{}'::text[]), COALESCE($9, '{}'::text[]),
			COALESCE($10, '{}'::text[]), COALESCE($11, '{}'::text[]), $12)
		RETURNING `+gameColumns,
		in.SteamAppID, in.IGDBID, in.Name, in.Summary, in.Rating, in.ReleaseDate,
		pq.Array(in.Genres), pq.Array(in.Platforms), pq.Array(in.Developers),
		pq.Array(in.Publishers), pq.Array(in.Screenshots), in.CoverURL))
	if err != nil {
		return nil, fmt.Errorf("insert game %q: %w", in.Name, err)
	}
	return g, nil
}

// update overwrites provided fields only. External ids are write-once: a
// stored id is never replaced by a different one.
func (r *Repository) update(ctx context.Context, id uuid.UUID, in *models.GameInput) (*models.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `
		UPDATE games SET
			steam_app_id = COALESCE(steam_app_id, $2),
			igdb_id      = COALESCE(igdb_id, $3),
			name         = CASE WHEN $4::text = '' THEN name ELSE $4::text END,
			summary      = COALESCE($5, summary),
			rating       = COALESCE($6, rating),
			release_date = COALESCE($7, release_date),
			genres       = COALESCE($8, genres),
			platforms    = COALESCE($9, platforms),
			developers   = COALESCE($10, developers),
			publishers   = COALESCE($11, publishers),
			screenshots  = COALESCE($12, screenshots),
			cover_url    = COALESCE($13, cover_url),
			updated_at   = NOW()
		WHERE id = $1
		RETURNING `+gameColumns,
		id, in.SteamAppID, in.IGDBID, in.Name, in.Summary, in.Rating, in.ReleaseDate,
		pq.Array(in.Genres), pq.Array(in.Platforms), pq.Array(in.Developers),
		pq.Array(in.Publishers), pq.Array(in.Screenshots), in.CoverURL))
	if err != nil {
		return nil, fmt.Errorf("update game %s: %w", id, err)
	}
	return g, nil
}

func uniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr, true
	}
	return nil, false
}

// clean copies the input with blank ids and optional strings dropped and
// list fields de-duplicated.
func clean(in *models.GameInput) *models.GameInput {
	out := *in
	out.Name = strings.TrimSpace(in.Name)
	out.SteamAppID = nonBlank(in.SteamAppID)
	out.IGDBID = nonBlank(in.IGDBID)
	out.Summary = nonBlank(in.Summary)
	out.CoverURL = nonBlank(in.CoverURL)
	out.Genres = Dedupe(in.Genres)
	out.Platforms = Dedupe(in.Platforms)
	out.Developers = Dedupe(in.Developers)
	out.Publishers = Dedupe(in.Publishers)
	out.Screenshots = Dedupe(in.Screenshots)
	return &out
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Dedupe drops blanks and repeats, keeping first occurrences in order. A nil
// slice stays nil so "not provided" survives.
func Dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
