package ownership

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

var (
	ErrNotFound     = errors.New("game not in library")
	ErrAlreadyOwned = errors.New("game already in library")
	// ErrUnknownRef means the user or the game does not exist.
	ErrUnknownRef = errors.New("unknown user or game")
)

const (
	DefaultTake = 20
	MaxTake     = 50
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const ownedColumns = `o.user_id, o.game_id, o.playtime_minutes, o.status, o.source_provider,
	o.created_at, o.updated_at`

const joinedGameColumns = `g.id, g.steam_app_id, g.igdb_id, g.name, g.summary, g.rating, g.release_date,
	g.genres, g.platforms, g.developers, g.publishers, g.screenshots, g.cover_url, g.created_at, g.updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOwned(row scanner) (*models.OwnedGame, error) {
	o := &models.OwnedGame{}
	err := row.Scan(&o.UserID, &o.GameID, &o.PlaytimeMinutes, &o.Status, &o.SourceProvider,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func scanOwnedWithGame(row scanner) (*models.OwnedGame, error) {
	o := &models.OwnedGame{}
	g := &models.Game{}
	err := row.Scan(&o.UserID, &o.GameID, &o.PlaytimeMinutes, &o.Status, &o.SourceProvider,
		&o.CreatedAt, &o.UpdatedAt,
		&g.ID, &g.SteamAppID, &g.IGDBID, &g.Name, &g.Summary, &g.Rating, &g.ReleaseDate,
		&g.Genres, &g.Platforms, &g.Developers, &g.Publishers, &g.Screenshots, &g.CoverURL,
		&g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Game = g
	return o, nil
}

// Upsert records that userID owns gameID. Playtime is replaced, never
// accumulated, so redelivered tasks converge. Status is left alone on update.
func (r *Repository) Upsert(ctx context.Context, userID string, gameID uuid.UUID, playtime int, source models.Provider) (*models.OwnedGame, error) {
	o, err := scanOwned(r.db.QueryRowContext(ctx, `
		INSERT INTO user_owned_games AS o (user_id, game_id, playtime_minutes, source_provider)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, game_id) DO UPDATE
			SET playtime_minutes = EXCLUDED.playtime_minutes, updated_at = NOW()
		RETURNING `+ownedColumns,
		userID, gameID, playtime, source))
	if err != nil {
		return nil, fmt.Errorf("upsert ownership %s/%s: %w", userID, gameID, err)
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, userID string, gameID uuid.UUID) (*models.OwnedGame, error) {
	o, err := scanOwnedWithGame(r.db.QueryRowContext(ctx, `
		SELECT `+ownedColumns+`, `+joinedGameColumns+`
		FROM user_owned_games o JOIN games g ON g.id = o.game_id
		WHERE o.user_id = $1 AND o.game_id = $2`, userID, gameID))
	if err != nil {
		return nil, fmt.Errorf("get ownership %s/%s: %w", userID, gameID, err)
	}
	return o, nil
}

type ListFilter struct {
	Status   *models.GameStatus
	Provider *models.Provider
	// Name is a case-insensitive substring of the game name.
	Name string
	Skip int
	Take int
}

// Page clamps Skip and Take into range.
func (f ListFilter) Page() (skip, take int) {
	skip, take = f.Skip, f.Take
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	return skip, take
}

// ListByUser returns one page of the library ordered by playtime, most
// played first, together with the unpaged total.
func (r *Repository) ListByUser(ctx context.Context, userID string, f ListFilter) ([]models.OwnedGame, int, error) {
	where := []string{"o.user_id = $1"}
	args := []interface{}{userID}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if f.Provider != nil {
		args = append(args, *f.Provider)
		where = append(where, fmt.Sprintf("o.source_provider = $%d", len(args)))
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		args = append(args, "%"+escapeLike(name)+"%")
		where = append(where, fmt.Sprintf("g.name ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_owned_games o JOIN games g ON g.id = o.game_id
		WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count library %s: %w", userID, err)
	}

	skip, take := f.Page()
	args = append(args, take, skip)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+ownedColumns+`, `+joinedGameColumns+`
		FROM user_owned_games o JOIN games g ON g.id = o.game_id
		WHERE %s
		ORDER BY o.playtime_minutes DESC, g.name
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list library %s: %w", userID, err)
	}
	defer rows.Close()

	out := []models.OwnedGame{}
	for rows.Next() {
		o, err := scanOwnedWithGame(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, userID string, gameID uuid.UUID, status models.GameStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_owned_games SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND game_id = $2`, userID, gameID, status)
	if err != nil {
		return fmt.Errorf("update status %s/%s: %w", userID, gameID, err)
	}
	return requireRow(res)
}

// Add puts a game in the library by hand and bumps the user's game count.
func (r *Repository) Add(ctx context.Context, userID string, gameID uuid.UUID, source models.Provider) (*models.OwnedGame, error) {
	return r.inTx(ctx, func(tx DBTX) (*models.OwnedGame, error) {
		o, err := scanOwned(tx.QueryRowContext(ctx, `
			INSERT INTO user_owned_games AS o (user_id, game_id, playtime_minutes, source_provider)
			VALUES ($1, $2, 0, $3)
			RETURNING `+ownedColumns, userID, gameID, source))
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return nil, ErrAlreadyOwned
			case "23503":
				return nil, ErrUnknownRef
			}
		}
		if err != nil {
			return nil, fmt.Errorf("add game %s/%s: %w", userID, gameID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET total_games = total_games + 1, updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return nil, fmt.Errorf("bump game count %s: %w", userID, err)
		}
		return o, nil
	})
}

// Remove deletes a game from the library and lowers the user's game count.
func (r *Repository) Remove(ctx context.Context, userID string, gameID uuid.UUID) error {
	_, err := r.inTx(ctx, func(tx DBTX) (*models.OwnedGame, error) {
		if err := NewRepository(tx).Delete(ctx, userID, gameID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET total_games = GREATEST(total_games - 1, 0), updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return nil, fmt.Errorf("lower game count %s: %w", userID, err)
		}
		return nil, nil
	})
	return err
}

func (r *Repository) Delete(ctx context.Context, userID string, gameID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM user_owned_games WHERE user_id = $1 AND game_id = $2`, userID, gameID)
	if err != nil {
		return fmt.Errorf("delete ownership %s/%s: %w", userID, gameID, err)
	}
	return requireRow(res)
}

// DeleteByProvider removes every library entry that came from provider.
func (r *Repository) DeleteByProvider(ctx context.Context, userID string, provider models.Provider) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM user_owned_games WHERE user_id = $1 AND source_provider = $2`, userID, provider)
	if err != nil {
		return 0, fmt.Errorf("delete %s library of %s: %w", provider, userID, err)
	}
	return res.RowsAffected()
}

// inTx runs fn in a transaction when the repository holds a *sql.DB, and
// directly when it is already bound to a transaction.
func (r *Repository) inTx(ctx context.Context, fn func(tx DBTX) (*models.OwnedGame, error)) (*models.OwnedGame, error) {
	db, ok := r.db.(*sql.DB)
	if !ok {
		return fn(r.db)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	o, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
