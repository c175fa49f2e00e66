package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/ownership"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrAccountMissing = errors.New("linked account not found")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, total_games, total_playtime_minutes, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.TotalGames, &u.TotalPlaytimeMinutes, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// Ensure creates the user row if it does not exist yet.
func (r *Repository) Ensure(ctx context.Context, id string, name *string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, name)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", id, err)
	}
	return nil
}

// UpdateLibraryStats overwrites the denormalized library aggregate.
func (r *Repository) UpdateLibraryStats(ctx context.Context, id string, totalGames, totalPlaytime int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET total_games = $2, total_playtime_minutes = $3, updated_at = NOW()
		WHERE id = $1`, id, totalGames, totalPlaytime)
	if err != nil {
		return fmt.Errorf("update library stats %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ──────────────────── Linked accounts ────────────────────

// LinkAccount stores or replaces the user's account on provider.
func (r *Repository) LinkAccount(ctx context.Context, a *models.LinkedAccount) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO linked_accounts (user_id, provider, provider_account_id, username)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider) DO UPDATE
			SET provider_account_id = EXCLUDED.provider_account_id, username = EXCLUDED.username
		RETURNING id, created_at`,
		a.UserID, a.Provider, a.ProviderAccountID, a.Username,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("link %s account for %s: %w", a.Provider, a.UserID, err)
	}
	return nil
}

func (r *Repository) GetLinkedAccount(ctx context.Context, userID string, provider models.Provider) (*models.LinkedAccount, error) {
	a := &models.LinkedAccount{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_account_id, username, created_at
		FROM linked_accounts WHERE user_id = $1 AND provider = $2`, userID, provider,
	).Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &a.Username, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get %s account for %s: %w", provider, userID, err)
	}
	return a, nil
}

func (r *Repository) ListLinkedAccounts(ctx context.Context, provider models.Provider) ([]models.LinkedAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, provider, provider_account_id, username, created_at
		FROM linked_accounts WHERE provider = $1 ORDER BY created_at`, provider)
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", provider, err)
	}
	defer rows.Close()

	var out []models.LinkedAccount
	for rows.Next() {
		var a models.LinkedAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &a.Username, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UnlinkAccount removes the account and every library entry it supplied in
// one transaction. It returns the number of library entries removed.
func (r *Repository) UnlinkAccount(ctx context.Context, userID string, provider models.Provider) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var accountID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM linked_accounts WHERE user_id = $1 AND provider = $2 FOR UPDATE`,
		userID, provider).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountMissing
	}
	if err != nil {
		return 0, fmt.Errorf("lock %s account for %s: %w", provider, userID, err)
	}

	removed, err := ownership.NewRepository(tx).DeleteByProvider(ctx, userID, provider)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM linked_accounts WHERE id = $1`, accountID); err != nil {
		return 0, fmt.Errorf("delete %s account for %s: %w", provider, userID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET
			total_games = (SELECT COUNT(*) FROM user_owned_games WHERE user_id = $1),
			total_playtime_minutes = (SELECT COALESCE(SUM(playtime_minutes), 0) FROM user_owned_games WHERE user_id = $1),
			updated_at = NOW()
		WHERE id = $1`, userID); err != nil {
		return 0, fmt.Errorf("recount library of %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}
