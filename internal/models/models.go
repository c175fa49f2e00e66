package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ──────────────────── Enums ────────────────────

type Provider string

const (
	ProviderSteam  Provider = "STEAM"
	ProviderManual Provider = "MANUAL"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderSteam, ProviderManual:
		return true
	}
	return false
}

type GameStatus string

const (
	StatusNotPlayed GameStatus = "NOT_PLAYED"
	StatusPlaying   GameStatus = "PLAYING"
	StatusCompleted GameStatus = "COMPLETED"
	StatusAbandoned GameStatus = "ABANDONED"
	StatusWishlist  GameStatus = "WISHLIST"
)

func (s GameStatus) Valid() bool {
	switch s {
	case StatusNotPlayed, StatusPlaying, StatusCompleted, StatusAbandoned, StatusWishlist:
		return true
	}
	return false
}

// ──────────────────── Game ────────────────────

// Game is the canonical catalog record. It is addressable by either external
// id; the store guarantees both ids resolve to at most one row.
type Game struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	SteamAppID  *string        `json:"steam_app_id,omitempty" db:"steam_app_id"`
	IGDBID      *string        `json:"igdb_id,omitempty" db:"igdb_id"`
	Name        string         `json:"name" db:"name"`
	Summary     *string        `json:"summary,omitempty" db:"summary"`
	Rating      *float64       `json:"rating,omitempty" db:"rating"`
	ReleaseDate *time.Time     `json:"release_date,omitempty" db:"release_date"`
	Genres      pq.StringArray `json:"genres" db:"genres"`
	Platforms   pq.StringArray `json:"platforms" db:"platforms"`
	Developers  pq.StringArray `json:"developers" db:"developers"`
	Publishers  pq.StringArray `json:"publishers" db:"publishers"`
	Screenshots pq.StringArray `json:"screenshots" db:"screenshots"`
	CoverURL    *string        `json:"cover_url,omitempty" db:"cover_url"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// GameInput is a SmartUpsert candidate. Nil pointers and nil slices are "not
// provided" and leave the stored column untouched on update.
type GameInput struct {
	SteamAppID  *string
	IGDBID      *string
	Name        string
	Summary     *string
	Rating      *float64
	ReleaseDate *time.Time
	Genres      []string
	Platforms   []string
	Developers  []string
	Publishers  []string
	Screenshots []string
	CoverURL    *string
}

// ──────────────────── Ownership ────────────────────

type OwnedGame struct {
	UserID          string     `json:"user_id" db:"user_id"`
	GameID          uuid.UUID  `json:"game_id" db:"game_id"`
	PlaytimeMinutes int        `json:"playtime_minutes" db:"playtime_minutes"`
	Status          GameStatus `json:"status" db:"status"`
	SourceProvider  Provider   `json:"source_provider" db:"source_provider"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	// Joined (not in user_owned_games)
	Game *Game `json:"game,omitempty" db:"-"`
}

// ──────────────────── User ────────────────────

type User struct {
	ID                   string    `json:"id" db:"id"`
	Name                 *string   `json:"name,omitempty" db:"name"`
	TotalGames           int       `json:"total_games" db:"total_games"`
	TotalPlaytimeMinutes int       `json:"total_playtime_minutes" db:"total_playtime_minutes"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

type LinkedAccount struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Provider          Provider  `json:"provider" db:"provider"`
	ProviderAccountID string    `json:"provider_account_id" db:"provider_account_id"`
	Username          *string   `json:"username,omitempty" db:"username"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
