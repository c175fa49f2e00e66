package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	HTTP        HTTPConfig
	Log         LogConfig
	Steam       SteamConfig
	IGDB        IGDBConfig
	SteamGridDB SteamGridDBConfig
	Worker      WorkerConfig
	Enrichment  EnrichmentConfig
	Scheduler   SchedulerConfig
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SearchCacheTTL bounds how long IGDB search results stay cached.
	SearchCacheTTL time.Duration
}

type HTTPConfig struct {
	Port int
}

type LogConfig struct {
	Level  string
	Format string
}

type SteamConfig struct {
	APIKey         string
	RequestsPerSec float64
}

type IGDBConfig struct {
	ClientID       string
	ClientSecret   string
	TokenURL       string
	RequestsPerSec float64
}

type SteamGridDBConfig struct {
	APIKey         string
	RequestsPerSec float64
}

type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
	TaskTimeout time.Duration
}

type EnrichmentConfig struct {
	StaleAfter      time.Duration
	ProviderTimeout time.Duration
	FuzzyThreshold  float64
}

type SchedulerConfig struct {
	// ResyncSpec is a robfig/cron spec; empty disables periodic re-sync.
	ResyncSpec string
}

// Load reads configuration from the environment. Values in .env and
// .env.local are applied first without overriding variables already set.
func Load() *Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	return &Config{
		Database: DatabaseConfig{
			URL:          env("DATABASE_URL", ""),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:           redisAddr(env("REDIS_URL", "localhost:6379")),
			Password:       env("REDIS_PASSWORD", ""),
			DB:             envInt("REDIS_DB", 0),
			SearchCacheTTL: envDuration("REDIS_SEARCH_CACHE_TTL", time.Hour),
		},
		HTTP: HTTPConfig{
			Port: envInt("PORT", 3000),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "json"),
		},
		Steam: SteamConfig{
			APIKey:         env("STEAM_API_KEY", ""),
			RequestsPerSec: envFloat("STEAM_RPS", 1),
		},
		IGDB: IGDBConfig{
			ClientID:       env("IGDB_CLIENT_ID", ""),
			ClientSecret:   env("IGDB_CLIENT_SECRET", ""),
			TokenURL:       env("IGDB_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
			RequestsPerSec: envFloat("IGDB_RPS", 4),
		},
		SteamGridDB: SteamGridDBConfig{
			APIKey:         env("STEAMGRIDDB_API_KEY", ""),
			RequestsPerSec: envFloat("STEAMGRIDDB_RPS", 2),
		},
		Worker: WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", 10),
			MaxRetry:    envInt("ENRICH_MAX_RETRY", 5),
			TaskTimeout: envDuration("ENRICH_TIMEOUT", 2*time.Minute),
		},
		Enrichment: EnrichmentConfig{
			StaleAfter:      envDuration("ENRICH_STALE_AFTER", 180*24*time.Hour),
			ProviderTimeout: envDuration("PROVIDER_TIMEOUT", 10*time.Second),
			FuzzyThreshold:  envFloat("FUZZY_THRESHOLD", 0.7),
		},
		Scheduler: SchedulerConfig{
			ResyncSpec: env("RESYNC_SCHEDULE", "@every 24h"),
		},
	}
}

// Validate reports missing credentials. A failure here must abort startup.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", c.Database.URL},
		{"STEAM_API_KEY", c.Steam.APIKey},
		{"STEAMGRIDDB_API_KEY", c.SteamGridDB.APIKey},
		{"IGDB_CLIENT_ID", c.IGDB.ClientID},
		{"IGDB_CLIENT_SECRET", c.IGDB.ClientSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is not set", r.name))
		}
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Enrichment.FuzzyThreshold <= 0 || c.Enrichment.FuzzyThreshold >= 1 {
		errs = append(errs, fmt.Errorf("FUZZY_THRESHOLD must be in (0,1), got %v", c.Enrichment.FuzzyThreshold))
	}
	return errors.Join(errs...)
}

// redisAddr accepts either host:port or a redis:// URL.
func redisAddr(v string) string {
	v = strings.TrimPrefix(v, "redis://")
	if i := strings.LastIndex(v, "@"); i >= 0 {
		v = v[i+1:]
	}
	return strings.TrimSuffix(v, "/")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}
