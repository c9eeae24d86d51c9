package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	AppEnv       string
	ListenAddr   string
	DatabaseURL  string
	ServiceToken string

	AllowedOrigins string

	TelegramToken string

	ChallongeURL           string
	ChallongeRatePerMinute int

	MinGames           int
	MaxGames           int
	SessionIdleTimeout time.Duration
	CommittedRetention time.Duration
	SweepInterval      time.Duration
	SyncRetryInterval  time.Duration

	CatalogFile string

	R2 R2Config
}

// R2Config configures the report archive bucket. Archive is off when Bucket is empty.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

func (c R2Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads the configuration. Call godotenv.Load() first if a .env file should be honored.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getenv("APP_ENV", "production"),
		ListenAddr:     getenv("LISTEN_ADDR", ":5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServiceToken:   os.Getenv("GAME_SERVICE_TOKEN"),
		AllowedOrigins: getenv("ALLOWED_ORIGINS", "http://localhost:3000"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChallongeURL:   getenv("CHALLONGE_URL", "https://api.challonge.com/v2.1/"),
		CatalogFile:    os.Getenv("CATALOG_FILE"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		return nil, errors.New("GAME_SERVICE_TOKEN environment variable not set")
	}

	var err error
	if cfg.ChallongeRatePerMinute, err = intEnv("CHALLONGE_RATE_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.MinGames, err = intEnv("MIN_GAMES", 2); err != nil {
		return nil, err
	}
	if cfg.MaxGames, err = intEnv("MAX_GAMES", 5); err != nil {
		return nil, err
	}
	if cfg.MinGames < 1 || cfg.MaxGames < cfg.MinGames {
		return nil, fmt.Errorf("invalid game count range [%d, %d]", cfg.MinGames, cfg.MaxGames)
	}
	if cfg.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CommittedRetention, err = durationEnv("COMMITTED_RETENTION", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncRetryInterval, err = durationEnv("SYNC_RETRY_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.R2.Enabled() && cfg.R2.CDNBaseURL == "" {
		cfg.R2.CDNBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30m): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
