package magazine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/draft"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// SiteConfig holds all configuration for a magazine site.
type SiteConfig struct {
	Name string `env:"MUTE_SITE_NAME"` // Site name (default "Mute Magazine")
	URL  string `env:"MUTE_SITE_URL"`  // Canonical URL (default "http://localhost:3000")
	Addr string `env:"MUTE_ADDR"`      // Listen address (default ":3000")

	StoreDriver   string `env:"MUTE_STORE_DRIVER"`   // "sqlite" (default) or "mongo"
	DatabasePath  string `env:"MUTE_DATABASE_PATH"`  // SQLite path (default "data/magazine.db")
	MongoURI      string `env:"MUTE_MONGO_URI"`      // Required for the mongo driver
	MongoDatabase string `env:"MUTE_MONGO_DATABASE"` // default "mute_magazine"

	SessionSecret string `env:"MUTE_SESSION_SECRET"` // Required: editing session cookie secret
	CookieSecure  bool   `env:"MUTE_COOKIE_SECURE"`  // Set true for HTTPS

	RedisURL           string        `env:"MUTE_REDIS_URL"`           // Shared draft tracker; in-memory when empty
	DraftTTL           time.Duration `env:"MUTE_DRAFT_TTL"`           // Idle time before a draft is swept (default 24h)
	SweepSchedule      string        `env:"MUTE_SWEEP_SCHEDULE"`      // cron spec (default "@hourly")
	CleanupConcurrency int           `env:"MUTE_CLEANUP_CONCURRENCY"` // Parallel media deletions (default 4)
	UploadsPerMinute   int           `env:"MUTE_UPLOADS_PER_MINUTE"`  // Per-IP upload limit (default 30)

	LogLevel string `env:"MUTE_LOG_LEVEL"` // debug, info, warn or error (default "info")

	Media media.Config
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Mute Magazine"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "sqlite"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/magazine.db"
	}
	if c.DraftTTL == 0 {
		c.DraftTTL = 24 * time.Hour
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "@hourly"
	}
	if c.CleanupConcurrency == 0 {
		c.CleanupConcurrency = 4
	}
	if c.UploadsPerMinute == 0 {
		c.UploadsPerMinute = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c SiteConfig) validate() error {
	if c.SessionSecret == "" {
		return errors.New("magazine: SessionSecret is required")
	}
	switch c.StoreDriver {
	case "sqlite":
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("magazine: MongoURI is required for the mongo store")
		}
	default:
		return fmt.Errorf("magazine: unknown store driver %q", c.StoreDriver)
	}
	return nil
}

// LoadConfig reads the configuration from the environment. Variables in the
// given dotenv files (default ".env") are loaded first without overriding the
// environment; missing files are ignored.
func LoadConfig(files ...string) (SiteConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SiteConfig{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg, err := env.ParseAs[SiteConfig]()
	if err != nil {
		return SiteConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStore uses store instead of opening the configured database.
func WithStore(store article.Store) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithGateway uses gw instead of the configured Cloudinary account.
func WithGateway(gw media.Gateway) Option {
	return func(a *App) {
		a.Media = gw
	}
}

// WithTracker uses t instead of the configured draft tracker.
func WithTracker(t draft.Tracker) Option {
	return func(a *App) {
		a.Drafts = t
	}
}

// WithLogger replaces the logger built from LogLevel.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithViews overrides the public page components. Nil fields keep the
// defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
