// Package magazine is the backend of the Mute magazine: article storage,
// Cloudinary media and the HTTP API the editor talks to.
//
// Article mutations go through article.Service, which keeps hosted media in
// step with saved articles. Public pages are rendered with templ components
// supplied through ViewFuncs.
package magazine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/draft"
	"github.com/aldomucciarone59-web/mute-magazine/media"
	"github.com/aldomucciarone59-web/mute-magazine/mongostore"
	"github.com/aldomucciarone59-web/mute-magazine/views"
)

// ViewFuncs holds the templ components the app renders for public pages.
// Zero fields fall back to the views package.
type ViewFuncs struct {
	Article     func(a article.Article) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App wires the store, media gateway, draft tracker and HTTP server.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    article.Store
	Articles *article.Service
	Media    media.Gateway
	Drafts   draft.Tracker
	Views    ViewFuncs
	Logger   *slog.Logger
	Registry *prometheus.Registry

	uploadLimiter *UploadLimiter
	cron          *cron.Cron
	customRoutes  []func(*App)
	closers       []func(context.Context) error
	initialized   bool
}

// New creates an App with the given configuration. Init opens the
// configured backends; Start also calls it.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:   cfg,
		Echo:     echo.New(),
		Registry: prometheus.NewRegistry(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(os.Stderr, cfg.LogLevel)
	}
	a.setDefaultViews()
	return a
}

func (a *App) setDefaultViews() {
	site := views.Site{Name: a.Config.Name, URL: a.Config.URL}
	if a.Views.Article == nil {
		a.Views.Article = func(art article.Article) templ.Component { return views.Article(site, art) }
	}
	if a.Views.NotFound == nil {
		a.Views.NotFound = func() templ.Component { return views.NotFound(site) }
	}
	if a.Views.ServerError == nil {
		a.Views.ServerError = func() templ.Component { return views.ServerError(site) }
	}
}

// Init validates the configuration, opens the store, media gateway and
// draft tracker, and registers middleware and routes. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if a.Store == nil {
		store, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("magazine: init store: %w", err)
		}
		a.Store = store
	}

	if a.Media == nil {
		a.Media = media.NewCloudinary(a.Config.Media, media.WithLogger(a.Logger))
	}
	a.Media = media.Instrument(a.Media, media.NewMetrics(a.Registry))

	if a.Drafts == nil {
		tracker, err := a.openTracker(ctx)
		if err != nil {
			return fmt.Errorf("magazine: init draft tracker: %w", err)
		}
		a.Drafts = tracker
	}

	a.Articles = article.NewService(a.Store, a.Media,
		article.WithTracker(a.Drafts),
		article.WithLogger(a.Logger),
		article.WithConcurrency(a.Config.CleanupConcurrency),
	)

	a.uploadLimiter = NewUploadLimiter(a.Config.UploadsPerMinute, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

func (a *App) openStore(ctx context.Context) (article.Store, error) {
	switch a.Config.StoreDriver {
	case "mongo":
		store, err := mongostore.Open(ctx, a.Config.MongoURI, a.Config.MongoDatabase, mongostore.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		store, err := NewStore(a.Config.DatabasePath, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		return store, nil
	}
}

func (a *App) openTracker(ctx context.Context) (draft.Tracker, error) {
	if a.Config.RedisURL == "" {
		return draft.NewMemory(), nil
	}
	tracker, err := draft.OpenRedis(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return tracker.Close() })
	return tracker, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.Registry,
	}))

	e.GET("/articoli/:category/:id/", a.handleArticlePage)

	api := e.Group("/api")
	api.GET("/articles", a.handleListArticles)
	api.POST("/articles", a.handleCreateArticle)
	api.GET("/articles/:id", a.handleGetArticle)
	api.PUT("/articles/:id", a.handleUpdateArticle)
	api.DELETE("/articles/:id", a.handleDeleteArticle)
	api.POST("/upload", a.handleUpload)
	api.DELETE("/upload", a.handleDiscardUpload)
	api.DELETE("/drafts", a.handleDiscardDraft)
	api.DELETE("/media", a.handleMediaDestroy)
	api.GET("/db-stats", a.handleDBStats)
}

// StartSweeper schedules SweepDrafts on the configured cron spec.
func (a *App) StartSweeper() error {
	c := cron.New()
	_, err := c.AddFunc(a.Config.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		rep, err := a.Articles.SweepDrafts(ctx, a.Config.DraftTTL)
		if err != nil {
			a.Logger.Error("draft sweep failed", "error", err)
			return
		}
		if rep.Sessions > 0 {
			a.Logger.Info("draft sweep", "sessions", rep.Sessions, "deleted", rep.Deleted)
		}
	})
	if err != nil {
		return fmt.Errorf("magazine: sweep schedule %q: %w", a.Config.SweepSchedule, err)
	}
	c.Start()
	a.cron = c
	return nil
}

// Start initializes the app, starts the draft sweeper and serves HTTP until
// the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	if err := a.StartSweeper(); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "store", a.Config.StoreDriver)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, waits for media cleanup still running in
// the background, then releases the backends.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.Articles != nil {
		done := make(chan struct{})
		go func() {
			a.Articles.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Logger.Warn("shutdown before media cleanup finished")
		}
	}
	return errors.Join(err, a.close(ctx))
}

// Close releases the store and tracker connections.
func (a *App) Close() error {
	return a.close(context.Background())
}

func (a *App) close(ctx context.Context) error {
	if a.uploadLimiter != nil {
		a.uploadLimiter.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
