package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/admin"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/config"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/controllers"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/discovery"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/logging"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/mpd"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/mpv"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playbackapi"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/settings"
)

// backend is a playback engine the app owns the lifetime of
type backend interface {
	playback.Engine
	Stop() error
}

// App holds the application state
type App struct {
	config      config.Config
	logger      log.Logger
	bus         *playback.Bus
	engine      backend
	start       func(ctx context.Context) error
	settings    *settings.Manager
	controllers *controllers.Manager
	api         *playbackapi.Controller
	toggles     chan bool
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		level.Error(logger).Log("msg", "failed to create data directory", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to initialize app", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		level.Error(logger).Log("msg", "app stopped with error", "err", err)
		os.Exit(1)
	}
}

// NewApp opens the stores and builds the engine and the playback API
func NewApp(cfg config.Config, logger log.Logger) (*App, error) {
	app := &App{
		config:  cfg,
		logger:  logger,
		bus:     playback.NewBus(),
		toggles: make(chan bool),
	}

	var err error
	app.settings, err = settings.NewManager(filepath.Join(cfg.DataDir, "settings.db"))
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}
	app.controllers, err = controllers.NewManager(filepath.Join(cfg.DataDir, "controllers.db"))
	if err != nil {
		app.settings.Close()
		return nil, fmt.Errorf("controller store: %w", err)
	}

	switch cfg.Backend {
	case config.BackendMPD:
		engine := mpd.NewController(cfg.MPDAddress, cfg.MPDPassword, app.bus, app.controllers,
			logging.Component(logger, "mpd"))
		app.engine = engine
		app.start = engine.Start
	default:
		engine := mpv.NewController(cfg.MPVPath, app.bus, app.controllers,
			logging.Component(logger, "mpv"))
		app.engine = engine
		app.start = func(context.Context) error { return engine.Start() }
	}

	app.api = playbackapi.NewController(playbackapi.Config{
		Port:       cfg.APIPort,
		Hostname:   cfg.Hostname,
		Engine:     app.engine,
		Bus:        app.bus,
		Settings:   app.settings,
		Advertiser: discovery.NewZeroconfAdvertiser(nil, logging.Component(logger, "discovery")),
		Logger:     logging.Component(logger, "playback-api"),
	})

	return app, nil
}

// Run starts everything and blocks until ctx is cancelled
func (app *App) Run(ctx context.Context) error {
	defer app.Shutdown()

	if err := app.start(ctx); err != nil {
		level.Warn(app.logger).Log("msg", "failed to start player backend", "backend", app.config.Backend, "err", err)
		level.Warn(app.logger).Log("msg", "continuing without a player; commands will fail until it is reachable")
	} else {
		level.Info(app.logger).Log("msg", "player backend started", "backend", app.config.Backend)
	}

	if app.config.ForceEnable {
		if err := app.api.SetEnabled(true); err != nil {
			level.Error(app.logger).Log("msg", "could not enable playback API", "err", err)
		}
	} else if err := app.api.Restore(); err != nil {
		level.Error(app.logger).Log("msg", "could not restore playback API", "err", err)
	}

	adminServer := &http.Server{
		Addr:              app.config.AdminAddr,
		Handler:           admin.NewServer(app.api, app.toggles, app.controllers, logging.Component(app.logger, "admin")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		level.Info(app.logger).Log("msg", "admin listening", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(app.logger).Log("msg", "admin server failed", "err", err)
		}
	}()

	apiDone := make(chan struct{})
	go func() {
		defer close(apiDone)
		app.api.Run(ctx, app.toggles)
	}()

	<-ctx.Done()
	level.Info(app.logger).Log("msg", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	adminServer.Shutdown(shutdownCtx)
	<-apiDone
	return nil
}

// Shutdown releases the player and the stores
func (app *App) Shutdown() {
	if err := app.engine.Stop(); err != nil {
		level.Warn(app.logger).Log("msg", "failed to stop player backend", "err", err)
	}
	app.controllers.Close()
	app.settings.Close()
}
