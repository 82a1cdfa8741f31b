// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires configuration, the trigger session and its
// collaborators into a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/lattice/internal/api"
	"github.com/wingedpig/lattice/internal/config"
	"github.com/wingedpig/lattice/internal/events"
	"github.com/wingedpig/lattice/internal/logging"
	"github.com/wingedpig/lattice/internal/script"
	"github.com/wingedpig/lattice/internal/session"
	"github.com/wingedpig/lattice/internal/store"
	"github.com/wingedpig/lattice/internal/trigger"
	"github.com/wingedpig/lattice/internal/watcher"
)

// App is the main application container.
type App struct {
	opts     Options
	config   *config.Config
	log      zerolog.Logger
	eventBus *events.MemoryEventBus

	scripts   *script.Host
	unit      *trigger.Unit
	session   *session.Session
	source    session.Source
	store     *store.Store
	snapshots *snapshotService
	watcher   *watcher.FileWatcher
	apiServer *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string // Empty searches the working directory
	Host       string
	Port       int
	Debug      bool
	Version    string // Application version string

	// Input is read when no session command is configured. Defaults to
	// stdin.
	Input io.Reader

	// Output receives trigger commands when no session command is
	// configured. Defaults to stdout.
	Output io.Writer

	// LogOutput receives log output. Defaults to stderr.
	LogOutput io.Writer
}

// New loads the configuration and sets up logging and the event bus.
func New(opts Options) (*App, error) {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	level := cfg.Logging.Level
	if opts.Debug {
		level = "debug"
	}
	if _, err := logging.Setup(opts.LogOutput, level, cfg.Logging.Format); err != nil {
		return nil, err
	}

	app := &App{
		opts:   opts,
		config: cfg,
		log:    logging.Component("app"),
		done:   make(chan struct{}),
	}
	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
		Log:              logging.Component("events"),
	})
	app.eventBus.SetDefaultSession(cfg.Session.Name)
	return app, nil
}

// LoadConfig reads, expands and validates the configuration at path. An
// empty path searches the working directory and falls back to defaults
// when no file exists.
func LoadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()

	var cfg *config.Config
	if path == "" {
		found, err := loader.FindConfig()
		if err != nil {
			cfg = config.Default()
		} else {
			path = found
		}
	}
	if cfg == nil {
		var err error
		cfg, err = loader.LoadWithDefaults(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	expanded, err := config.NewTemplateExpander().ExpandConfig(cfg, config.NewTemplateContext(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to expand config: %w", err)
	}
	if err := config.NewValidator().Validate(expanded); err != nil {
		return nil, err
	}
	return expanded, nil
}

// Config returns the expanded configuration.
func (app *App) Config() *config.Config {
	return app.config
}

// EventBus returns the application event bus.
func (app *App) EventBus() events.EventBus {
	return app.eventBus
}

// Initialize builds the session and its collaborators. Nothing runs until
// Run is called.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	st, err := store.Open(cfg.Resolve(cfg.Store.Path))
	if err != nil {
		return err
	}
	app.store = st

	enc, err := session.LookupEncoding(cfg.Session.Encoding)
	if err != nil {
		return err
	}

	var sender trigger.Sender
	if command := cfg.Session.GetCommand(); len(command) > 0 {
		src, err := session.NewPTYSource(command, cfg.Session.GetEnv()...)
		if err != nil {
			return err
		}
		src.SetEncoding(enc)
		if rows, cols := cfg.Session.Rows, cfg.Session.Cols; rows > 0 && cols > 0 {
			src.Resize(uint16(rows), uint16(cols))
		}
		app.source = src
		sender = src
	} else {
		src := session.NewReaderSource("stdin", app.opts.Input)
		src.SetEncoding(enc)
		app.source = src
		sender = &writerSender{w: app.opts.Output}
	}

	app.scripts = script.NewHost(logging.Component("script"))
	app.unit = trigger.NewUnit(trigger.Env{
		Scripts:             app.scripts,
		Conn:                sender,
		Log:                 logging.Component("trigger"),
		ClearAttemptsOnFire: cfg.Engine.ClearAttemptsOnFire,
		RegexTimeout:        config.ParseDuration(cfg.Engine.RegexTimeout, 100*time.Millisecond),
		OnFire:              app.publishFire,
		OnCompileError:      app.publishCompileError,
	})

	controller := session.NewController(app.unit, sender, logging.Component("controller"))
	controller.OnEcho = func(text string) {
		app.publish(events.EventScriptEcho, map[string]interface{}{"text": text})
	}
	app.scripts.SetController(controller)

	app.session = session.New(app.unit, session.Options{
		Name:       cfg.Session.Name,
		StripANSI:  cfg.Session.ShouldStripANSI(),
		LineBuffer: cfg.Session.Buffer,
		Log:        logging.Component("session"),
	})
	app.snapshots = &snapshotService{app: app}

	if cfg.Triggers.IsWatching() && (cfg.Triggers.File != "" || len(cfg.Scripts.Init) > 0) {
		w, err := watcher.New(config.ParseDuration(cfg.Triggers.Debounce, 250*time.Millisecond), logging.Component("watcher"))
		if err != nil {
			return err
		}
		app.watcher = w
	}

	if cfg.Server.IsEnabled() {
		app.apiServer = api.NewServer(api.ServerConfig{
			Host:    cfg.Server.Host,
			Port:    cfg.Server.Port,
			TLSCert: cfg.Server.TLSCert,
			TLSKey:  cfg.Server.TLSKey,
		}, api.Dependencies{
			Session:   app.session,
			EventBus:  app.eventBus,
			Snapshots: app.snapshots,
			Log:       logging.Component("api"),
			Version:   app.opts.Version,
		})
	}
	return nil
}

// Run initializes the app, runs the session until the source ends, the
// context is cancelled, a signal arrives or Stop is called, and then shuts
// down.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		app.closeResources()
		return err
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.session.Run(gctx)
	})

	if err := app.loadInitial(gctx); err != nil {
		cancel()
		g.Wait()
		app.closeResources()
		return err
	}
	if err := app.watchFiles(gctx); err != nil {
		app.log.Warn().Err(err).Msg("file watching disabled")
	}

	app.publish(events.EventSessionStarted, map[string]interface{}{"source": app.source.Name()})

	g.Go(func() error {
		defer cancel()
		err := app.session.Pump(gctx, app.source)
		// Wait for lines already queued before stopping the session.
		if derr := app.session.Do(gctx, func(*trigger.Unit) error { return nil }); derr != nil && err == nil && gctx.Err() == nil {
			err = derr
		}
		app.publish(events.EventSessionEnded, map[string]interface{}{"source": app.source.Name()})
		return err
	})

	if app.apiServer != nil {
		g.Go(app.apiServer.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			return app.apiServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-app.done:
			app.log.Info().Msg("shutdown requested")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()
	if serr := app.shutdown(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// loadInitial fills the tree from the definitions file or, without one,
// from the profile's latest snapshot, and then runs the init scripts.
func (app *App) loadInitial(ctx context.Context) error {
	cfg := app.config
	done := logging.LogOperationStart(app.log, "load triggers")
	defer done()

	if cfg.Triggers.File != "" {
		path := cfg.Resolve(cfg.Triggers.File)
		defs, err := config.LoadTriggers(path)
		if err != nil {
			return err
		}
		config.ApplyConditionWindow(defs, cfg.Engine.DefaultConditionWindow)
		if err := app.session.Do(ctx, func(u *trigger.Unit) error {
			if err := u.Import(defs); err != nil {
				return err
			}
			u.Compile()
			return nil
		}); err != nil {
			return fmt.Errorf("import triggers: %w", err)
		}
		app.log.Info().Str("file", path).Int("roots", len(defs)).Msg("triggers loaded")
	} else {
		snap, err := app.snapshots.restoreLatest(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.log.Info().Str("profile", cfg.Store.Profile).Msg("no snapshot, starting with an empty tree")
		case err != nil:
			return err
		default:
			app.log.Info().Str("profile", cfg.Store.Profile).Str("snapshot", snap.ID).Int("roots", snap.Roots).Msg("snapshot restored")
		}
	}

	for _, p := range cfg.Scripts.Init {
		if err := app.runScript(ctx, cfg.Resolve(p)); err != nil {
			return err
		}
	}
	return nil
}

// runScript runs a Lua file on the session goroutine, where the built-ins
// may touch the unit.
func (app *App) runScript(ctx context.Context, path string) error {
	return app.session.Do(ctx, func(*trigger.Unit) error {
		return app.scripts.RunFile(path)
	})
}

// shutdown saves a final snapshot and releases resources. The session
// goroutine has exited, so the unit can be read directly.
func (app *App) shutdown() error {
	app.log.Info().Msg("shutting down")

	if app.watcher != nil {
		app.watcher.Close()
	}

	var err error
	if app.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, serr := app.snapshots.save(ctx, app.unit); serr != nil {
			app.log.Error().Err(serr).Msg("final snapshot failed")
			err = serr
		}
	}

	app.closeResources()
	app.log.Info().Msg("shutdown complete")
	return err
}

func (app *App) closeResources() {
	if app.store != nil {
		app.store.Close()
	}
	if app.scripts != nil {
		app.scripts.Close()
	}
	app.eventBus.Close()
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

func (app *App) publish(typ string, payload map[string]interface{}) {
	if err := app.eventBus.Publish(context.Background(), events.Event{Type: typ, Payload: payload}); err != nil {
		app.log.Debug().Err(err).Str("type", typ).Msg("publish failed")
	}
}

func (app *App) publishFire(f trigger.Fire) {
	payload := map[string]interface{}{
		"id":   f.ID,
		"name": f.Name,
	}
	if len(f.Captures) > 0 {
		payload["captures"] = f.Captures
	}
	app.publish(events.EventTriggerFired, payload)
}

func (app *App) publishCompileError(n *trigger.Node, err error) {
	app.publish(events.EventTriggerCompileFailed, map[string]interface{}{
		"id":    n.ID(),
		"name":  n.Name(),
		"error": err.Error(),
	})
}

// writerSender writes trigger commands to w, one per line. It is the
// connection when lines come from stdin.
type writerSender struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *writerSender) Send(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, command+"\n")
	return err
}
