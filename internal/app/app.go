package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gdamore/tcell/v2"
	"pkt.systems/pslog"

	"github.com/dshills/linebridge/internal/config"
	"github.com/dshills/linebridge/internal/engine"
	"github.com/dshills/linebridge/internal/ui"
	"github.com/dshills/linebridge/internal/view"
)

// Options are the command-line settings.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// EnginePath overrides engine.command from the config.
	EnginePath string

	// FilePath is the file to open; empty opens a scratch view.
	FilePath string

	// LogLevel overrides logging.level from the config.
	LogLevel string
}

// themeSetter is the slice of the engine surface config reload needs.
type themeSetter interface {
	SetTheme(theme string)
}

// App owns the wired-together components for one editing session.
type App struct {
	opts Options
	log  pslog.Logger

	// cfgPath is the file Load actually consulted; the reload watcher
	// follows it whether it came from a flag or the default location.
	cfgPath string

	mu  sync.Mutex
	cfg config.Config

	logFile io.Closer
}

// New loads configuration and prepares the application.
func New(opts Options) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.EnginePath != "" {
		cfg.Engine.Command = opts.EnginePath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	a := &App{opts: opts, cfgPath: path, cfg: cfg}
	a.log, a.logFile = newLogger(cfg.Logging.Level)
	return a, nil
}

// Run starts the engine, opens the view, and runs the frontend until it
// quits. It blocks for the whole session.
func (a *App) Run(ctx context.Context) error {
	ctx = pslog.ContextWithLogger(ctx, a.log)
	if a.logFile != nil {
		defer a.logFile.Close()
	}

	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	eng := engine.New(engine.Config{
		Command:     cfg.Engine.Command,
		Args:        cfg.Engine.Args,
		ConfigDir:   cfg.Engine.ConfigDir,
		CallTimeout: cfg.Engine.CallTimeout.Std(),
	}, engine.WithLogger(a.log))

	styles := ui.NewStyleTable(tcell.StyleDefault)

	mgr := view.NewManager(eng,
		view.Config{
			FetchChunk:    cfg.Fetch.Chunk,
			CacheMaxLines: cfg.Cache.MaxLines,
		},
		view.WithLogger(a.log),
		view.OnStyle(styles.Define),
		view.OnAlert(func(msg string) {
			a.log.Warn("engine alert", "msg", msg)
		}),
	)
	eng.OnMessage(mgr.HandleMessage)

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer eng.Shutdown()

	filePath := a.opts.FilePath
	if filePath != "" {
		abs, err := filepath.Abs(filePath)
		if err != nil {
			return err
		}
		filePath = abs
	}
	v, err := mgr.Open(ctx, filePath)
	if err != nil {
		return fmt.Errorf("opening view: %w", err)
	}
	defer mgr.Close(v.ID())

	if cfg.UI.Theme != "" {
		eng.SetTheme(cfg.UI.Theme)
	}

	if a.cfgPath != "" {
		watcher, err := config.Watch(ctx, a.cfgPath, func(cfg config.Config) {
			a.applyConfig(cfg, mgr, eng)
		})
		if err != nil {
			a.log.Warn("config watch unavailable", "err", err)
		} else {
			defer watcher.Close()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}

	front := ui.New(ctx, screen, mgr, eng, v, filePath, styles)
	return front.Run(ctx, eng.Done(), cfg.UI.Mouse)
}

// applyConfig handles a live config reload. Fetch chunk size and theme
// take effect immediately; engine command, cache bound, and log level
// need a restart and are only recorded.
func (a *App) applyConfig(cfg config.Config, mgr *view.Manager, eng themeSetter) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	if cfg.Fetch.Chunk != prev.Fetch.Chunk {
		mgr.SetFetchChunk(cfg.Fetch.Chunk)
	}
	if cfg.UI.Theme != prev.UI.Theme && cfg.UI.Theme != "" {
		eng.SetTheme(cfg.UI.Theme)
	}
	a.log.Info("applied reloaded config",
		"chunk", cfg.Fetch.Chunk,
		"theme", cfg.UI.Theme)
}

// newLogger builds the session logger. It writes to a file because the
// frontend owns the terminal; stderr is only usable before tcell
// initializes.
func newLogger(level string) (pslog.Logger, io.Closer) {
	opts := pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: parseLevel(level),
	}

	dir, err := os.UserCacheDir()
	if err == nil {
		dir = filepath.Join(dir, "linebridge")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, "linebridge.log"),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				return pslog.NewWithOptions(f, opts), f
			}
		}
	}
	return pslog.NewWithOptions(io.Discard, opts), nil
}

func parseLevel(level string) pslog.Level {
	switch level {
	case "trace":
		return pslog.TraceLevel
	case "debug":
		return pslog.DebugLevel
	case "warn":
		return pslog.WarnLevel
	case "error":
		return pslog.ErrorLevel
	default:
		return pslog.InfoLevel
	}
}
