package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "10s" or "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Engine configures the backend process.
type Engine struct {
	// Command is the engine executable. Args are passed verbatim.
	Command string   `toml:"command"`
	Args    []string `toml:"args"`

	// ConfigDir is forwarded to the engine at startup so it can load
	// its own settings. Empty means the engine's default.
	ConfigDir string `toml:"config_dir"`

	// CallTimeout bounds synchronous requests to the engine.
	CallTimeout Duration `toml:"call_timeout"`
}

// Cache configures the per-view line cache.
type Cache struct {
	// MaxLines bounds cache growth. A document taller than this renders
	// from placeholder lines until the window is fetched.
	MaxLines int `toml:"max_lines"`
}

// Fetch configures missing-line fetch behavior.
type Fetch struct {
	// Chunk is the granularity fetch requests are widened to.
	Chunk int `toml:"chunk"`
}

// UI configures the terminal frontend.
type UI struct {
	Theme string `toml:"theme"`
	Mouse bool   `toml:"mouse"`
}

// Logging configures diagnostic output.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the root linebridge configuration.
type Config struct {
	Engine  Engine  `toml:"engine"`
	Cache   Cache   `toml:"cache"`
	Fetch   Fetch   `toml:"fetch"`
	UI      UI      `toml:"ui"`
	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: Engine{
			Command:     "xi-core",
			CallTimeout: Duration(10 * time.Second),
		},
		Cache: Cache{MaxLines: 10000},
		Fetch: Fetch{Chunk: 64},
		UI: UI{
			Theme: "default",
			Mouse: true,
		},
		Logging: Logging{Level: "info"},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "linebridge", "config.toml")
}

// Load reads the TOML file at path, layered over defaults and under
// environment overrides. A missing file is not an error: defaults and
// environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers LINEBRIDGE_* environment variables over cfg.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LINEBRIDGE_ENGINE"); ok {
		cfg.Engine.Command = v
	}
	if v, ok := os.LookupEnv("LINEBRIDGE_CONFIG_DIR"); ok {
		cfg.Engine.ConfigDir = v
	}
	if v, ok := os.LookupEnv("LINEBRIDGE_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("LINEBRIDGE_THEME"); ok {
		cfg.UI.Theme = v
	}
}

func (c Config) validate() error {
	if c.Engine.Command == "" {
		return fmt.Errorf("engine.command must not be empty")
	}
	if c.Engine.CallTimeout < 0 {
		return fmt.Errorf("engine.call_timeout must not be negative")
	}
	if c.Cache.MaxLines < 0 {
		return fmt.Errorf("cache.max_lines must not be negative")
	}
	if c.Fetch.Chunk < 0 {
		return fmt.Errorf("fetch.chunk must not be negative")
	}
	return nil
}
