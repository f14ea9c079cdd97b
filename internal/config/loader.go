package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file, overlays recognized environment
// variables (which always win, per spec §6), and optionally watches the
// file for changes.
type Loader struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback invoked with the reloaded config
// whenever the watched file changes.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) { l.onChange = fn }
}

// NewLoader creates a Loader for the YAML file at path. An empty path is
// valid: Load then returns a Config built from defaults and environment
// variables alone.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the config file (if any), applies the environment overlay,
// fills defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
		}
	}

	applyEnvOverlay(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverlay overwrites cfg fields with the environment variables
// named in spec §6, when set. Environment wins over the file, matching the
// original service's "env wins over stored credentials" rule.
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		cfg.SupabaseServiceKey = v
	}
	if v := PortFromEnv(os.Getenv("PORT"), os.Getenv("ARCHON_MCP_PORT")); v != 0 {
		cfg.Port = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DOCUMENTS_BASE_PATH"); v != "" {
		cfg.DocumentsBasePath = v
	}
}

// Watch reloads the config whenever the underlying file changes, invoking
// onChange with each successfully reloaded Config. It blocks until ctx is
// cancelled. A Loader with no path simply blocks until ctx is done, since
// there is nothing to watch.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	l.watcher = watcher
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	target := filepath.Base(l.path)
	var debounce *time.Timer
	const debounceDelay = 150 * time.Millisecond

	reload := func() {
		cfg, err := l.Load()
		if err != nil {
			slog.Error("config reload failed", "error", err)
			return
		}
		slog.Info("config reloaded")
		if l.onChange != nil {
			l.onChange(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// Close releases the Loader's watcher, if one was started.
func (l *Loader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
