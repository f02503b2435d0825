// Package watcher reloads the configuration file while the console runs
// and hands changed configurations to a Reloader.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/shared/filewatcher"
	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// DefaultDebounce coalesces editor save bursts.
const DefaultDebounce = 100 * time.Millisecond

// Reloader applies a changed configuration.
type Reloader interface {
	Reload(ctx context.Context, cfg *config.Config) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context, cfg *config.Config) error

// Reload calls f(ctx, cfg).
func (f ReloaderFunc) Reload(ctx context.Context, cfg *config.Config) error { return f(ctx, cfg) }

// ConfigWatcher reloads the configuration file on change and passes it to
// the reloader when its content differs from the last applied one.
type ConfigWatcher struct {
	loader       config.Loader
	reloader     Reloader
	configPath   string
	debounce     time.Duration
	logger       logging.Logger
	reloadNotify chan struct{}

	mu       sync.Mutex
	lastHash string
}

// WatcherConfig contains the dependencies of a ConfigWatcher
type WatcherConfig struct {
	Loader     config.Loader
	Reloader   Reloader
	Current    *config.Config // Configuration in effect when watching starts
	ConfigPath string
	Debounce   time.Duration
	Logger     logging.Logger
	// ReloadNotify, when set, receives a value after each reload attempt.
	ReloadNotify chan struct{}
}

// New creates a ConfigWatcher.
func New(cfg WatcherConfig) (*ConfigWatcher, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if cfg.Reloader == nil {
		return nil, fmt.Errorf("reloader is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	hash := ""
	if cfg.Current != nil {
		h, err := calculateConfigHash(cfg.Current)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate initial config hash: %w", err)
		}
		hash = h
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &ConfigWatcher{
		loader:       cfg.Loader,
		reloader:     cfg.Reloader,
		configPath:   cfg.ConfigPath,
		debounce:     debounce,
		logger:       cfg.Logger.WithModule("watcher"),
		reloadNotify: cfg.ReloadNotify,
		lastHash:     hash,
	}, nil
}

// Watch blocks until ctx is done. A missing parent directory is an error;
// a missing file is not, it is picked up once created.
func (w *ConfigWatcher) Watch(ctx context.Context) error {
	fw, err := filewatcher.NewWatcher(w.configPath, w.debounce)
	if err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	defer fw.Close()

	fw.AddListener(filewatcher.ListenerFunc(func(event filewatcher.ChangeEvent) {
		if event.Error != nil {
			w.logger.Error("fsnotify error", "error", event.Error)
			return
		}
		w.checkAndReload(ctx)
	}))

	w.logger.Info("Watching configuration file", "path", w.configPath)
	err = fw.Start(ctx)
	w.logger.Info("Configuration watch stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *ConfigWatcher) checkAndReload(ctx context.Context) {
	if w.reloadNotify != nil {
		defer func() {
			select {
			case w.reloadNotify <- struct{}{}:
			default:
			}
		}()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	newConfig, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Failed to load configuration", "error", err)
		return
	}

	newHash, err := calculateConfigHash(newConfig)
	if err != nil {
		w.logger.Error("Failed to calculate config hash", "error", err)
		return
	}
	if newHash == w.lastHash {
		w.logger.Debug("Configuration unchanged")
		return
	}

	w.logger.Info("Configuration changed, reloading")
	if err := w.reloader.Reload(ctx, newConfig); err != nil {
		w.logger.Error("Failed to apply configuration", "error", err)
		return
	}

	w.lastHash = newHash
	w.logger.Info("Configuration reloaded successfully")
}

func calculateConfigHash(cfg *config.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
