// Package filewatcher reports debounced changes to a single file.
package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
	Error     error // set when the underlying watcher reported an error
}

// ChangeListener receives change notifications.
type ChangeListener interface {
	OnFileChange(event ChangeEvent)
}

// ListenerFunc adapts a function to ChangeListener.
type ListenerFunc func(event ChangeEvent)

// OnFileChange calls f(event).
func (f ListenerFunc) OnFileChange(event ChangeEvent) { f(event) }

// Watcher monitors one file. The parent directory is watched so that editors
// which save by rename-and-replace are still observed.
type Watcher struct {
	watcher       *fsnotify.Watcher
	filePath      string
	debounceDelay time.Duration

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewWatcher creates a watcher for filePath with the given debounce delay.
func NewWatcher(filePath string, debounceDelay time.Duration) (*Watcher, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	return &Watcher{
		watcher:       fsWatcher,
		filePath:      absPath,
		debounceDelay: debounceDelay,
	}, nil
}

// AddListener registers a listener.
func (w *Watcher) AddListener(listener ChangeListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, listener)
}

// Start blocks until ctx is done or the watcher is closed.
// Bursts of writes within the debounce delay produce one notification.
// No listener runs after Start has returned.
func (w *Watcher) Start(ctx context.Context) error {
	var (
		timer   *time.Timer
		timerMu sync.Mutex
		pending sync.WaitGroup
	)
	defer func() {
		timerMu.Lock()
		if timer != nil && timer.Stop() {
			pending.Done()
		}
		timerMu.Unlock()
		pending.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			timerMu.Lock()
			if timer != nil && timer.Stop() {
				pending.Done()
			}
			pending.Add(1)
			timer = time.AfterFunc(w.debounceDelay, func() {
				defer pending.Done()
				if ctx.Err() != nil {
					return
				}
				w.notifyListeners(ChangeEvent{Path: w.filePath, Timestamp: time.Now()})
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.notifyListeners(ChangeEvent{Path: w.filePath, Timestamp: time.Now(), Error: err})
		}
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// notifyListeners calls listeners synchronously, in registration order.
func (w *Watcher) notifyListeners(event ChangeEvent) {
	w.mu.RLock()
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()

	for _, listener := range listeners {
		listener.OnFileChange(event)
	}
}
