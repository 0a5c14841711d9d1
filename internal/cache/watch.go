package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault coalesces the create+write+rename burst of one cache write.
const debounceDefault = 150 * time.Millisecond

// WatchEvent describes one cache file after a write.
type WatchEvent struct {
	File      string    `json:"file"`
	Session   string    `json:"session"`
	Live      bool      `json:"live"`
	Agent     string    `json:"agent,omitempty"`
	HasPolicy bool      `json:"has_policy"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Watcher reports cache files written into a FileStore directory.
type Watcher struct {
	dir      string
	handler  func(WatchEvent)
	debounce time.Duration
	now      func() time.Time
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, handler func(WatchEvent)) *Watcher {
	return &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: debounceDefault,
		now:      time.Now,
	}
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	var mu sync.Mutex
	ready := make(map[string]bool)

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			w.handler(w.Describe(p))
		}
	}

	// Single timer reset on every event; starts stopped.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case <-timer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isEntryFile(event.Name) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// Describe reads the cache file at path.
func (w *Watcher) Describe(path string) WatchEvent {
	ev := WatchEvent{File: filepath.Base(path), Session: sessionFromFile(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	entry, err := ParseEntry(data)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Agent = string(entry.Context.Agent)
	ev.HasPolicy = entry.Evaluated != nil
	ev.Timestamp = entry.Timestamp
	ev.ExpiresAt = entry.ExpiresAt()
	ev.Live = !entry.Expired(w.now())
	return ev
}

// ScanExisting reports every cache file already in dir.
func (w *Watcher) ScanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isEntryFile(e.Name()) {
			continue
		}
		w.handler(w.Describe(filepath.Join(w.dir, e.Name())))
	}
	return nil
}

// sessionFromFile recovers the session id from a cache file name. Hashed
// names are returned as-is.
func sessionFromFile(name string) string {
	return strings.TrimSuffix(filepath.Base(name), fileSuffix)
}
