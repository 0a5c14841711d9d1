package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/hookwarden/internal/model"
)

func TestWatcherDescribe(t *testing.T) {
	c, store, clock := newTestCache(t)
	ctx := context.Background()
	c.Write(ctx, "sess-a", model.DetectedContext{Agent: model.AgentDevops}, sampleDecision())

	w := NewWatcher(store.Dir(), func(WatchEvent) {})
	w.now = clock.now

	ev := w.Describe(store.Path("sess-a"))
	if ev.Session != "sess-a" || ev.File != "sess-a.json" {
		t.Errorf("unexpected names %+v", ev)
	}
	if !ev.Live || !ev.HasPolicy || ev.Agent != "devops" {
		t.Errorf("unexpected event %+v", ev)
	}
	if !ev.ExpiresAt.Equal(clock.t.Add(300 * time.Second)) {
		t.Errorf("unexpected expiry %v", ev.ExpiresAt)
	}

	clock.advance(301 * time.Second)
	if ev := w.Describe(store.Path("sess-a")); ev.Live {
		t.Error("expected expired entry reported not live")
	}

	if ev := w.Describe(filepath.Join(store.Dir(), "absent.json")); ev.Error == "" {
		t.Error("expected error for missing file")
	}
}

func TestWatcherScanExisting(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()
	c.Write(ctx, "one", model.DetectedContext{}, sampleDecision())
	c.Write(ctx, "two", model.DetectedContext{}, nil)
	if err := os.WriteFile(filepath.Join(store.Dir(), ".one-123.tmp"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	var got []WatchEvent
	w := NewWatcher(store.Dir(), func(ev WatchEvent) { got = append(got, ev) })
	if err := w.ScanExisting(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}

	missing := NewWatcher(filepath.Join(t.TempDir(), "nope"), func(WatchEvent) {})
	if err := missing.ScanExisting(); err != nil {
		t.Errorf("expected nil for missing dir, got %v", err)
	}
}

func TestWatcherRunReportsWrites(t *testing.T) {
	dir := t.TempDir()
	c := New(NewFileStore(dir))

	events := make(chan WatchEvent, 8)
	w := NewWatcher(dir, func(ev WatchEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	c.Write(ctx, "watched", model.DetectedContext{Agent: model.AgentBackend}, sampleDecision())

	select {
	case ev := <-events:
		if ev.Session != "watched" || !ev.HasPolicy {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
}
