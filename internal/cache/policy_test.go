package cache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ppiankov/hookwarden/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T) (*PolicyCache, *FileStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewFileStore(t.TempDir())
	return New(store, WithClock(clock.now)), store, clock
}

func sampleDecision() *model.PolicyDecision {
	return &model.PolicyDecision{
		MatchedGuidelines: []model.Guideline{
			{ID: "backend-workers", Content: "Workers must be idempotent."},
			{ID: "no-force-push", Content: "Never force push."},
		},
		CombinedInstruction: "Workers must be idempotent.\nNever force push.",
		ToolsDenied:         []string{"Write"},
		ToolsAllowed:        []string{"Read", "Grep"},
		HITLGates:           []string{"deploy"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	want := sampleDecision()

	c.Write(ctx, "sess-1", model.DetectedContext{Agent: model.AgentBackend, Confidence: 1.0 / 3}, want)

	got, ok := c.Read(ctx, "sess-1")
	if !ok {
		t.Fatal("expected live entry")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}

	entry, ok := c.Entry(ctx, "sess-1")
	if !ok {
		t.Fatal("expected entry")
	}
	if entry.TTLSeconds != model.DefaultTTLSeconds {
		t.Errorf("expected ttl %d, got %d", model.DefaultTTLSeconds, entry.TTLSeconds)
	}
	if entry.Context.Agent != model.AgentBackend {
		t.Errorf("expected context agent backend, got %q", entry.Context.Agent)
	}
}

func TestReadExpired(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()
	c.Write(ctx, "sess-1", model.DetectedContext{}, sampleDecision())

	clock.advance(300 * time.Second)
	if _, ok := c.Read(ctx, "sess-1"); !ok {
		t.Fatal("expected entry live at exactly ttl")
	}

	clock.advance(time.Second)
	if _, ok := c.Read(ctx, "sess-1"); ok {
		t.Fatal("expected expired entry to read as absent")
	}
}

func TestWithTTL(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	c := New(NewMemoryStore(), WithClock(clock.now), WithTTL(10))
	ctx := context.Background()
	c.Write(ctx, "s", model.DetectedContext{}, sampleDecision())

	clock.advance(11 * time.Second)
	if _, ok := c.Read(ctx, "s"); ok {
		t.Fatal("expected entry to expire after custom ttl")
	}
	if c.TTL() != 10 {
		t.Errorf("expected ttl 10, got %d", c.TTL())
	}
}

func TestReadAbsentCases(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Read(ctx, "missing"); ok {
		t.Error("expected missing entry absent")
	}
	if _, ok := c.Read(ctx, ""); ok {
		t.Error("expected empty session absent")
	}

	files := map[string]string{
		"garbage":      "{not json",
		"no-timestamp": `{"ttl_seconds": 300, "evaluated": {"tools_denied": ["Write"]}}`,
		"bad-time":     `{"timestamp": "yesterday", "ttl_seconds": 300, "evaluated": {}}`,
		"no-decision":  `{"timestamp": "2026-03-01T10:00:00Z", "ttl_seconds": 300, "evaluated": null}`,
		"array":        `[1,2,3]`,
	}
	for name, content := range files {
		if err := os.WriteFile(store.Path(name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	for name := range files {
		if _, ok := c.Read(ctx, name); ok {
			t.Errorf("expected %s to read as absent", name)
		}
	}
}

func TestReadAcceptsNaiveTimestampAndDefaultTTL(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	record := `{"timestamp": "2026-03-01T09:58:00.123456", "context": {"agent": "frontend"}, "evaluated": {"tools_denied": ["Bash"]}}`
	if err := os.WriteFile(store.Path("py"), []byte(record), 0600); err != nil {
		t.Fatal(err)
	}

	entry, ok := c.Entry(ctx, "py")
	if !ok {
		t.Fatal("expected naive UTC timestamp to parse")
	}
	if entry.TTLSeconds != model.DefaultTTLSeconds {
		t.Errorf("expected default ttl, got %d", entry.TTLSeconds)
	}
	if !entry.Evaluated.Denies("Bash") {
		t.Errorf("expected Bash denied, got %v", entry.Evaluated.ToolsDenied)
	}
}

func TestWriteNilDecisionReadsAbsent(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	c.Write(ctx, "sess", model.DetectedContext{Action: model.ActionFix}, nil)

	if _, ok := c.Read(ctx, "sess"); ok {
		t.Error("expected nil decision to read as absent")
	}
	if _, ok := c.Entry(ctx, "sess"); !ok {
		t.Error("expected entry itself to be live")
	}
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	// A regular file where the cache directory should be.
	c := New(NewFileStore(filepath.Join(blocker, "cache")))
	c.Write(context.Background(), "sess", model.DetectedContext{}, sampleDecision())

	if _, ok := c.Read(context.Background(), "sess"); ok {
		t.Error("expected nothing readable after failed write")
	}
}

func TestLastWriteWins(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	c.Write(ctx, "sess", model.DetectedContext{}, &model.PolicyDecision{ToolsDenied: []string{"Write"}})
	c.Write(ctx, "sess", model.DetectedContext{}, &model.PolicyDecision{ToolsDenied: []string{"Bash"}})

	got, ok := c.Read(ctx, "sess")
	if !ok {
		t.Fatal("expected entry")
	}
	if got.Denies("Write") || !got.Denies("Bash") {
		t.Errorf("expected last write to win, got %v", got.ToolsDenied)
	}
}
