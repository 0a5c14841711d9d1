package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/model"
)

// PolicyCache stores evaluated policy per session with a TTL.
//
// Writes are best-effort: failures are logged and never returned. Reads treat
// every failure (missing, unparseable, incomplete, expired) as absence, so
// enforcement built on top of it fails open.
type PolicyCache struct {
	store  Store
	ttl    int
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a PolicyCache.
type Option func(*PolicyCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *PolicyCache) { c.now = now }
}

// WithTTL sets the ttl_seconds stamped on written entries.
func WithTTL(seconds int) Option {
	return func(c *PolicyCache) {
		if seconds > 0 {
			c.ttl = seconds
		}
	}
}

// WithLogger sets the logger for swallowed write failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *PolicyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a PolicyCache on store.
func New(store Store, opts ...Option) *PolicyCache {
	c := &PolicyCache{
		store:  store,
		ttl:    model.DefaultTTLSeconds,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the ttl_seconds stamped on new entries.
func (c *PolicyCache) TTL() int {
	return c.ttl
}

// Write records decision for sessionID with a fresh timestamp. A nil decision
// is stored as null and reads back as absent.
func (c *PolicyCache) Write(ctx context.Context, sessionID string, dctx model.DetectedContext, decision *model.PolicyDecision) {
	if sessionID == "" {
		return
	}
	entry := model.CacheEntry{
		Timestamp:  c.now().UTC(),
		TTLSeconds: c.ttl,
		Context:    dctx,
		Evaluated:  decision,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		c.logger.Warn("marshal cache entry", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := c.store.Write(ctx, sessionID, data); err != nil {
		c.logger.Warn("write cache entry", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Entry returns the live entry for sessionID.
func (c *PolicyCache) Entry(ctx context.Context, sessionID string) (*model.CacheEntry, bool) {
	if sessionID == "" {
		return nil, false
	}
	data, err := c.store.Read(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("read cache entry", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}
	entry, err := ParseEntry(data)
	if err != nil {
		c.logger.Debug("parse cache entry", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	if entry.Expired(c.now()) {
		return nil, false
	}
	return entry, true
}

// Read returns the live evaluated decision for sessionID.
func (c *PolicyCache) Read(ctx context.Context, sessionID string) (*model.PolicyDecision, bool) {
	entry, ok := c.Entry(ctx, sessionID)
	if !ok || entry.Evaluated == nil {
		return nil, false
	}
	return entry.Evaluated, true
}

// rawEntry mirrors model.CacheEntry with optional fields so that missing
// values can be told apart from zero values.
type rawEntry struct {
	Timestamp  *string                `json:"timestamp"`
	TTLSeconds *int                   `json:"ttl_seconds"`
	Context    *model.DetectedContext `json:"context"`
	Evaluated  *model.PolicyDecision  `json:"evaluated"`
}

// timestampLayouts are accepted in order. Timestamps without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseEntry decodes a cache record. It fails when the record is not JSON or
// has no usable timestamp. A missing ttl_seconds means the default.
func ParseEntry(data []byte) (*model.CacheEntry, error) {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if raw.Timestamp == nil {
		return nil, fmt.Errorf("entry has no timestamp")
	}
	ts, err := parseTimestamp(*raw.Timestamp)
	if err != nil {
		return nil, err
	}

	entry := &model.CacheEntry{
		Timestamp:  ts,
		TTLSeconds: model.DefaultTTLSeconds,
		Evaluated:  raw.Evaluated,
	}
	if raw.TTLSeconds != nil {
		entry.TTLSeconds = *raw.TTLSeconds
	}
	if raw.Context != nil {
		entry.Context = *raw.Context
	}
	return entry, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
