// Package telemetry posts hook activity to an external collector.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/redact"
)

// DefaultTimeout bounds one POST.
const DefaultTimeout = 2 * time.Second

// MaxFieldBytes caps each serialized data field.
const MaxFieldBytes = 2000

// Event types.
const (
	TypeSessionStart    = "session_start"
	TypeSessionEnd      = "session_end"
	TypePromptSubmitted = "prompt_submitted"
	TypeToolCall        = "tool_call"
	TypeToolResult      = "tool_result"
	TypeSubagentStop    = "subagent_stop"
	TypeHook            = "hook"
)

var eventTypes = map[string]string{
	"SessionStart":     TypeSessionStart,
	"SessionEnd":       TypeSessionEnd,
	"Stop":             TypeSessionEnd,
	"UserPromptSubmit": TypePromptSubmitted,
	"PreToolUse":       TypeToolCall,
	"PostToolUse":      TypeToolResult,
	"SubagentStop":     TypeSubagentStop,
}

// TypeFor maps a hook event name to a telemetry event type.
func TypeFor(hookEvent string) string {
	if t, ok := eventTypes[hookEvent]; ok {
		return t
	}
	return TypeHook
}

// Data is the payload of an event. Each field is serialized and capped.
type Data struct {
	Tool   string `json:"tool,omitempty"`
	Input  string `json:"input,omitempty"`
	Result string `json:"result,omitempty"`
}

// Event is the wire shape accepted by the collector.
type Event struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	AgentID     string `json:"agentId"`
	Timestamp   string `json:"timestamp"`
	Data        Data   `json:"data"`
	SessionID   string `json:"sessionId"`
	ContainerID string `json:"containerId,omitempty"`
}

// Config configures a Client.
type Config struct {
	Endpoint    string
	AgentID     string
	ContainerID string
	Timeout     time.Duration
	// Redactor scrubs input and result before truncation. Nil sends them verbatim.
	Redactor *redact.Redactor
}

// Client sends events. A Client without an endpoint sends nothing.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Endpoint != ""
}

// NewEvent builds an event for one hook invocation.
func (c *Client) NewEvent(hookEvent, sessionID, tool string, input, result any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        TypeFor(hookEvent),
		AgentID:     c.cfg.AgentID,
		Timestamp:   c.now().UTC().Format(time.RFC3339Nano),
		SessionID:   sessionID,
		ContainerID: c.cfg.ContainerID,
		Data: Data{
			Tool:   truncate(tool, MaxFieldBytes),
			Input:  c.field(input),
			Result: c.field(result),
		},
	}
}

// Send posts ev to the collector.
func (c *Client) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector rejected event: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Emit sends ev when enabled. Failures are logged and dropped.
func (c *Client) Emit(ctx context.Context, ev Event) {
	if !c.Enabled() {
		return
	}
	if err := c.Send(ctx, ev); err != nil {
		c.logger.Warn("telemetry dropped", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (c *Client) field(v any) string {
	s := serialize(v)
	if s != "" && c.cfg.Redactor != nil {
		s = c.cfg.Redactor.Redact(s)
	}
	return truncate(s, MaxFieldBytes)
}

func serialize(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
