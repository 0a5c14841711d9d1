// Package hook decodes agent-runtime hook input and encodes gate outcomes
// as exit codes.
package hook

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/model"
)

// Exit codes understood by the agent runtime.
const (
	ExitAllow = 0
	ExitBlock = 2
)

// maxInput bounds how much of stdin is decoded.
const maxInput = 8 << 20

// Input is one hook invocation. Field aliases used by different runtimes
// are folded together by Parse.
type Input struct {
	HookEvent       string         `json:"hook_event_name"`
	Tool            string         `json:"tool"`
	Arguments       map[string]any `json:"arguments"`
	SessionID       string         `json:"session_id"`
	Prompt          string         `json:"prompt"`
	ToolResponse    any            `json:"tool_response"`
	AgentType       string         `json:"agent_type"`
	ParentSessionID string         `json:"parent_session_id"`
	Cwd             string         `json:"cwd"`
}

// wireInput carries both spellings of each aliased field.
type wireInput struct {
	HookEvent       string         `json:"hook_event_name"`
	Tool            string         `json:"tool"`
	ToolName        string         `json:"tool_name"`
	Arguments       map[string]any `json:"arguments"`
	ToolInput       map[string]any `json:"tool_input"`
	SessionID       string         `json:"session_id"`
	SessionIDCamel  string         `json:"sessionId"`
	Prompt          string         `json:"prompt"`
	ToolResponse    any            `json:"tool_response"`
	AgentType       string         `json:"agent_type"`
	ParentSessionID string         `json:"parent_session_id"`
	Cwd             string         `json:"cwd"`
}

// Parse decodes hook input from r.
func Parse(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInput))
	if err != nil {
		return nil, fmt.Errorf("read hook input: %w", err)
	}
	var w wireInput
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode hook input: %w", err)
	}

	in := &Input{
		HookEvent:       w.HookEvent,
		Tool:            firstNonEmpty(w.Tool, w.ToolName),
		Arguments:       w.Arguments,
		SessionID:       firstNonEmpty(w.SessionIDCamel, w.SessionID),
		Prompt:          w.Prompt,
		ToolResponse:    w.ToolResponse,
		AgentType:       w.AgentType,
		ParentSessionID: w.ParentSessionID,
		Cwd:             w.Cwd,
	}
	if in.Arguments == nil {
		in.Arguments = w.ToolInput
	}
	return in, nil
}

// Request returns the tool call carried by the input.
func (in *Input) Request() model.ToolCallRequest {
	return model.ToolCallRequest{
		Tool:      in.Tool,
		Arguments: in.Arguments,
		SessionID: in.SessionID,
	}
}

type additionalContext struct {
	AdditionalContext string `json:"additionalContext"`
}

// Respond writes outcome in hook form and returns the exit code. A block
// puts the reason on stderr; an advisory goes to stdout as additionalContext.
func Respond(outcome model.Outcome, stdout, stderr io.Writer) int {
	if outcome.Verdict == model.Block {
		fmt.Fprintf(stderr, "hookwarden: BLOCKED [%s] %s\n", outcome.Gate, outcome.Reason)
		return ExitBlock
	}
	if outcome.Advisory != "" {
		data, err := json.Marshal(additionalContext{AdditionalContext: outcome.Advisory})
		if err == nil {
			fmt.Fprintln(stdout, string(data))
		}
	}
	return ExitAllow
}

// Guard runs gate and degrades any panic to allow.
func Guard(logger *zap.Logger, gate string, fn func() model.Outcome) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("gate panicked, allowing", zap.String("gate", gate), zap.Any("panic", r))
			out = model.Outcome{Gate: gate, Verdict: model.Allow}
		}
	}()
	return fn()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
