package mcp

import (
	"context"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/hookwarden/internal/detect"
	"github.com/ppiankov/hookwarden/internal/enforce"
	"github.com/ppiankov/hookwarden/internal/hook"
	"github.com/ppiankov/hookwarden/internal/model"
	"github.com/ppiankov/hookwarden/internal/restrict"
)

// --- Input/Output types ---

// DetectInput defines parameters for the hookwarden_detect tool.
type DetectInput struct {
	Prompt       string `json:"prompt" jsonschema:"prompt text to classify"`
	DefaultAgent string `json:"default_agent,omitempty" jsonschema:"agent assumed when the prompt names none"`
}

// DetectOutput is the detected context.
type DetectOutput struct {
	Agent      string  `json:"agent,omitempty"`
	Domain     string  `json:"domain,omitempty"`
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence"`
}

// CheckInput defines parameters for the hookwarden_check tool.
type CheckInput struct {
	SessionID string         `json:"session_id,omitempty" jsonschema:"session whose cached policy applies"`
	Tool      string         `json:"tool" jsonschema:"tool name, e.g. Write or Bash"`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"tool arguments, e.g. file_path or command"`
}

// GateResult is the outcome of one gate.
type GateResult struct {
	Gate     string `json:"gate"`
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
	Advisory string `json:"advisory,omitempty"`
}

// CheckOutput contains the combined decision and the per-gate results.
type CheckOutput struct {
	Decision string       `json:"decision"`
	Gates    []GateResult `json:"gates"`
}

// CacheInput defines parameters for the hookwarden_cache tool.
type CacheInput struct {
	SessionID string `json:"session_id" jsonschema:"session id"`
}

// CacheOutput summarizes a live cache entry.
type CacheOutput struct {
	Live                bool     `json:"live"`
	Agent               string   `json:"agent,omitempty"`
	Timestamp           string   `json:"timestamp,omitempty"`
	ExpiresAt           string   `json:"expires_at,omitempty"`
	HasPolicy           bool     `json:"has_policy"`
	ToolsDenied         []string `json:"tools_denied,omitempty"`
	ToolsAllowed        []string `json:"tools_allowed,omitempty"`
	HITLGates           []string `json:"hitl_gates,omitempty"`
	Guidelines          []string `json:"guidelines,omitempty"`
	CombinedInstruction string   `json:"combined_instruction,omitempty"`
}

// --- Handlers ---

func (s *Server) handleDetect(_ context.Context, _ *mcpsdk.CallToolRequest, input DetectInput) (*mcpsdk.CallToolResult, DetectOutput, error) {
	defaultAgent := input.DefaultAgent
	if defaultAgent == "" {
		defaultAgent = s.defaultAgent
	}
	dc := detect.Detect(input.Prompt, defaultAgent)
	return nil, DetectOutput{
		Agent:      string(dc.Agent),
		Domain:     string(dc.Domain),
		Action:     string(dc.Action),
		Confidence: dc.Confidence,
	}, nil
}

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	if input.Tool == "" {
		return nil, CheckOutput{}, errors.New("tool is required")
	}
	req := model.ToolCallRequest{
		Tool:      input.Tool,
		Arguments: input.Arguments,
		SessionID: input.SessionID,
	}

	outcomes := []model.Outcome{
		hook.Guard(s.logger, enforce.GateIdentity, func() model.Outcome { return s.engine.IdentityGate(ctx, req) }),
		hook.Guard(s.logger, enforce.GatePolicy, func() model.Outcome { return s.engine.PolicyGate(ctx, req) }),
	}
	if len(s.allowedPaths) > 0 {
		outcomes = append(outcomes, restrict.Check(req, s.allowedPaths))
	}

	out := CheckOutput{Decision: string(model.Allow)}
	for _, o := range outcomes {
		out.Gates = append(out.Gates, GateResult{
			Gate:     o.Gate,
			Decision: string(o.Verdict),
			Reason:   o.Reason,
			Advisory: o.Advisory,
		})
		out.Decision = string(worse(model.Verdict(out.Decision), o.Verdict))
		s.recordAudit(input.SessionID, req, o)
	}
	return nil, out, nil
}

func (s *Server) handleCache(ctx context.Context, _ *mcpsdk.CallToolRequest, input CacheInput) (*mcpsdk.CallToolResult, CacheOutput, error) {
	if input.SessionID == "" {
		return nil, CacheOutput{}, errors.New("session_id is required")
	}
	entry, ok := s.cache.Entry(ctx, input.SessionID)
	if !ok {
		return nil, CacheOutput{}, nil
	}

	out := CacheOutput{
		Live:      true,
		Agent:     string(entry.Context.Agent),
		Timestamp: entry.Timestamp.Format(time.RFC3339),
		ExpiresAt: entry.ExpiresAt().Format(time.RFC3339),
		HasPolicy: entry.Evaluated != nil,
	}
	if d := entry.Evaluated; d != nil {
		out.ToolsDenied = d.ToolsDenied
		out.ToolsAllowed = d.ToolsAllowed
		out.HITLGates = d.HITLGates
		out.CombinedInstruction = d.CombinedInstruction
		for _, g := range d.MatchedGuidelines {
			out.Guidelines = append(out.Guidelines, g.ID)
		}
	}
	return nil, out, nil
}

// worse returns the more restrictive verdict.
func worse(a, b model.Verdict) model.Verdict {
	rank := map[model.Verdict]int{model.Allow: 0, model.Warn: 1, model.Block: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
