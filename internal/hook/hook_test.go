package hook

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/model"
)

func TestParseAliases(t *testing.T) {
	tests := []struct {
		name, in            string
		tool, session, path string
	}{
		{
			"claude style",
			`{"hook_event_name":"PreToolUse","tool_name":"Write","tool_input":{"file_path":"a.go"},"session_id":"s1"}`,
			"Write", "s1", "a.go",
		},
		{
			"generic style",
			`{"tool":"Edit","arguments":{"file_path":"b.go"},"sessionId":"s2"}`,
			"Edit", "s2", "b.go",
		},
		{
			"tool wins over tool_name",
			`{"tool":"Edit","tool_name":"Write","arguments":{"file_path":"c.go"},"tool_input":{"file_path":"d.go"}}`,
			"Edit", "", "c.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			req := in.Request()
			if req.Tool != tt.tool || req.SessionID != tt.session {
				t.Errorf("got tool=%q session=%q", req.Tool, req.SessionID)
			}
			if p, _ := req.StringArg("file_path"); p != tt.path {
				t.Errorf("expected file_path %q, got %q", tt.path, p)
			}
		})
	}
}

func TestParseExtraFields(t *testing.T) {
	in, err := Parse(strings.NewReader(`{"hook_event_name":"SubagentStart","prompt":"fix it","agent_type":"backend","parent_session_id":"p","tool_response":{"ok":true}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.HookEvent != "SubagentStart" || in.Prompt != "fix it" || in.AgentType != "backend" || in.ParentSessionID != "p" {
		t.Errorf("unexpected input %+v", in)
	}
	if in.ToolResponse == nil {
		t.Error("expected tool_response decoded")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "not json", "[1,2]", `{"tool": 5}`} {
		if _, err := Parse(strings.NewReader(s)); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestRespond(t *testing.T) {
	tests := []struct {
		name               string
		outcome            model.Outcome
		code               int
		stdout, stderrPart string
	}{
		{"allow", model.Outcome{Gate: "policy", Verdict: model.Allow}, ExitAllow, "", ""},
		{"warn", model.Outcome{Gate: "policy", Verdict: model.Warn, Advisory: "tool Bash not allowed"}, ExitAllow, `{"additionalContext":"tool Bash not allowed"}` + "\n", ""},
		{"block", model.Outcome{Gate: "identity", Verdict: model.Block, Reason: "docs/a.md forbidden"}, ExitBlock, "", "docs/a.md forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := Respond(tt.outcome, &stdout, &stderr)
			if code != tt.code {
				t.Errorf("expected exit %d, got %d", tt.code, code)
			}
			if stdout.String() != tt.stdout {
				t.Errorf("unexpected stdout %q", stdout.String())
			}
			if tt.stderrPart == "" && stderr.Len() != 0 {
				t.Errorf("unexpected stderr %q", stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.stderrPart) {
				t.Errorf("expected stderr to contain %q, got %q", tt.stderrPart, stderr.String())
			}
		})
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	out := Guard(zap.NewNop(), "policy", func() model.Outcome {
		var m map[string]int
		m["boom"] = 1
		return model.Outcome{Verdict: model.Block}
	})
	if out.Verdict != model.Allow || out.Gate != "policy" {
		t.Errorf("expected allow after panic, got %+v", out)
	}

	out = Guard(zap.NewNop(), "policy", func() model.Outcome {
		return model.Outcome{Gate: "policy", Verdict: model.Block}
	})
	if out.Verdict != model.Block {
		t.Errorf("expected block passed through, got %+v", out)
	}
}
