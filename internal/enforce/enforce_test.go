package enforce

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/identity"
	"github.com/ppiankov/hookwarden/internal/model"
)

type staticEmail string

func (s staticEmail) Email(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no email")
	}
	return string(s), nil
}

const (
	backendEmail  = "backend-agent@hookwarden.local"
	frontendEmail = "frontend-agent@hookwarden.local"
	orchEmail     = "orchestrator@hookwarden.local"
)

func newEngine(email string) (*Engine, *cache.PolicyCache) {
	pc := cache.New(cache.NewMemoryStore())
	r := identity.NewResolver(nil, nil, staticEmail(email))
	return New(r, pc, "/repo", nil), pc
}

func call(tool string, args map[string]any) model.ToolCallRequest {
	return model.ToolCallRequest{Tool: tool, Arguments: args, SessionID: "sess"}
}

func TestIdentityGate(t *testing.T) {
	tests := []struct {
		name  string
		email string
		req   model.ToolCallRequest
		want  model.Verdict
	}{
		{"unknown identity allowed", "stranger@example.com", call("Write", map[string]any{"file_path": "docs/a.md"}), model.Allow},
		{"no email allowed", "", call("Write", map[string]any{"file_path": "../../etc/passwd"}), model.Allow},
		{"backend forbidden dir", backendEmail, call("Write", map[string]any{"file_path": "docs/readme.md"}), model.Block},
		{"backend sibling dir allowed", backendEmail, call("Write", map[string]any{"file_path": "docsx/readme.md"}), model.Allow},
		{"backend wildcard", backendEmail, call("Edit", map[string]any{"file_path": "web/app/Button.tsx"}), model.Block},
		{"backend absolute inside root", backendEmail, call("MultiEdit", map[string]any{"file_path": "/repo/frontend/app.js"}), model.Block},
		{"backend absolute outside root", backendEmail, call("Write", map[string]any{"file_path": "/elsewhere/frontend/app.js"}), model.Allow},
		{"backend own dir", backendEmail, call("Write", map[string]any{"file_path": "backend/api.go"}), model.Allow},
		{"frontend sql", frontendEmail, call("Write", map[string]any{"file_path": "db/001_init.sql"}), model.Block},
		{"notebook path field", frontendEmail, call("NotebookEdit", map[string]any{"notebook_path": "infra/plan.ipynb"}), model.Block},
		{"tool name case-insensitive", backendEmail, call("write", map[string]any{"file_path": "docs/x.md"}), model.Block},
		{"traversal blocked", backendEmail, call("Write", map[string]any{"file_path": "backend/../../etc/passwd"}), model.Block},
		{"traversal blocked for orchestrator", orchEmail, call("Edit", map[string]any{"file_path": "../secrets"}), model.Block},
		{"orchestrator unrestricted", orchEmail, call("Write", map[string]any{"file_path": "docs/readme.md"}), model.Allow},
		{"missing path allowed", backendEmail, call("Write", map[string]any{"content": "x"}), model.Allow},
		{"non-string path allowed", backendEmail, call("Write", map[string]any{"file_path": 42}), model.Allow},
		{"read tool ignored", backendEmail, call("Read", map[string]any{"file_path": "docs/readme.md"}), model.Allow},
		{"git push not blocked", backendEmail, call("Bash", map[string]any{"command": "git push origin main"}), model.Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(tt.email)
			got := e.IdentityGate(context.Background(), tt.req)
			if got.Verdict != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, got.Verdict, got.Reason)
			}
			if got.Gate != GateIdentity {
				t.Errorf("expected gate %s, got %s", GateIdentity, got.Gate)
			}
		})
	}
}

func TestIdentityGateBlockReasonNamesPathAndIdentity(t *testing.T) {
	e, _ := newEngine(backendEmail)
	got := e.IdentityGate(context.Background(), call("Write", map[string]any{"file_path": "/repo/docs/guide.md"}))
	if got.Verdict != model.Block {
		t.Fatalf("expected block, got %s", got.Verdict)
	}
	if !strings.Contains(got.Reason, "docs/guide.md") || !strings.Contains(got.Reason, "backend") {
		t.Errorf("expected reason to name path and identity, got %q", got.Reason)
	}
}

func TestIdentityGateGitDetection(t *testing.T) {
	tests := []struct {
		cmd    string
		detect string
	}{
		{"git merge feature", "merge"},
		{"cd repo && git   push --force", "push"},
		{"git merge x && git push", "merge/push"},
		{"git mergetool", ""},
		{"echo git-push", ""},
		{"git status", ""},
	}
	for _, tt := range tests {
		e, _ := newEngine(backendEmail)
		got := e.IdentityGate(context.Background(), call("Bash", map[string]any{"command": tt.cmd}))
		if got.Verdict != model.Allow {
			t.Errorf("%q: expected allow, got %s", tt.cmd, got.Verdict)
		}
		if tt.detect == "" {
			if got.Reason != "" {
				t.Errorf("%q: expected no detection, got %q", tt.cmd, got.Reason)
			}
			continue
		}
		if !strings.Contains(got.Reason, "git "+tt.detect) || !strings.Contains(got.Reason, "can_merge=false") {
			t.Errorf("%q: expected detection of %s, got %q", tt.cmd, tt.detect, got.Reason)
		}
	}
}

func TestPolicyGateNoEntryAllows(t *testing.T) {
	e, _ := newEngine(backendEmail)
	got := e.PolicyGate(context.Background(), call("Write", map[string]any{"file_path": "../../etc/passwd"}))
	if got.Verdict != model.Allow {
		t.Errorf("expected allow without cache entry, got %s", got.Verdict)
	}
}

func TestPolicyGateSanitizesBeforeToolRules(t *testing.T) {
	e, pc := newEngine("")
	pc.Write(context.Background(), "sess", model.DetectedContext{}, &model.PolicyDecision{ToolsDenied: []string{"Write"}})

	got := e.PolicyGate(context.Background(), call("Write", map[string]any{"file_path": "../x"}))
	if got.Verdict != model.Block {
		t.Fatalf("expected block, got %s", got.Verdict)
	}
	if !strings.Contains(got.Reason, "traversal") {
		t.Errorf("expected traversal reason, got %q", got.Reason)
	}
	if strings.Contains(got.Reason, "denied by session policy") {
		t.Errorf("expected path check to run before the deny list, got %q", got.Reason)
	}
}

func TestPolicyGate(t *testing.T) {
	decision := &model.PolicyDecision{
		ToolsDenied:  []string{"Write"},
		ToolsAllowed: []string{"Read", "Write", "Grep"},
	}

	tests := []struct {
		name     string
		req      model.ToolCallRequest
		want     model.Verdict
		contains string
	}{
		{"denied beats allow-list", call("Write", map[string]any{"file_path": "a.go"}), model.Block, "Write"},
		{"allow-listed", call("Read", map[string]any{"file_path": "a.go"}), model.Allow, ""},
		{"not allow-listed warns", call("Bash", map[string]any{"command": "ls"}), model.Warn, "Bash"},
		{"strict traversal blocks", call("Read", map[string]any{"file_path": "../../etc/passwd"}), model.Block, "file_path"},
		{"strict path field", call("Grep", map[string]any{"path": "a/../b"}), model.Block, "path"},
		{"lenient traversal advises", call("Read", map[string]any{"directory": "../up"}), model.Allow, "directory"},
		{"empty path ignored", call("Read", map[string]any{"file_path": ""}), model.Allow, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, pc := newEngine("")
			pc.Write(context.Background(), "sess", model.DetectedContext{}, decision)

			got := e.PolicyGate(context.Background(), tt.req)
			if got.Verdict != tt.want {
				t.Fatalf("expected %s, got %s (%s%s)", tt.want, got.Verdict, got.Reason, got.Advisory)
			}
			if got.Gate != GatePolicy {
				t.Errorf("expected gate %s, got %s", GatePolicy, got.Gate)
			}
			if tt.contains != "" && !strings.Contains(got.Reason+got.Advisory, tt.contains) {
				t.Errorf("expected %q in %q / %q", tt.contains, got.Reason, got.Advisory)
			}
		})
	}
}

func TestPolicyGateEmptyAllowListMeansUnrestricted(t *testing.T) {
	e, pc := newEngine("")
	pc.Write(context.Background(), "sess", model.DetectedContext{}, &model.PolicyDecision{})

	got := e.PolicyGate(context.Background(), call("Bash", map[string]any{"command": "make"}))
	if got.Verdict != model.Allow || got.Advisory != "" {
		t.Errorf("expected plain allow, got %+v", got)
	}
}

func TestPolicyGateWarnMentionsAllowList(t *testing.T) {
	e, pc := newEngine("")
	pc.Write(context.Background(), "sess", model.DetectedContext{}, &model.PolicyDecision{ToolsAllowed: []string{"Read"}})

	got := e.PolicyGate(context.Background(), call("Bash", nil))
	if got.Verdict != model.Warn {
		t.Fatalf("expected warn, got %s", got.Verdict)
	}
	if !strings.Contains(got.Advisory, "Bash") || !strings.Contains(got.Advisory, "Read") {
		t.Errorf("expected advisory naming Bash and Read, got %q", got.Advisory)
	}
}

func TestPolicyGateOtherSessionUnaffected(t *testing.T) {
	e, pc := newEngine("")
	pc.Write(context.Background(), "other", model.DetectedContext{}, &model.PolicyDecision{ToolsDenied: []string{"Write"}})

	got := e.PolicyGate(context.Background(), call("Write", map[string]any{"file_path": "a.go"}))
	if got.Verdict != model.Allow {
		t.Errorf("expected allow for session without entry, got %s", got.Verdict)
	}
}
