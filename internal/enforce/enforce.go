package enforce

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/identity"
	"github.com/ppiankov/hookwarden/internal/model"
	"github.com/ppiankov/hookwarden/internal/pathguard"
)

// Gate names recorded in outcomes and the audit log.
const (
	GateIdentity = "identity"
	GatePolicy   = "policy"
)

// editTools modify files and are subject to forbidden-path rules.
var editTools = map[string]bool{
	"edit":         true,
	"multiedit":    true,
	"write":        true,
	"notebookedit": true,
}

// editPathFields are tried in order for edit-class tools.
var editPathFields = []string{"file_path", "notebook_path", "path"}

// Path fields inspected by the policy gate. A strict field that fails
// sanitization blocks; a lenient one only adds an advisory.
var (
	strictPathFields  = []string{"file_path", "path"}
	lenientPathFields = []string{"notebook_path", "directory"}
)

var (
	gitMergeRe = regexp.MustCompile(`\bgit\s+merge\b`)
	gitPushRe  = regexp.MustCompile(`\bgit\s+push\b`)
)

// Engine evaluates tool calls against identity rules and cached policy.
type Engine struct {
	resolver    *identity.Resolver
	cache       *cache.PolicyCache
	projectRoot string
	logger      *zap.Logger
}

// New creates an Engine. A nil logger discards output.
func New(resolver *identity.Resolver, pc *cache.PolicyCache, projectRoot string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resolver:    resolver,
		cache:       pc,
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// IdentityGate applies the role rules of the local identity to req.
// Unknown identities are allowed before any rule is consulted.
func (e *Engine) IdentityGate(ctx context.Context, req model.ToolCallRequest) model.Outcome {
	id := e.resolver.ResolveLocal(ctx)
	if !id.Known() {
		e.logger.Debug("identity unknown, skipping role rules", zap.String("tool", req.Tool))
		return allow(GateIdentity, "")
	}

	tool := strings.ToLower(req.Tool)
	switch {
	case editTools[tool]:
		return e.checkEdit(id, req)
	case tool == "bash":
		return e.checkCommand(id, req)
	default:
		return allow(GateIdentity, "")
	}
}

func (e *Engine) checkEdit(id model.Identity, req model.ToolCallRequest) model.Outcome {
	raw, ok := firstStringArg(req, editPathFields)
	if !ok {
		return allow(GateIdentity, "")
	}

	clean, ok := pathguard.Sanitize(raw)
	if !ok {
		e.logger.Info("blocked traversal path",
			zap.String("identity", string(id)), zap.String("tool", req.Tool), zap.String("path", raw))
		return block(GateIdentity, fmt.Sprintf("security violation: path %q contains a traversal segment", raw))
	}

	rel := pathguard.Relativize(clean, e.projectRoot)
	rules := e.resolver.RulesFor(id)
	if pattern, hit := pathguard.FirstMatch(rel, rules.ForbiddenPaths); hit {
		e.logger.Info("blocked forbidden path",
			zap.String("identity", string(id)), zap.String("path", rel), zap.String("pattern", pattern))
		return block(GateIdentity, fmt.Sprintf("%s agent may not modify %s (forbidden by %q)", id, rel, pattern))
	}
	return allow(GateIdentity, "")
}

// checkCommand notes merge and push attempts. Enforcement of can_merge
// happens at commit-time verification, so the command is allowed.
func (e *Engine) checkCommand(id model.Identity, req model.ToolCallRequest) model.Outcome {
	cmd, ok := req.StringArg("command")
	if !ok {
		return allow(GateIdentity, "")
	}

	var ops []string
	if gitMergeRe.MatchString(cmd) {
		ops = append(ops, "merge")
	}
	if gitPushRe.MatchString(cmd) {
		ops = append(ops, "push")
	}
	if len(ops) == 0 {
		return allow(GateIdentity, "")
	}

	canMerge := e.resolver.RulesFor(id).CanMerge
	e.logger.Debug("git operation detected",
		zap.String("identity", string(id)), zap.Strings("ops", ops), zap.Bool("can_merge", canMerge))
	return allow(GateIdentity, fmt.Sprintf("git %s detected for %s agent (can_merge=%t)",
		strings.Join(ops, "/"), id, canMerge))
}

// PolicyGate applies the session's cached decision to req. Without a live
// cache entry the call is allowed; the decision is never re-evaluated here.
func (e *Engine) PolicyGate(ctx context.Context, req model.ToolCallRequest) model.Outcome {
	decision, ok := e.cache.Read(ctx, req.SessionID)
	if !ok {
		e.logger.Debug("no live policy for session", zap.String("session_id", req.SessionID))
		return allow(GatePolicy, "")
	}

	for _, field := range strictPathFields {
		raw, ok := req.StringArg(field)
		if !ok {
			continue
		}
		if _, ok := pathguard.Sanitize(raw); !ok {
			return block(GatePolicy, fmt.Sprintf("security violation: %s %q contains a traversal segment", field, raw))
		}
	}

	var advisories []string
	for _, field := range lenientPathFields {
		raw, ok := req.StringArg(field)
		if !ok {
			continue
		}
		if _, ok := pathguard.Sanitize(raw); !ok {
			advisories = append(advisories, fmt.Sprintf("%s %q was rejected by path sanitization", field, raw))
		}
	}

	if decision.Denies(req.Tool) {
		return block(GatePolicy, fmt.Sprintf("tool %s is denied by session policy", req.Tool))
	}

	if decision.Restricts() && !decision.Allows(req.Tool) {
		advisories = append(advisories, fmt.Sprintf("tool %s is not in the session allow-list [%s]",
			req.Tool, strings.Join(decision.ToolsAllowed, ", ")))
		return model.Outcome{Gate: GatePolicy, Verdict: model.Warn, Advisory: strings.Join(advisories, "; ")}
	}

	if len(advisories) > 0 {
		return model.Outcome{Gate: GatePolicy, Verdict: model.Allow, Advisory: strings.Join(advisories, "; ")}
	}
	return allow(GatePolicy, "")
}

func firstStringArg(req model.ToolCallRequest, fields []string) (string, bool) {
	for _, f := range fields {
		if v, ok := req.StringArg(f); ok {
			return v, true
		}
	}
	return "", false
}

func allow(gate, reason string) model.Outcome {
	return model.Outcome{Gate: gate, Verdict: model.Allow, Reason: reason}
}

func block(gate, reason string) model.Outcome {
	return model.Outcome{Gate: gate, Verdict: model.Block, Reason: reason}
}
