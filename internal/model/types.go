package model

import "time"

// Agent is the agent role a prompt is classified into.
type Agent string

const (
	AgentBackend  Agent = "backend"
	AgentFrontend Agent = "frontend"
	AgentDevops   Agent = "devops"
	AgentReviewer Agent = "reviewer"
	AgentPlanner  Agent = "planner"
)

// Domain is the work area a prompt touches.
type Domain string

const (
	DomainWorkers        Domain = "workers"
	DomainCoordination   Domain = "coordination"
	DomainKnowledgeStore Domain = "knowledge_store"
	DomainHITLUI         Domain = "hitl_ui"
	DomainGuardrails     Domain = "guardrails"
	DomainInfrastructure Domain = "infrastructure"
)

// ActionType is the kind of work a prompt asks for.
type ActionType string

const (
	ActionFix       ActionType = "fix"
	ActionTest      ActionType = "test"
	ActionImplement ActionType = "implement"
	ActionReview    ActionType = "review"
	ActionRefactor  ActionType = "refactor"
	ActionDesign    ActionType = "design"
)

// DetectedContext is the classification of a single prompt.
// Empty fields mean no pattern matched.
type DetectedContext struct {
	Agent      Agent      `json:"agent,omitempty"`
	Domain     Domain     `json:"domain,omitempty"`
	Action     ActionType `json:"action,omitempty"`
	Confidence float64    `json:"confidence"`
}

// Identity is the enforced role of the actor making tool calls.
type Identity string

const (
	IdentityBackend      Identity = "backend"
	IdentityFrontend     Identity = "frontend"
	IdentityOrchestrator Identity = "orchestrator"
	IdentityUnknown      Identity = "unknown"
)

// Known reports whether the identity is one of the enforced roles.
func (id Identity) Known() bool {
	switch id {
	case IdentityBackend, IdentityFrontend, IdentityOrchestrator:
		return true
	default:
		return false
	}
}

// RoleRules is the rule set applied to an identity.
type RoleRules struct {
	ForbiddenPaths []string `yaml:"forbidden_paths" json:"forbidden_paths"`
	CanMerge       bool     `yaml:"can_merge" json:"can_merge"`
}

// Guideline is one guidance document matched by the evaluator.
type Guideline struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// PolicyDecision is the evaluated policy cached for a session.
type PolicyDecision struct {
	MatchedGuidelines   []Guideline `json:"matched_guidelines"`
	CombinedInstruction string      `json:"combined_instruction"`
	ToolsDenied         []string    `json:"tools_denied"`
	ToolsAllowed        []string    `json:"tools_allowed"`
	HITLGates           []string    `json:"hitl_gates"`
}

// Denies reports whether tool is in the deny set.
func (d *PolicyDecision) Denies(tool string) bool {
	return contains(d.ToolsDenied, tool)
}

// Restricts reports whether an allow-list is present.
func (d *PolicyDecision) Restricts() bool {
	return len(d.ToolsAllowed) > 0
}

// Allows reports whether tool is in the allow set.
func (d *PolicyDecision) Allows(tool string) bool {
	return contains(d.ToolsAllowed, tool)
}

// Clone returns a deep copy.
func (d *PolicyDecision) Clone() *PolicyDecision {
	if d == nil {
		return nil
	}
	c := &PolicyDecision{CombinedInstruction: d.CombinedInstruction}
	if d.MatchedGuidelines != nil {
		c.MatchedGuidelines = append([]Guideline{}, d.MatchedGuidelines...)
	}
	c.ToolsDenied = cloneStrings(d.ToolsDenied)
	c.ToolsAllowed = cloneStrings(d.ToolsAllowed)
	c.HITLGates = cloneStrings(d.HITLGates)
	return c
}

// DefaultTTLSeconds is the lifetime of a cache entry unless the writer says otherwise.
const DefaultTTLSeconds = 300

// CacheEntry is the record stored per session.
type CacheEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	TTLSeconds int             `json:"ttl_seconds"`
	Context    DetectedContext `json:"context"`
	Evaluated  *PolicyDecision `json:"evaluated"`
}

// ExpiresAt returns the instant after which the entry reads as absent.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.Timestamp.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// Expired reports whether now - timestamp > ttl.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > time.Duration(e.TTLSeconds)*time.Second
}

// ToolCallRequest is one tool invocation submitted for enforcement.
type ToolCallRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id"`
}

// StringArg returns the named argument if it is a non-empty string.
func (r ToolCallRequest) StringArg(name string) (string, bool) {
	v, ok := r.Arguments[name].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Verdict is the outcome class of a gate.
type Verdict string

const (
	Allow Verdict = "allow"
	Warn  Verdict = "warn"
	Block Verdict = "block"
)

// Outcome is the result of one gate evaluation.
type Outcome struct {
	Gate     string  `json:"gate"`
	Verdict  Verdict `json:"verdict"`
	Reason   string  `json:"reason,omitempty"`
	Advisory string  `json:"advisory,omitempty"`
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string{}, ss...)
}
