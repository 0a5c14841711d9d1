// Package detect classifies free-text instructions into agent, domain and action.
package detect

import (
	"regexp"
	"strings"

	"github.com/ppiankov/hookwarden/internal/model"
)

// rule maps one key to the patterns that select it.
type rule struct {
	key      string
	patterns []*regexp.Regexp
}

func compile(key string, exprs ...string) rule {
	r := rule{key: key}
	for _, e := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile("(?i)"+e))
	}
	return r
}

// Tables are scanned in declaration order and the first matching key wins.
// Keys that must take precedence are declared first.
var agentRules = []rule{
	compile(string(model.AgentPlanner), `\bplan(ning)?\b`, `\broadmap\b`, `\bbreak (it |this )?down\b`, `\bmilestones?\b`),
	compile(string(model.AgentReviewer), `\breview(er|ing)?\b`, `\baudit\b`, `\bpull request\b`, `\bpr\b`),
	compile(string(model.AgentDevops), `\bdeploy(ment|ing)?\b`, `\bdocker(file)?\b`, `\bkubernetes\b`, `\bk8s\b`, `\bterraform\b`, `\bhelm\b`, `\bci\b`, `\bpipelines?\b`),
	compile(string(model.AgentFrontend), `\bfrontend\b`, `\bfront-end\b`, `\bui\b`, `\breact\b`, `\bcomponents?\b`, `\bcss\b`, `\btsx\b`, `\bpages?\b`),
	compile(string(model.AgentBackend), `\bbackend\b`, `\bback-end\b`, `\bapi\b`, `\bendpoints?\b`, `\bdatabase\b`, `\bmigrations?\b`, `\bserver\b`, `\bhandlers?\b`),
}

var domainRules = []rule{
	compile(string(model.DomainGuardrails), `\bguardrails?\b`, `\bpolic(y|ies)\b`, `\bpermissions?\b`, `\brbac\b`, `\bhooks?\b`),
	compile(string(model.DomainHITLUI), `\bhitl\b`, `\bhuman[- ]in[- ]the[- ]loop\b`, `\bapprovals?\b`, `\bdashboard\b`),
	compile(string(model.DomainKnowledgeStore), `\bknowledge\b`, `\bvector\b`, `\bembeddings?\b`, `\bmemory store\b`, `\bretriev(al|e)\b`),
	compile(string(model.DomainCoordination), `\bcoordinat(e|ion|or)\b`, `\borchestrat(e|ion|or)\b`, `\bhand-?offs?\b`, `\bsub-?agents?\b`),
	compile(string(model.DomainWorkers), `\bworkers?\b`, `\bjob queue\b`, `\btask queue\b`, `\bbackground jobs?\b`, `\bcelery\b`),
	compile(string(model.DomainInfrastructure), `\binfra(structure)?\b`, `\bdocker\b`, `\bkubernetes\b`, `\bk8s\b`, `\bterraform\b`, `\bci/cd\b`),
}

var actionRules = []rule{
	compile(string(model.ActionFix), `\bfix(es|ed|ing)?\b`, `\bbugs?\b`, `\bbroken\b`, `\bfailing\b`, `\bcrash(es|ing)?\b`, `\berrors?\b`, `\bregressions?\b`),
	compile(string(model.ActionReview), `\breview(ing)?\b`, `\baudit\b`, `\binspect\b`),
	compile(string(model.ActionRefactor), `\brefactor(ing)?\b`, `\bclean ?up\b`, `\brestructur(e|ing)\b`, `\bsimplify\b`),
	compile(string(model.ActionTest), `\btests?\b`, `\btesting\b`, `\bcoverage\b`),
	compile(string(model.ActionDesign), `\bdesign(ing)?\b`, `\barchitect(ure)?\b`, `\bschema\b`),
	compile(string(model.ActionImplement), `\bimplement(ing|ation)?\b`, `\badd\b`, `\bbuild\b`, `\bcreate\b`, `\bwrite\b`),
}

// Detect classifies prompt. Confidence counts only fields matched in the
// prompt; defaultAgent fills an absent agent afterwards.
func Detect(prompt, defaultAgent string) model.DetectedContext {
	lower := strings.ToLower(prompt)

	ctx := model.DetectedContext{
		Agent:  model.Agent(firstMatch(agentRules, lower)),
		Domain: model.Domain(firstMatch(domainRules, lower)),
		Action: model.ActionType(firstMatch(actionRules, lower)),
	}

	found := 0
	for _, v := range []string{string(ctx.Agent), string(ctx.Domain), string(ctx.Action)} {
		if v != "" {
			found++
		}
	}
	ctx.Confidence = float64(found) / 3

	if ctx.Agent == "" && defaultAgent != "" {
		ctx.Agent = model.Agent(defaultAgent)
	}
	return ctx
}

func firstMatch(rules []rule, text string) string {
	if text == "" {
		return ""
	}
	for _, r := range rules {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return r.key
			}
		}
	}
	return ""
}

// Tables returns the keys of each table in evaluation order.
func Tables() map[string][]string {
	keys := func(rules []rule) []string {
		out := make([]string, len(rules))
		for i, r := range rules {
			out[i] = r.key
		}
		return out
	}
	return map[string][]string{
		"agent":  keys(agentRules),
		"domain": keys(domainRules),
		"action": keys(actionRules),
	}
}
