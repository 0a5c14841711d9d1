package identity

import (
	"context"
	"strings"

	"github.com/ppiankov/hookwarden/internal/model"
)

// DefaultIdentities maps version-control emails to roles.
var DefaultIdentities = map[string]model.Identity{
	"backend-agent@hookwarden.local":  model.IdentityBackend,
	"frontend-agent@hookwarden.local": model.IdentityFrontend,
	"orchestrator@hookwarden.local":   model.IdentityOrchestrator,
}

// DefaultRoles is the built-in rule table. Orchestrator has full access.
var DefaultRoles = map[model.Identity]model.RoleRules{
	model.IdentityBackend: {
		ForbiddenPaths: []string{"frontend/", "web/src/", "docs/", "*.tsx"},
		CanMerge:       false,
	},
	model.IdentityFrontend: {
		ForbiddenPaths: []string{"backend/", "migrations/", "infra/", "*.sql"},
		CanMerge:       false,
	},
	model.IdentityOrchestrator: {
		ForbiddenPaths: []string{},
		CanMerge:       true,
	},
}

// EmailSource yields the local version-control email.
type EmailSource interface {
	Email(ctx context.Context) (string, error)
}

// Resolver maps identity keys to roles and roles to rules.
// Tables are copied at construction and never mutated afterwards.
type Resolver struct {
	identities map[string]model.Identity
	roles      map[model.Identity]model.RoleRules
	source     EmailSource
}

// NewResolver creates a Resolver. Nil tables fall back to the defaults.
func NewResolver(identities map[string]model.Identity, roles map[model.Identity]model.RoleRules, source EmailSource) *Resolver {
	if identities == nil {
		identities = DefaultIdentities
	}
	if roles == nil {
		roles = DefaultRoles
	}
	r := &Resolver{
		identities: make(map[string]model.Identity, len(identities)),
		roles:      make(map[model.Identity]model.RoleRules, len(roles)),
		source:     source,
	}
	for k, v := range identities {
		r.identities[normalizeKey(k)] = v
	}
	for k, v := range roles {
		r.roles[k] = model.RoleRules{
			ForbiddenPaths: append([]string{}, v.ForbiddenPaths...),
			CanMerge:       v.CanMerge,
		}
	}
	return r
}

// Resolve returns the identity for key, or unknown.
func (r *Resolver) Resolve(key string) model.Identity {
	id, ok := r.identities[normalizeKey(key)]
	if !ok || !id.Known() {
		return model.IdentityUnknown
	}
	return id
}

// ResolveLocal resolves the identity of the local actor. Any failure to read
// the email resolves to unknown.
func (r *Resolver) ResolveLocal(ctx context.Context) model.Identity {
	if r.source == nil {
		return model.IdentityUnknown
	}
	email, err := r.source.Email(ctx)
	if err != nil {
		return model.IdentityUnknown
	}
	return r.Resolve(email)
}

// RulesFor returns the rules for id. Unrecognized identities get no
// forbidden paths and may merge; callers must short-circuit unknown first.
func (r *Resolver) RulesFor(id model.Identity) model.RoleRules {
	rules, ok := r.roles[id]
	if !ok {
		return model.RoleRules{ForbiddenPaths: []string{}, CanMerge: true}
	}
	return model.RoleRules{
		ForbiddenPaths: append([]string{}, rules.ForbiddenPaths...),
		CanMerge:       rules.CanMerge,
	}
}

// Identities returns a copy of the email table.
func (r *Resolver) Identities() map[string]model.Identity {
	out := make(map[string]model.Identity, len(r.identities))
	for k, v := range r.identities {
		out[k] = v
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
