package cache

import (
	"context"

	"github.com/ppiankov/hookwarden/internal/model"
)

// Inherit copies the parent's live decision to child under a fresh timestamp
// and TTL, tagging the context with agentLabel. It reports whether the parent
// had a live decision to copy. The copy is one-shot: later parent writes do not propagate,
// and the child's entry is never inherited onward automatically.
func Inherit(ctx context.Context, c *PolicyCache, parentID, childID, agentLabel string) bool {
	if parentID == "" || childID == "" || parentID == childID {
		return false
	}
	decision, ok := c.Read(ctx, parentID)
	if !ok {
		return false
	}
	c.Write(ctx, childID, model.DetectedContext{Agent: model.Agent(agentLabel)}, decision.Clone())
	return true
}
