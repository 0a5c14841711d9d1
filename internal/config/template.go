package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigYAML returns the commented default configuration written by
// hookwarden init.
func DefaultConfigYAML() string {
	return `# hookwarden configuration
# Generated by: hookwarden init
#
# Every value below can be overridden with a HOOKWARDEN_* environment
# variable (or a .env file in the working directory).

# Version-control email -> identity. Unlisted emails resolve to "unknown",
# which disables the identity gate.
identities:
  backend-agent@hookwarden.local: backend
  frontend-agent@hookwarden.local: frontend
  orchestrator@hookwarden.local: orchestrator

# Identity -> rules. A role listed here replaces the built-in entry.
# Pattern forms:
#   "dir/"   directory prefix
#   "*.ext"  wildcard, "*" matches anything (anchored at the start)
#   "path"   exact path or directory prefix
roles:
  backend:
    forbidden_paths: ["frontend/", "web/src/", "docs/", "*.tsx"]
    can_merge: false
  frontend:
    forbidden_paths: ["backend/", "migrations/", "infra/", "*.sql"]
    can_merge: false
  orchestrator:
    forbidden_paths: []
    can_merge: true

# Session policy cache.
# backend: file | redis | sqlite
# (memory only lives inside one process; the CLI replaces it with file)
cache:
  backend: file
  # dir: /tmp/hookwarden-1000
  ttl_seconds: 300
  redis_addr: localhost:6379
  redis_retention: 24h
  # sqlite_path: /tmp/hookwarden-1000/cache.db

# Glob allow-list for file_path arguments (gate restrict). Empty = no restriction.
restrictions:
  allowed_paths: []

# Hook activity egress. Empty endpoint disables it.
telemetry:
  endpoint: ""
  agent_id: ""
  container_id: ""
  timeout: 2s
  # Replace credentials in tool input and output with <<TYPE_N>> tokens.
  redact: true
  # Extra patterns, name -> regex. The first capture group is redacted.
  redact_patterns: {}

# Root used to relativize absolute paths before role matching.
# Empty = the enclosing git repository.
project_root: ""

# Agent assumed by detect when the prompt names none.
default_agent: ""

# Hash-chained JSONL log of gate decisions. Empty disables it.
audit_log: ""
`
}

// WriteDefault writes DefaultConfigYAML to path. It refuses to overwrite.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return fmt.Errorf("cannot determine home directory")
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigYAML()), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
