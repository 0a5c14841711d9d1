package cli

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/audit"
	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/config"
	"github.com/ppiankov/hookwarden/internal/enforce"
	"github.com/ppiankov/hookwarden/internal/identity"
	"github.com/ppiankov/hookwarden/internal/model"
	"github.com/ppiankov/hookwarden/internal/telemetry"
)

// app wires the configured collaborators for one invocation.
type app struct {
	cfg       *config.Config
	store     cache.Store
	cache     *cache.PolicyCache
	resolver  *identity.Resolver
	engine    *enforce.Engine
	telemetry *telemetry.Client
	auditLog  *audit.Log
}

// loadConfig loads configuration strictly, for commands that report errors.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// loadConfigLenient never fails: hook commands keep running on defaults.
func loadConfigLenient() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("config unusable, using defaults", zap.Error(err))
		return config.DefaultConfig()
	}
	return cfg
}

// newApp builds the collaborators from cfg. Failures that would stop a
// gate degrade to a working fallback and are logged.
func newApp(ctx context.Context, cfg *config.Config) *app {
	// Each hook is its own process, so an in-memory cache would never be
	// seen by the next invocation.
	if cfg.Cache.Backend == cache.BackendMemory {
		logger.Warn("memory cache backend does not persist across hook invocations, using file cache")
		cfg.Cache.Backend = cache.BackendFile
	}

	store, err := cache.Open(ctx, cfg.CacheOptions(), logger)
	if err != nil {
		logger.Warn("cache backend unavailable, using file cache", zap.Error(err))
		store = cache.NewFileStore(cfg.Cache.Dir)
	}

	pc := cache.New(store,
		cache.WithTTL(cfg.Cache.TTLSeconds),
		cache.WithLogger(logger),
	)
	resolver := cfg.Resolver(identity.GitEmail{})

	a := &app{
		cfg:       cfg,
		store:     store,
		cache:     pc,
		resolver:  resolver,
		engine:    enforce.New(resolver, pc, projectRoot(ctx, cfg), logger),
		telemetry: telemetry.New(cfg.TelemetryOptions(), logger),
	}

	if cfg.AuditLog != "" {
		log, err := audit.Open(cfg.AuditLog)
		if err != nil {
			logger.Warn("audit log unavailable", zap.String("path", cfg.AuditLog), zap.Error(err))
		} else {
			a.auditLog = log
		}
	}
	return a
}

// Close releases the store and audit log.
func (a *app) Close() {
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	if err := a.store.Close(); err != nil {
		logger.Debug("close cache store", zap.Error(err))
	}
}

// recordAudit appends outcome to the audit log when one is configured.
func (a *app) recordAudit(req model.ToolCallRequest, out model.Outcome) {
	if a.auditLog == nil {
		return
	}
	err := a.auditLog.Record(audit.Entry{
		SessionID: req.SessionID,
		Gate:      out.Gate,
		Tool:      req.Tool,
		Resource:  resourceOf(req),
		Decision:  string(out.Verdict),
		Reason:    out.Reason,
	})
	if err != nil {
		logger.Warn("audit record failed", zap.Error(err))
	}
}

// projectRoot is the configured root, else the enclosing git work tree,
// else the working directory.
func projectRoot(ctx context.Context, cfg *config.Config) string {
	if cfg.ProjectRoot != "" {
		return cfg.ProjectRoot
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	if root, err := identity.ProjectRoot(ctx, wd); err == nil && root != "" {
		return root
	}
	return wd
}

func resourceOf(req model.ToolCallRequest) string {
	for _, field := range []string{"file_path", "notebook_path", "path", "command", "url"} {
		if v, ok := req.StringArg(field); ok {
			return v
		}
	}
	return ""
}
