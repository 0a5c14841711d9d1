package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/audit"
	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/enforce"
	"github.com/ppiankov/hookwarden/internal/model"
)

// Config holds the collaborators the MCP tools run against.
type Config struct {
	Engine       *enforce.Engine
	Cache        *cache.PolicyCache
	DefaultAgent string
	AllowedPaths []string
	AuditLog     *audit.Log
	Logger       *zap.Logger
	Version      string
}

// Server wraps the MCP SDK server with hookwarden's detection and gates.
type Server struct {
	mcpServer    *mcpsdk.Server
	engine       *enforce.Engine
	cache        *cache.PolicyCache
	defaultAgent string
	allowedPaths []string
	auditLog     *audit.Log
	logger       *zap.Logger
}

// New creates an MCP server with the hookwarden tools registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		engine:       cfg.Engine,
		cache:        cfg.Cache,
		defaultAgent: cfg.DefaultAgent,
		allowedPaths: cfg.AllowedPaths,
		auditLog:     cfg.AuditLog,
		logger:       logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "hookwarden",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run serves on stdio. Blocks until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) recordAudit(sessionID string, req model.ToolCallRequest, out model.Outcome) {
	if s.auditLog == nil {
		return
	}
	resource, _ := req.StringArg("file_path")
	if resource == "" {
		resource, _ = req.StringArg("command")
	}
	err := s.auditLog.Record(audit.Entry{
		Timestamp: time.Now().UTC().Format(audit.TimestampFormat),
		SessionID: sessionID,
		Gate:      out.Gate,
		Tool:      req.Tool,
		Resource:  resource,
		Decision:  string(out.Verdict),
		Reason:    out.Reason,
	})
	if err != nil {
		s.logger.Warn("audit record failed", zap.Error(err))
	}
}

// registerTools adds all hookwarden tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookwarden_detect",
		Description: "Classify a prompt into agent role, work domain and action type.",
	}, s.handleDetect)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookwarden_check",
		Description: "Check whether a tool call would be allowed for a session (dry-run of every gate).",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookwarden_cache",
		Description: "Show the live cached policy for a session.",
	}, s.handleCache)
}
