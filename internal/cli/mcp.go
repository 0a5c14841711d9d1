package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	hwmcp "github.com/ppiankov/hookwarden/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs hookwarden as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: hookwarden_detect, hookwarden_check, hookwarden_cache.",
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx, cfg)
	defer a.Close()

	srv := hwmcp.New(hwmcp.Config{
		Engine:       a.engine,
		Cache:        a.cache,
		DefaultAgent: cfg.DefaultAgent,
		AllowedPaths: cfg.Restrictions.AllowedPaths,
		AuditLog:     a.auditLog,
		Logger:       logger,
		Version:      version,
	})

	fmt.Fprintln(os.Stderr, "hookwarden MCP server running on stdio")
	err = srv.Run(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "hookwarden MCP server stopped")
		return nil
	}
	return err
}
