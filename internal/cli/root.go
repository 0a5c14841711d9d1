package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set by ldflags at build time.
var version = "dev"

var (
	configPath string
	logLevel   string

	// logger is replaced in PersistentPreRunE; commands may log before that
	// only in tests.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "hookwarden",
	Short: "Session policy cache and tool-call gates for coding agents",
	Long: "Runs as agent-runtime hooks. An external evaluator writes a per-session policy\n" +
		"into a TTL-bounded cache; every tool call is then checked against the cached\n" +
		"policy and the role rules of the local identity. Fails open except on violations.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(`{"name":"hookwarden","version":"{{.Version}}"}` + "\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.hookwarden/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("HOOKWARDEN_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a console logger on stderr. Stdout is reserved for hook
// output.
func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.WarnLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core).Named("hookwarden")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
