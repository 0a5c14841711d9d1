package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/hook"
	"github.com/ppiankov/hookwarden/internal/telemetry"
)

func init() {
	rootCmd.AddCommand(emitCmd)
}

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Forward a hook event to the telemetry collector",
	Long: "Reads one hook invocation from stdin and posts it to telemetry.endpoint.\n" +
		"Does nothing when no endpoint is configured. Always exits 0.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runEmit(cmd.Context(), os.Stdin)
	},
}

// runEmit reports whether an event was delivered.
func runEmit(ctx context.Context, stdin io.Reader) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("emit panicked", zap.Any("panic", r))
			sent = false
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := loadConfigLenient()
	client := telemetry.New(cfg.TelemetryOptions(), logger)
	if !client.Enabled() {
		return false
	}

	input, err := hook.Parse(stdin)
	if err != nil {
		logger.Debug("unreadable hook input, not emitting", zap.Error(err))
		return false
	}

	ev := client.NewEvent(input.HookEvent, input.SessionID, input.Tool, input.Arguments, input.ToolResponse)
	if err := client.Send(ctx, ev); err != nil {
		logger.Warn("telemetry send failed", zap.String("type", ev.Type), zap.Error(err))
		return false
	}
	return true
}
