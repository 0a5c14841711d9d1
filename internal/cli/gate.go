package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/enforce"
	"github.com/ppiankov/hookwarden/internal/hook"
	"github.com/ppiankov/hookwarden/internal/model"
	"github.com/ppiankov/hookwarden/internal/restrict"
)

func init() {
	rootCmd.AddCommand(gateCmd)
	for _, name := range []string{enforce.GateIdentity, enforce.GatePolicy, restrict.Gate} {
		gateCmd.AddCommand(newGateSubcommand(name))
	}
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "PreToolUse gates (hook JSON on stdin)",
	Long: "Each gate reads one hook invocation from stdin.\n" +
		"Exit 0 allows (a warning goes to stdout as additionalContext); exit 2 blocks\n" +
		"with the reason on stderr. Malformed input and internal failures allow.",
}

var gateShort = map[string]string{
	enforce.GateIdentity: "Enforce role path rules for the local git identity",
	enforce.GatePolicy:   "Enforce the session's cached tool policy",
	restrict.Gate:        "Enforce the file_path glob allow-list",
}

func newGateSubcommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: gateShort[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runGate(cmd.Context(), name, os.Stdin, os.Stdout, os.Stderr)
			if code != hook.ExitAllow {
				os.Exit(code)
			}
			return nil
		},
	}
}

// runGate evaluates one hook invocation and returns the exit code.
func runGate(ctx context.Context, gate string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("gate panicked, allowing", zap.String("gate", gate), zap.Any("panic", r))
			code = hook.ExitAllow
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	input, err := hook.Parse(stdin)
	if err != nil {
		logger.Debug("unreadable hook input, allowing", zap.String("gate", gate), zap.Error(err))
		return hook.ExitAllow
	}

	a := newApp(ctx, loadConfigLenient())
	defer a.Close()

	req := input.Request()
	outcome := hook.Guard(logger, gate, func() model.Outcome {
		switch gate {
		case enforce.GateIdentity:
			return a.engine.IdentityGate(ctx, req)
		case enforce.GatePolicy:
			return a.engine.PolicyGate(ctx, req)
		case restrict.Gate:
			return restrict.Check(req, a.cfg.Restrictions.AllowedPaths)
		default:
			return model.Outcome{Gate: gate, Verdict: model.Allow}
		}
	})

	logger.Debug("gate outcome",
		zap.String("gate", gate),
		zap.String("tool", req.Tool),
		zap.String("session_id", req.SessionID),
		zap.String("verdict", string(outcome.Verdict)),
		zap.String("reason", outcome.Reason))

	a.recordAudit(req, outcome)
	if a.telemetry.Enabled() {
		event := input.HookEvent
		if event == "" {
			event = "PreToolUse"
		}
		a.telemetry.Emit(ctx, a.telemetry.NewEvent(event, req.SessionID, req.Tool, req.Arguments, outcome))
	}

	return hook.Respond(outcome, stdout, stderr)
}
