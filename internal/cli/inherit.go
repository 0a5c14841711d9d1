package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/hook"
)

var (
	inheritParent string
	inheritChild  string
	inheritAgent  string
)

func init() {
	rootCmd.AddCommand(inheritCmd)
	inheritCmd.Flags().StringVar(&inheritParent, "parent", "", "Parent session id (default from hook stdin)")
	inheritCmd.Flags().StringVar(&inheritChild, "child", "", "Child session id (default from hook stdin)")
	inheritCmd.Flags().StringVar(&inheritAgent, "agent", "", "Agent label stored on the child entry")
}

var inheritCmd = &cobra.Command{
	Use:   "inherit",
	Short: "Copy a parent session's live policy to a sub-agent session",
	Long: "Runs as a sub-agent start hook. Session ids come from flags or from the\n" +
		"parent_session_id, session_id and agent_type fields on stdin. Always exits 0.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runInherit(cmd.Context(), os.Stdin)
	},
}

// runInherit reports whether a policy was copied. Every failure is swallowed.
func runInherit(ctx context.Context, stdin io.Reader) (copied bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("inherit panicked", zap.Any("panic", r))
			copied = false
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	parent, child, agent := inheritParent, inheritChild, inheritAgent
	if parent == "" || child == "" {
		input, err := hook.Parse(stdin)
		if err != nil {
			logger.Debug("unreadable hook input, nothing to inherit", zap.Error(err))
			return false
		}
		if parent == "" {
			parent = input.ParentSessionID
		}
		if child == "" {
			child = input.SessionID
		}
		if agent == "" {
			agent = input.AgentType
		}
	}

	a := newApp(ctx, loadConfigLenient())
	defer a.Close()

	copied = cache.Inherit(ctx, a.cache, parent, child, agent)
	logger.Debug("inherit",
		zap.String("parent", parent),
		zap.String("child", child),
		zap.String("agent", agent),
		zap.Bool("copied", copied))
	return copied
}
