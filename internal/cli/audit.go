package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwarden/internal/audit"
)

var (
	tailLines    int
	tailSession  string
	tailGate     string
	tailDecision string
	tailJSON     bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 20, "Number of recent entries to show (0 for all)")
	auditTailCmd.Flags().StringVar(&tailSession, "session", "", "Only entries for this session")
	auditTailCmd.Flags().StringVar(&tailGate, "gate", "", "Only entries from this gate (identity, policy, restrict)")
	auditTailCmd.Flags().StringVar(&tailDecision, "decision", "", "Only entries with this decision (allow, warn, block)")
	auditTailCmd.Flags().BoolVar(&tailJSON, "json", false, "Output JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained gate decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent gate decisions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

// auditPath is the positional argument, else the configured audit_log.
func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if p := loadConfigLenient().AuditLog; p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no audit log path given and audit_log is not configured")
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result, err := audit.Tail(path, audit.Filter{
		SessionID: tailSession,
		Gate:      tailGate,
		Decision:  tailDecision,
		Limit:     tailLines,
	})
	if err != nil {
		return err
	}

	if tailJSON {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	return nil
}
