package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwarden/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config",
	Long: `Writes the default configuration to --config (default ~/.hookwarden/config.yaml).
An existing file is never overwritten.

Wire the gates into the agent runtime's hooks, for example:
  PreToolUse:     hookwarden gate identity; hookwarden gate policy; hookwarden gate restrict
  SubagentStart:  hookwarden inherit
  PostToolUse:    hookwarden emit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}
