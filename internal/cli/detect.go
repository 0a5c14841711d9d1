package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwarden/internal/detect"
	"github.com/ppiankov/hookwarden/internal/hook"
	"github.com/ppiankov/hookwarden/internal/model"
)

var (
	detectDefaultAgent string
	detectJSON         bool
	detectExplain      bool
)

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVar(&detectDefaultAgent, "default-agent", "", "Agent assumed when the prompt names none (default from config)")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Output JSON")
	detectCmd.Flags().BoolVar(&detectExplain, "explain", false, "Print the rule tables in evaluation order")
}

var detectCmd = &cobra.Command{
	Use:   "detect [prompt...]",
	Short: "Classify a prompt into agent, domain and action",
	Long: "Classifies the prompt given as arguments, or the \"prompt\" field of hook JSON\n" +
		"on stdin when no arguments are given. Tables are first-match in the order\n" +
		"shown by --explain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(args, os.Stdin, cmd.OutOrStdout())
	},
}

func runDetect(args []string, stdin io.Reader, stdout io.Writer) error {
	if detectExplain {
		tables := detect.Tables()
		for _, name := range []string{"agent", "domain", "action"} {
			fmt.Fprintf(stdout, "%-7s %s\n", name+":", strings.Join(tables[name], " > "))
		}
		return nil
	}

	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		input, err := hook.Parse(stdin)
		if err != nil {
			return fmt.Errorf("no prompt given and stdin is not hook JSON: %w", err)
		}
		prompt = input.Prompt
	}

	defaultAgent := detectDefaultAgent
	if defaultAgent == "" {
		defaultAgent = loadConfigLenient().DefaultAgent
	}

	dc := detect.Detect(prompt, defaultAgent)
	if detectJSON {
		out, err := json.MarshalIndent(dc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(out))
		return nil
	}
	fmt.Fprintln(stdout, formatContext(dc))
	return nil
}

func formatContext(dc model.DetectedContext) string {
	orNone := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	return fmt.Sprintf("agent=%s domain=%s action=%s confidence=%.2f",
		orNone(string(dc.Agent)), orNone(string(dc.Domain)), orNone(string(dc.Action)), dc.Confidence)
}
