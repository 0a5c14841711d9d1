package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/detect"
	"github.com/ppiankov/hookwarden/internal/model"
)

var (
	cacheSession  string
	cachePrompt   string
	cacheDecision string
	cacheTTL      int
	cacheJSON     bool
	cacheWatchDir string
	cacheExisting bool
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheWriteCmd, cacheShowCmd, cacheWatchCmd)

	cacheWriteCmd.Flags().StringVar(&cacheSession, "session", "", "Session id (required)")
	cacheWriteCmd.Flags().StringVar(&cachePrompt, "prompt", "", "Prompt to classify into the entry context")
	cacheWriteCmd.Flags().StringVar(&cacheDecision, "decision", "", "Policy decision JSON file, or - for stdin")
	cacheWriteCmd.Flags().IntVar(&cacheTTL, "ttl", 0, "Entry lifetime in seconds (default from config)")
	_ = cacheWriteCmd.MarkFlagRequired("session")

	cacheShowCmd.Flags().StringVar(&cacheSession, "session", "", "Session id (required)")
	cacheShowCmd.Flags().BoolVar(&cacheJSON, "json", false, "Output the raw entry as JSON")
	_ = cacheShowCmd.MarkFlagRequired("session")

	cacheWatchCmd.Flags().StringVar(&cacheWatchDir, "dir", "", "Cache directory (default from config)")
	cacheWatchCmd.Flags().BoolVar(&cacheExisting, "existing", false, "Report entries already present before watching")
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and populate the session policy cache",
}

var cacheWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Store a policy decision for a session",
	Long: "Classifies --prompt and stores it with the decision read from --decision.\n" +
		"Without --decision the entry carries no policy and enforces nothing.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheWrite(cmd.Context(), os.Stdin, cmd.OutOrStdout())
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the live entry for a session (exit 1 when absent)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := runCacheShow(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

var cacheWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream cache writes as JSON lines",
	Long: "Watches the file cache directory and prints one JSON line per written entry.\n" +
		"Only the file backend can be watched.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCacheWatch(ctx, cmd.OutOrStdout())
	},
}

func runCacheWrite(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cacheTTL > 0 {
		cfg.Cache.TTLSeconds = cacheTTL
	}

	var decision *model.PolicyDecision
	if cacheDecision != "" {
		decision, err = readDecision(cacheDecision, stdin)
		if err != nil {
			return err
		}
	}

	a := newApp(ctx, cfg)
	defer a.Close()

	dc := detect.Detect(cachePrompt, cfg.DefaultAgent)
	a.cache.Write(ctx, cacheSession, dc, decision)

	if _, ok := a.cache.Entry(ctx, cacheSession); !ok {
		return fmt.Errorf("entry for session %q was not stored", cacheSession)
	}
	fmt.Fprintf(stdout, "stored %s (%s, ttl=%ds)\n", cacheSession, formatContext(dc), a.cache.TTL())
	return nil
}

func readDecision(source string, stdin io.Reader) (*model.PolicyDecision, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read decision: %w", err)
	}
	var decision model.PolicyDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, fmt.Errorf("parse decision: %w", err)
	}
	return &decision, nil
}

func runCacheShow(ctx context.Context, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	a := newApp(ctx, loadConfigLenient())
	defer a.Close()

	entry, ok := a.cache.Entry(ctx, cacheSession)
	if !ok {
		fmt.Fprintln(stderr, "absent")
		return 1
	}

	if cacheJSON {
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, string(out))
		return 0
	}

	fmt.Fprintf(stdout, "session:    %s\n", cacheSession)
	fmt.Fprintf(stdout, "context:    %s\n", formatContext(entry.Context))
	fmt.Fprintf(stdout, "written:    %s\n", entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(stdout, "expires:    %s\n", entry.ExpiresAt().Format("2006-01-02T15:04:05Z07:00"))
	if entry.Evaluated == nil {
		fmt.Fprintln(stdout, "policy:     none")
		return 0
	}
	d := entry.Evaluated
	fmt.Fprintf(stdout, "allowed:    %v\n", d.ToolsAllowed)
	fmt.Fprintf(stdout, "denied:     %v\n", d.ToolsDenied)
	for _, g := range d.MatchedGuidelines {
		fmt.Fprintf(stdout, "guideline:  %s\n", g.ID)
	}
	return 0
}

func runCacheWatch(ctx context.Context, stdout io.Writer) error {
	dir := cacheWatchDir
	if dir == "" {
		cfg := loadConfigLenient()
		if cfg.Cache.Backend != "" && cfg.Cache.Backend != cache.BackendFile {
			return fmt.Errorf("cache backend %q cannot be watched", cfg.Cache.Backend)
		}
		dir = cache.NewFileStore(cfg.Cache.Dir).Dir()
	}

	enc := json.NewEncoder(stdout)
	w := cache.NewWatcher(dir, func(ev cache.WatchEvent) {
		_ = enc.Encode(ev)
	})
	if cacheExisting {
		if err := w.ScanExisting(); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "watching %s\n", dir)
	return w.Run(ctx)
}
