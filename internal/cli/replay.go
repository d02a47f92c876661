package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/replay"
)

var (
	replayEnv     string
	replayPath    string
	replayTimeout time.Duration
	replayDryRun  bool
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayEnv, "env", "staging", "Target environment (staging|local)")
	replayCmd.Flags().StringVar(&replayPath, "webhook-path", "", "Webhook path override")
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 0, "Dispatch timeout (default 2m)")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Print the reconstructed request without sending it")
}

var replayCmd = &cobra.Command{
	Use:   "replay <trace-id>",
	Short: "Re-issue the root request of a recorded trace",
	Long:  "Reconstructs the original inbound request from the trace's root event\nand POSTs it to the workflow entry point, preserving the trace ID so the\nreplayed run correlates against the same trace.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	traceID := args[0]
	if !event.ValidTraceID(traceID) {
		return fmt.Errorf("trace ID %q is not a valid UUID", traceID)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	rcfg := replay.Config{
		WebhookPath:  replayPath,
		DefaultPaths: cfg.Replay.DefaultPaths,
		APIKey:       cfg.Replay.APIKey,
		Timeout:      replayTimeout,
	}
	if !replayDryRun {
		rcfg.EntrypointURL, err = cfg.Replay.EntrypointFor(replayEnv)
		if err != nil {
			return err
		}
	} else {
		// Dry runs render the URL when one is configured but never require it.
		rcfg.EntrypointURL, _ = cfg.Replay.EntrypointFor(replayEnv)
	}

	engine := replay.New(store, rcfg)
	ctx := context.Background()

	if replayDryRun {
		req, events, err := engine.Build(ctx, traceID)
		if err != nil {
			return err
		}
		out, err := event.FormatJSON(req)
		if err != nil {
			return err
		}
		fmt.Printf("dry run: %d event(s) in trace, root event %s\n", len(events), req.RootEventID)
		fmt.Println(out)
		return nil
	}

	result, err := engine.Replay(ctx, traceID)
	if err != nil {
		return err
	}

	fmt.Printf("replayed %s -> %s\n", traceID, result.Request.URL)
	fmt.Printf("status %d in %s\n", result.Status, result.Elapsed.Round(time.Millisecond))
	if result.Body != "" {
		fmt.Println(result.Body)
	}
	return nil
}
