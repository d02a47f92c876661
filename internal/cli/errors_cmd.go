package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
)

var (
	errorsWindow string
	errorsFormat string
)

func init() {
	rootCmd.AddCommand(errorsCmd)
	errorsCmd.Flags().StringVarP(&errorsWindow, "window", "w", "", "Lookback window (e.g. 15m, 1h)")
	errorsCmd.Flags().StringVarP(&errorsFormat, "format", "f", "text", "Output format (text|json)")
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List error events recorded within a recent time window",
	RunE:  runErrors,
}

func runErrors(cmd *cobra.Command, args []string) error {
	window := ledger.DefaultErrorWindow
	if errorsWindow != "" {
		d, err := time.ParseDuration(errorsWindow)
		if err != nil {
			return fmt.Errorf("invalid window %q: %w", errorsWindow, err)
		}
		window = ledger.ClampWindow(d)
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

	events, err := store.RecentErrors(context.Background(), window)
	if err != nil {
		return err
	}

	if errorsFormat == "json" {
		out, err := event.FormatJSON(events)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if len(events) == 0 {
		fmt.Printf("no errors in the last %s\n", window)
		return nil
	}

	fmt.Printf("%d error(s) in the last %s:\n\n", len(events), window)
	for _, ev := range events {
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Message
		}
		fmt.Printf("  %s  %-24s %-36s %s\n",
			ev.CreatedAt.Format("15:04:05"), ev.EventType, ev.TraceID, msg)
	}
	return nil
}
