package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

var timelineFormat string

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().StringVarP(&timelineFormat, "format", "f", "text", "Output format (text|json)")
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <trace-id>",
	Short: "Show the ordered event timeline for a trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

func runTimeline(cmd *cobra.Command, args []string) error {
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

	events, err := store.Timeline(context.Background(), traceID)
	if err != nil {
		return err
	}

	switch timelineFormat {
	case "json":
		out, err := event.FormatJSON(events)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(event.FormatTimeline(event.NormalizeTraceID(traceID), events))
	}

	return nil
}
