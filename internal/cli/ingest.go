package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

var ingestFile string

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Read the event from a file instead of stdin")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Validate and append a single event from stdin",
	Long:  "Reads one event as JSON, validates it, and appends it to the ledger.\nRejected events exit non-zero with the validation reason.",
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if ingestFile != "" {
		data, err = os.ReadFile(ingestFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}

	var raw event.Event
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	ev, err := event.Validate(&raw)
	if err != nil {
		return err
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

	id, err := store.AppendEvent(context.Background(), ev)
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}
