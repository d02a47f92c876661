package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/verify"
)

var (
	verifyFixtureMode bool
	verifyFailFast    bool
	verifyIngestURL   string
	verifyCredential  string
	verifyFormat      string
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyFixtureMode, "fixture-mode", false, "Require events to be marked as fixture data")
	verifyCmd.Flags().BoolVar(&verifyFailFast, "fail-fast", false, "Stop at the first failing check")
	verifyCmd.Flags().StringVar(&verifyIngestURL, "ingest-url", "", "Live ingestion endpoint for the health check (overrides config)")
	verifyCmd.Flags().StringVar(&verifyCredential, "credential", "", "Service credential for the health check")
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", "text", "Output format (text|json)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <trace-id>",
	Short: "Run the logging contract checks against a trace",
	Long:  "Fetches the trace timeline and runs every contract check:\nexistence, lifecycle boundaries, error detail, scan ID consistency,\ntemporal ordering, fixture marking, and optionally live ingestion health.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	ingestURL := verifyIngestURL
	if ingestURL == "" {
		ingestURL = cfg.IngestURL
	}

	report, err := verify.Run(context.Background(), store, traceID, verify.Options{
		ExpectFixtureMode: verifyFixtureMode,
		FailFast:          verifyFailFast,
		IngestURL:         ingestURL,
		IngestCredential:  verifyCredential,
	})
	if err != nil {
		return err
	}

	if verifyFormat == "json" {
		out, err := event.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(out)
	} else {
		printReport(report)
	}

	if !report.Passed {
		os.Exit(1)
	}
	return nil
}

func printReport(report *verify.Report) {
	fmt.Printf("trace %s\n\n", report.TraceID)
	for _, c := range report.Checks {
		mark := "PASS"
		switch {
		case c.Skipped:
			mark = "SKIP"
		case !c.Passed:
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %d. %s", mark, c.Num, c.Name)
		if c.Detail != "" {
			fmt.Printf(": %s", c.Detail)
		}
		fmt.Println()
	}
	fmt.Println()
	if report.Passed {
		fmt.Println("contract: PASSED")
	} else {
		fmt.Printf("contract: FAILED (%d check(s))\n", len(report.Failures()))
	}
}
