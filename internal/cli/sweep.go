package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/alert"
)

var (
	sweepOnce     bool
	sweepInterval time.Duration
	sweepWindow   time.Duration
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")
	sweepCmd.Flags().DurationVar(&sweepWindow, "window", 0, "Error lookback window (overrides config)")
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Scan for recent errors and notify alert channels",
	Long:  "Queries the error window and dispatches a summary of each error event\nto every configured alert channel. Runs periodically unless --once is set.",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sweepInterval > 0 {
		cfg.SweepInterval = sweepInterval
	}
	if sweepWindow > 0 {
		cfg.ErrorWindow = sweepWindow
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	sweeper := alert.NewSweeper(store, alert.NewDispatcher(cfg.Alerts), cfg.SweepInterval, cfg.ErrorWindow)

	if sweepOnce {
		n, err := sweeper.SweepOnce(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("swept: %d error(s) dispatched\n", n)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nStopping sweep...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "sweeping every %s (window %s)\n", cfg.SweepInterval, cfg.ErrorWindow)
	return sweeper.Run(ctx)
}
