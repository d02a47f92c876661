package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/alert"
	"github.com/bholliman55/securewatch-n8n/internal/config"
	"github.com/bholliman55/securewatch-n8n/internal/server"
)

var (
	serveAddr    string
	serveNoSweep bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoSweep, "no-sweep", false, "Disable the periodic alert sweep")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion and query HTTP server",
	Long:  "Runs the HTTP server with the periodic alert sweep.\nSupports hot-reload of alert channels from the config file.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if cfg.AuthSecret == "" {
		return fmt.Errorf("auth secret is required (SW_AUTH_SECRET or auth_secret in config)")
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	srv := server.New(store, server.Config{
		Addr:          cfg.Addr,
		AuthSecret:    []byte(cfg.AuthSecret),
		ServiceAPIKey: cfg.ServiceAPIKey,
		AllowOrigin:   cfg.AllowOrigin,
	})

	sweeper := alert.NewSweeper(store, alert.NewDispatcher(cfg.Alerts), cfg.SweepInterval, cfg.ErrorWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !serveNoSweep {
		go sweeper.Run(ctx)
	}

	// Hot-reload alert channels when the config file changes.
	if cfgPath != "" {
		reloader, err := server.NewReloader(func() error {
			channels, err := config.LoadChannels(cfgPath)
			if err != nil {
				return err
			}
			sweeper.Swap(alert.NewDispatcher(channels))
			return nil
		}, cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "watching %s for alert channel changes\n", strings.Join(reloader.Watched(), ", "))
			go reloader.Run(ctx)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.Serve()
}
