package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	swmcp "github.com/bholliman55/securewatch-n8n/internal/mcp"
	"github.com/bholliman55/securewatch-n8n/internal/replay"
)

var (
	mcpAllowDispatch bool
	mcpReplayEnv     string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpAllowDispatch, "allow-dispatch", false, "Allow the replay tool to actually send requests")
	mcpCmd.Flags().StringVar(&mcpReplayEnv, "replay-env", "staging", "Replay target environment (staging|local)")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for operator integration",
	Long:  "Runs securewatch as an MCP (Model Context Protocol) server over stdio.\nExposes ledger tools: timeline, errors, verify, replay.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
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
		DefaultPaths: cfg.Replay.DefaultPaths,
		APIKey:       cfg.Replay.APIKey,
	}
	// A missing entrypoint only matters when dispatch is enabled.
	rcfg.EntrypointURL, err = cfg.Replay.EntrypointFor(mcpReplayEnv)
	if err != nil && mcpAllowDispatch {
		return err
	}

	srv := swmcp.New(store, swmcp.Config{
		Replay:        rcfg,
		AllowDispatch: mcpAllowDispatch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "securewatch MCP server running on stdio")
	return srv.Run(ctx)
}
