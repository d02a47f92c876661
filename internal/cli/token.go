package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/server"
)

var (
	tokenRole string
	tokenTTL  time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenRole, "role", "service", "Token role (service|admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a capability token for API access",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.AuthSecret == "" {
		return fmt.Errorf("auth secret is required (SW_AUTH_SECRET or auth_secret in config)")
	}

	var role server.Role
	switch tokenRole {
	case "service":
		role = server.RoleService
	case "admin":
		role = server.RoleAdmin
	default:
		return fmt.Errorf("unknown role %q (want service or admin)", tokenRole)
	}

	auth := server.NewAuth([]byte(cfg.AuthSecret), "")
	token, err := auth.GenerateToken(role, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
