package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/acmelabs/signon/internal/config"
	"github.com/acmelabs/signon/internal/gotrue"
	"github.com/spf13/cobra"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured auth backend and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		client := gotrue.New(cfg.GetAuthURL(), cfg.GetAuthAnonKey())
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("auth backend at %s is unhealthy: %w", cfg.GetAuthURL(), err)
		}

		fmt.Printf("auth backend at %s is healthy\n", cfg.GetAuthURL())
		return nil
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "probe timeout")
	rootCmd.AddCommand(checkCmd)
}
