package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete approved events whose end time has passed, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			appContainer, cleanup, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := appContainer.CompletionService.SweepPast(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d event(s)\n", n)
			return nil
		},
	}
}
