package main

import (
	"github.com/joshua-takyi/eventflow/internal/connect"
	"github.com/joshua-takyi/eventflow/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connect.PostgresConnect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return migrations.Up(cmd.Context(), pool, logger)
		},
	}
}
