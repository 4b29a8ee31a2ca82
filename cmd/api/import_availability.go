package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/importer"
	"github.com/spf13/cobra"
)

func newImportAvailabilityCmd() *cobra.Command {
	var (
		file    string
		adminID string
	)

	cmd := &cobra.Command{
		Use:   "import-availability",
		Short: "Replace venue weekly windows from a CSV or XLSX file of code, day, opens_at, closes_at",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := uuid.Parse(adminID)
			if err != nil {
				return fmt.Errorf("invalid --admin: %w", err)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := importer.Read(file, f)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			appContainer, cleanup, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			venues, err := appContainer.VenueService.ImportAvailability(cmd.Context(), rows, admin)
			if err != nil {
				return err
			}
			for _, v := range venues {
				for _, w := range v.Availability {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s-%s\n", v.Code, w.Day, w.OpensAt, w.ClosesAt)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a .csv or .xlsx file")
	cmd.Flags().StringVar(&adminID, "admin", "", "profile id of the admin performing the import")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}
