package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/pkg/logger"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema at db_path",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := repository.OpenDB(cmd.Context(), c.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := repository.MigrateUp(db, logger.Get().Named("migrate")); err != nil {
					return err
				}
				return printVersion(cmd, c)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := repository.OpenDB(cmd.Context(), c.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := repository.MigrateDown(db, logger.Get().Named("migrate")); err != nil {
					return err
				}
				return printVersion(cmd, c)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printVersion(cmd, c)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, c *cli) error {
	db, err := repository.OpenDB(cmd.Context(), c.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := repository.MigrateVersion(db, logger.Get().Named("migrate"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
