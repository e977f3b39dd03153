package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/migrations"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", (*db.Migrator).Up),
		migrateStep("down", "Roll back the last migration", (*db.Migrator).Down),
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("version must be an integer: %w", err)
				}
				return withMigrator(cmd, func(m *db.Migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "forced version %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *db.Migrator) error {
					version, dirty, ok, err := m.Version()
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateStep(use, short string, run func(*db.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *db.Migrator) error {
				if err := run(m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s done\n", use)
				return nil
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(*db.Migrator) error) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	m, err := db.NewMigrator(url, migrations.FS, ".")
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
