package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muvico/platform/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *database.SchemaMigrator) error {
				return m.Up(cmd.Context())
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *database.SchemaMigrator) error {
				return m.Down(cmd.Context(), steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *database.SchemaMigrator) error {
				v, dirty, err := m.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*database.SchemaMigrator) error) error {
	a, logr, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requirePostgres(a); err != nil {
		return err
	}
	return fn(database.NewSchemaMigrator(a.DB, logr))
}
