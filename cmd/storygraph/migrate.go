package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph/pkg/adapters/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate {up|down|version}",
		Short:     "Manage the PostgreSQL schema",
		Long:      `Applies or rolls back the embedded schema migrations on STORYGRAPH_DATABASE_URL.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.DatabaseURL == "" {
				return fmt.Errorf("STORYGRAPH_DATABASE_URL is required")
			}
			ctx := cmd.Context()

			pool, err := postgres.Connect(ctx, c.cfg.DatabaseURL, c.cfg.DBMaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := postgres.NewMigrator(pool, c.logger)
			out := cmd.OutOrStdout()

			switch args[0] {
			case "up":
				if err := m.Up(ctx); err != nil {
					return err
				}
			case "down":
				if err := m.Down(ctx); err != nil {
					return err
				}
			case "version":
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}

			version, dirty, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
	return cmd
}
