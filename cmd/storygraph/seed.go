package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph/pkg/storyfile"
)

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file-or-dir>",
		Short: "Load story files into the configured graph",
		Long: `Seeds story files (YAML or JSON) into the configured backend and prints the new
story IDs. Useful with the postgres backend; memory graphs are seeded from
--stories at startup instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			var ids []int64
			if info.IsDir() {
				if ids, err = a.sg.SeedDir(ctx, args[0]); err != nil {
					return err
				}
			} else {
				doc, err := storyfile.Load(args[0])
				if err != nil {
					return err
				}
				id, err := a.sg.Seed(ctx, doc)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded story %d\n", id)
			}
			return nil
		},
	}
}
