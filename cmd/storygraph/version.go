package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of storygraph",
		// Skip configuration loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storygraph version %s\n", storygraph.Version)
		},
	}
}
