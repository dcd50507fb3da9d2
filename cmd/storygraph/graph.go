package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [story-file]",
		Short: "Export the story graph visualization",
		Long: `Outputs a Mermaid diagram (graph TD) of a story file, or of a stored story
with --story. With --player the player's path and current node are highlighted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, _ := cmd.Flags().GetInt64("story")
			playerID, _ := cmd.Flags().GetInt64("player")
			ctx := cmd.Context()

			var chart string
			switch {
			case len(args) == 1:
				sg, id, _, err := c.openFile(ctx, args[0])
				if err != nil {
					return err
				}
				if chart, err = sg.Mermaid(ctx, id, 0); err != nil {
					return err
				}
			case storyID > 0:
				a, err := c.open(ctx)
				if err != nil {
					return err
				}
				defer a.Close()
				if chart, err = a.sg.Mermaid(ctx, storyID, playerID); err != nil {
					return err
				}
			default:
				return errStorySource
			}

			fmt.Fprint(cmd.OutOrStdout(), chart)
			return nil
		},
	}
	cmd.Flags().Int64("story", 0, "ID of a stored story")
	cmd.Flags().Int64("player", 0, "Overlay this player's progress (stored stories only)")
	return cmd
}
