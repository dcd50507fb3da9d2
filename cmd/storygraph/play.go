package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/storygraph"
	"github.com/aretw0/storygraph/internal/presentation/tui"
)

func newPlayCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [story-file]",
		Short: "Play a story in the terminal",
		Long: `Plays a story file, or a stored story with --story, one node at a time.
Type the letter of a choice to follow it, or q to quit.

On an interactive terminal nodes are rendered as markdown. With --player the
playthrough is saved and --resume continues from the last node reached.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, _ := cmd.Flags().GetInt64("story")
			playerID, _ := cmd.Flags().GetInt64("player")
			resume, _ := cmd.Flags().GetBool("resume")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var sg *storygraph.Storygraph
			switch {
			case len(args) == 1:
				var err error
				if sg, storyID, _, err = c.openFile(ctx, args[0]); err != nil {
					return err
				}
			case storyID > 0:
				a, err := c.open(ctx)
				if err != nil {
					return err
				}
				defer a.Close()
				sg = a.sg
			default:
				return errStorySource
			}

			out := cmd.OutOrStdout()
			r := &storygraph.Runner{
				Input:  cmd.InOrStdin(),
				Output: out,
				Resume: resume,
			}
			if f, ok := r.Input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				tui.PrintBanner(out, storygraph.Version)
				r.Renderer = tui.NewRenderer()
				r.Prompt = tui.LetterPrompt
			}

			final, err := r.Run(ctx, sg, storyID, playerID)
			switch {
			case errors.Is(err, storygraph.ErrQuit), errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				return err
			}
			if playerID != 0 && final != nil {
				if stats, err := sg.PlayerStats(ctx, playerID); err == nil {
					fmt.Fprintf(out, ">>> Stories completed: %d\n", stats.StoriesCompleted)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64("story", 0, "ID of a stored story")
	cmd.Flags().Int64("player", 0, "Player ID; 0 plays anonymously")
	cmd.Flags().Bool("resume", false, "Continue the player's active session")
	return cmd
}
