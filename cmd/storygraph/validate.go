package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/storyfile"
)

type errInvalidStory struct{ issues int }

func (e errInvalidStory) Error() string {
	return fmt.Sprintf("story has %d issue(s)", e.issues)
}

func newValidateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [story-file]",
		Short: "Check a story for structural defects",
		Long: `Reports unreachable nodes, dead ends, missing or duplicated starting nodes,
missing endings, duplicate choice letters and choices leading outside the story.

Validates a story file, or a stored story with --story.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, _ := cmd.Flags().GetInt64("story")
			out := cmd.OutOrStdout()

			var result domain.ValidationResult
			switch {
			case len(args) == 1:
				doc, err := storyfile.Load(args[0])
				if err != nil {
					return err
				}
				result = storygraph.New(storygraph.WithLogger(c.logger)).ValidateDocument(doc)
			case storyID > 0:
				a, err := c.open(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				if result, err = a.sg.Validate(cmd.Context(), storyID); err != nil {
					return err
				}
			default:
				return errStorySource
			}

			printValidation(out, result)
			if !result.IsValid {
				return errInvalidStory{issues: len(result.Issues)}
			}
			return nil
		},
	}
	cmd.Flags().Int64("story", 0, "ID of a stored story to validate")
	return cmd
}

func printValidation(w io.Writer, r domain.ValidationResult) {
	fmt.Fprintf(w, "Nodes: %d, choices: %d\n", r.TotalNodes, r.TotalChoices)
	if r.IsValid {
		fmt.Fprintln(w, "Story is valid! ✅")
		return
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}
