package storygraph

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/storygraph/internal/presentation/tui"
	"github.com/aretw0/storygraph/pkg/domain"
)

// ErrQuit is returned by Runner.Run when the reader leaves the story early.
var ErrQuit = errors.New("player quit")

// Runner plays a story interactively over the provided IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Renderer ContentRenderer
	Prompt   func([]domain.ChoiceView) string
	// Resume continues the player's active session instead of restarting.
	Resume bool
}

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Run plays storyID as playerID until an ending is reached, the input ends or
// the reader types q.
func (r *Runner) Run(ctx context.Context, sg *Storygraph, storyID, playerID int64) (*domain.NodeView, error) {
	if r.Input == nil {
		return nil, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	var view domain.NodeView
	var err error
	if r.Resume {
		view, err = sg.CurrentNode(ctx, storyID, playerID)
	} else {
		view, err = sg.StartStory(ctx, storyID, playerID)
	}
	if err != nil {
		return nil, err
	}

	for {
		r.show(view)
		if view.IsEndingNode || len(view.Choices) == 0 {
			return &view, nil
		}

		choice, err := r.ask(ctx, lines, view.Choices)
		if err != nil {
			return &view, err
		}

		result, err := sg.MakeChoice(ctx, domain.ChoiceRequest{
			CurrentNodeID: view.ID,
			ChoiceID:      choice.ID,
			PlayerID:      playerID,
		})
		if err != nil {
			return &view, fmt.Errorf("choice %s failed: %w", choice.Letter, err)
		}
		if result.Consequences != "" {
			fmt.Fprintln(r.Output, tui.Consequence(result.Consequences))
		}
		if playerID != 0 && !result.ProgressSaved {
			fmt.Fprintln(r.Output, ">>> Progress could not be saved.")
		}
		view = result.NextNode
	}
}

func (r *Runner) show(view domain.NodeView) {
	output := tui.NodeMarkdown(view)
	if r.Renderer != nil {
		if rendered, err := r.Renderer(output); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))
}

// ask reads lines until one names an available letter.
func (r *Runner) ask(ctx context.Context, lines *bufio.Reader, choices []domain.ChoiceView) (domain.ChoiceView, error) {
	prompt := defaultPrompt
	if r.Prompt != nil {
		prompt = r.Prompt
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.ChoiceView{}, err
		}
		fmt.Fprint(r.Output, prompt(choices))

		text, err := lines.ReadString('\n')
		input := strings.ToUpper(strings.TrimSpace(text))
		if err != nil && input == "" {
			if errors.Is(err, io.EOF) {
				return domain.ChoiceView{}, ErrQuit
			}
			return domain.ChoiceView{}, fmt.Errorf("input error: %w", err)
		}

		switch input {
		case "Q", "QUIT", "EXIT":
			fmt.Fprintln(r.Output, "Bye!")
			return domain.ChoiceView{}, ErrQuit
		}
		for _, c := range choices {
			if c.Letter == input {
				return c, nil
			}
		}
		fmt.Fprintf(r.Output, "No choice %q here.\n", input)
	}
}

func defaultPrompt(choices []domain.ChoiceView) string {
	letters := make([]string, len(choices))
	for i, c := range choices {
		letters[i] = c.Letter
	}
	return fmt.Sprintf("[%s] > ", strings.Join(letters, "/"))
}
