package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/aretw0/storygraph/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// Without a usable terminal renderer the markdown is returned unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// NodeMarkdown formats a node view as markdown: title heading, narrative
// content and the list of lettered choices. Endings get a closing marker
// instead of choices.
func NodeMarkdown(view domain.NodeView) string {
	var sb strings.Builder
	if view.Title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", view.Title)
	}
	if view.Content != "" {
		sb.WriteString(strings.TrimSpace(view.Content))
		sb.WriteString("\n\n")
	}

	if view.IsEndingNode {
		sb.WriteString("*The End.*\n")
		return sb.String()
	}
	for _, c := range view.Choices {
		fmt.Fprintf(&sb, "- **%s.** %s\n", c.Letter, c.Text)
	}
	return sb.String()
}

var letterColors = map[string]string{
	"A": "#60a5fa",
	"B": "#f472b6",
	"C": "#facc15",
	"D": "#4ade80",
}

// LetterPrompt returns the input prompt listing the available letters,
// each coloured for the active terminal profile.
func LetterPrompt(choices []domain.ChoiceView) string {
	p := termenv.ColorProfile()
	letters := make([]string, 0, len(choices))
	for _, c := range choices {
		s := termenv.String(c.Letter).Bold()
		if color, ok := letterColors[c.Letter]; ok {
			s = s.Foreground(p.Color(color))
		}
		letters = append(letters, s.String())
	}
	return fmt.Sprintf("Choose [%s] (q to quit) > ", strings.Join(letters, "/"))
}

// Consequence formats the consequences of a choice as an italic aside.
func Consequence(text string) string {
	if text == "" {
		return ""
	}
	return termenv.String("  ~ " + text).Italic().String()
}
