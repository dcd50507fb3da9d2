package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the storygraph banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Teal to green gradient
	lines := []struct {
		text  string
		color string
	}{
		{"  ___ _                                 _    ", "#22d3ee"},
		{" / __| |_ ___ _ _ _  _ __ _ _ _ __ _ _ __| |_  ", "#2dd4bf"},
		{" \\__ \\  _/ _ \\ '_| || / _` | '_/ _` | '_ \\ ' \\ ", "#34d399"},
		{" |___/\\__\\___/_|  \\_, \\__, |_| \\__,_| .__/_||_|", "#4ade80"},
		{"                  |__/|___/         |_|        ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
