package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/storygraph/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []int64
	CurrentNode  int64
	Unreachable  []int64
}

// OverlayFromProgress builds an overlay from a player's progress: every node
// left through a choice is visited and the current node is highlighted.
func OverlayFromProgress(p *domain.Progress) *GraphOverlay {
	if p == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedNodes: p.History.Nodes(),
		CurrentNode:  p.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart syntax string for a story.
// It applies semantic styling:
// - Start: ((Circle))
// - Choice: {Rhombus}
// - Ending: ([Stadium])
// - Default: [Rectangle]
// Choices are drawn as edges labelled with their letter. Edges to nodes outside
// the story point at a shared "missing" placeholder.
func GenerateMermaid(nodes []domain.Node, choices []domain.Choice, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	known := make(map[int64]bool, len(nodes))
	for _, node := range nodes {
		known[node.ID] = true

		opener, closer := "[", "]"
		switch {
		case node.IsStartingNode:
			opener, closer = "((", "))"
		case node.IsEndingNode || node.Type == domain.NodeTypeEnding:
			opener, closer = "([", "])"
		case node.Type == domain.NodeTypeChoice:
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(node.ID), opener, label(node), closer)
	}

	missing := false
	for _, c := range choices {
		to := mermaidID(c.ToNodeID)
		arrow := fmt.Sprintf("-- \"%s\" -->", escape(c.Letter))
		if !known[c.ToNodeID] {
			to = "missing"
			arrow = fmt.Sprintf("-. \"%s\" .->", escape(c.Letter))
			missing = true
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(c.FromNodeID), arrow, to)
	}
	if missing {
		sb.WriteString("    missing>\"missing node\"]\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef unreachable fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 2,color:#616161;\n")

		seen := make(map[int64]bool)
		for _, id := range overlay.VisitedNodes {
			// History may mention nodes that were deleted since.
			if !known[id] || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", mermaidID(id))
		}
		for _, id := range overlay.Unreachable {
			if known[id] {
				fmt.Fprintf(&sb, "    class %s unreachable;\n", mermaidID(id))
			}
		}
		if overlay.CurrentNode != 0 && known[overlay.CurrentNode] {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func label(n domain.Node) string {
	title := n.Title
	if title == "" {
		title = fmt.Sprintf("node %d", n.ID)
	}
	return escape(title)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func mermaidID(id int64) string {
	return fmt.Sprintf("n%d", id)
}
