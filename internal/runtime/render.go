package runtime

import (
	"context"

	"github.com/aretw0/storygraph/pkg/domain"
)

// render pairs node with its outgoing choices, ordered by letter.
func (e *Engine) render(ctx context.Context, op string, node domain.Node) (domain.NodeView, error) {
	choices, err := e.graph.GetChoicesFrom(ctx, node.ID)
	if err != nil {
		return domain.NodeView{}, lookupError(op, domain.EntityNode, node.ID, err)
	}
	return domain.NewNodeView(node, choices), nil
}
