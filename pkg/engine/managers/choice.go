package managers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

var ErrInvalidChoice = errors.New("choice index out of range")

// Choice asks the player to pick one branch.
type Choice struct {
	presenter engine.Presenter
	logger    *slog.Logger
}

// NewChoice creates the choice manager.
func NewChoice(p engine.Presenter, logger *slog.Logger) *Choice {
	return &Choice{presenter: p, logger: logger}
}

func (*Choice) ID() string { return "choice_input" }

func (m *Choice) Process(ctx context.Context, node *graph.Node, mem *engine.Memory) (engine.Result, error) {
	entries := node.Data.Maps("choices")
	if len(entries) == 0 {
		m.logger.Warn("choice node has no choices", "node_id", node.ID)
		return engine.Next(graph.PortOutput), nil
	}

	choices := make([]string, len(entries))
	for i, c := range entries {
		text, _ := c["text"].(string)
		if text == "" {
			text = fmt.Sprintf("Choice %d", i+1)
		}
		choices[i] = Interpolate(text, mem)
	}

	reply, err := m.presenter.Present(ctx, engine.Prompt{
		NodeID:  node.ID,
		Kind:    engine.PromptChoice,
		Text:    Interpolate(node.Data.String("question", ""), mem),
		Choices: choices,
	})
	if err != nil {
		return nil, err
	}
	if reply.Canceled {
		return engine.Canceled(graph.PortOutput), nil
	}
	if reply.Choice < 0 || reply.Choice >= len(choices) {
		return nil, fmt.Errorf("%w: %d of %d on node %s", ErrInvalidChoice, reply.Choice, len(choices), node.ID)
	}
	return engine.Interactive(fmt.Sprintf("output_%d", reply.Choice)), nil
}
