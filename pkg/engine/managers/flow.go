package managers

import (
	"context"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

// Start passes straight through the entry node.
type Start struct{}

func NewStart() *Start { return &Start{} }

func (*Start) ID() string { return "flow_start" }

func (*Start) Process(context.Context, *graph.Node, *engine.Memory) (engine.Result, error) {
	return engine.Next(graph.PortOutput), nil
}
