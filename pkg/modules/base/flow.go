package base

import (
	"choicegraph/pkg/graph"
	"choicegraph/pkg/modules"
)

// Flow provides the start marker node. Linting walks the graph from it.
type Flow struct{}

func (*Flow) ID() string          { return "flow" }
func (*Flow) Name() string        { return "Flow" }
func (*Flow) Version() string     { return version }
func (*Flow) Description() string { return "Entry point of a story" }

func (*Flow) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "start",
		DisplayName: "Start",
		Category:    category,
		Icon:        "▶",
		DefaultData: graph.Data{},
	}}
}

func (*Flow) Ports(string, graph.Data) ([]graph.Port, []graph.Port) {
	return nil, []graph.Port{modules.OutputPort()}
}
