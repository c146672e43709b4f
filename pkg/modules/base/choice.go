package base

import (
	"fmt"
	"strings"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

// Choice asks a question and branches on the answer. It has one output
// port per choice.
type Choice struct{}

func (*Choice) ID() string          { return "choice" }
func (*Choice) Name() string        { return "Choice" }
func (*Choice) Version() string     { return version }
func (*Choice) Description() string { return "Player decision with one branch per answer" }

func (*Choice) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "choice",
		DisplayName: "Choice",
		Category:    category,
		Icon:        "❓",
		DefaultData: graph.Data{
			"question": "What do you do?",
			"choices": []any{
				map[string]any{"text": "Choice 1"},
				map[string]any{"text": "Choice 2"},
			},
		},
		PropertiesSchema: map[string]any{
			"question": map[string]any{"type": "text", "label": "Question", "multiline": true},
			"choices":  map[string]any{"type": "list", "label": "Choices", "item": map[string]any{"text": "text"}},
		},
	}}
}

func (*Choice) Ports(_ string, data graph.Data) ([]graph.Port, []graph.Port) {
	choices := data.Maps("choices")
	outputs := make([]graph.Port, 0, len(choices))
	for i, c := range choices {
		name, _ := c["text"].(string)
		if name == "" {
			name = fmt.Sprintf("Choice %d", i+1)
		}
		outputs = append(outputs, graph.Port{ID: fmt.Sprintf("output_%d", i), Name: name})
	}
	return []graph.Port{modules.InputPort()}, outputs
}

func (*Choice) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	var issues []lint.Issue

	if strings.TrimSpace(n.Data.String("question", "")) == "" {
		issues = append(issues, issue(lint.SeverityError,
			"Question is empty",
			"A choice node must have a question to display to the player."))
	}

	choices := n.Data.Maps("choices")
	if len(choices) < 2 {
		issues = append(issues, issue(lint.SeverityError,
			fmt.Sprintf("Choice node has only %d choice(s)", len(choices)),
			"A choice node must have at least 2 choices. Add more choices or use a different node type."))
	}

	for i, c := range choices {
		text, _ := c["text"].(string)
		if strings.TrimSpace(text) == "" {
			issues = append(issues, issue(lint.SeverityError,
				fmt.Sprintf("Choice #%d is empty", i+1),
				fmt.Sprintf("Choice #%d has no text. Each choice must have descriptive text.", i+1)))
		}
	}
	return issues, nil
}
