package base

import (
	"strings"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

// Text shows a line of narration or dialogue.
type Text struct{ passThrough }

func (*Text) ID() string          { return "text" }
func (*Text) Name() string        { return "Text" }
func (*Text) Version() string     { return version }
func (*Text) Description() string { return "Narrative text, optionally spoken by a character" }

func (*Text) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "text",
		DisplayName: "Text",
		Category:    category,
		Icon:        "📝",
		DefaultData: graph.Data{"content": "Enter your text here...", "speaker": "", "character_image": ""},
		PropertiesSchema: map[string]any{
			"content":         map[string]any{"type": "text", "label": "Content", "multiline": true},
			"speaker":         map[string]any{"type": "text", "label": "Speaker (optional)"},
			"character_image": map[string]any{"type": "file", "label": "Character image (optional)", "required": false},
		},
	}}
}

func (*Text) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	if strings.TrimSpace(n.Data.String("content", "")) == "" {
		return []lint.Issue{issue(lint.SeverityWarning,
			"Text content is empty",
			"The player will see an empty dialog box.")}, nil
	}
	return nil, nil
}
