package base

import (
	"fmt"
	"strings"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

// MassInit sets several variables at once.
type MassInit struct{ passThrough }

func (*MassInit) ID() string          { return "massinit" }
func (*MassInit) Name() string        { return "Mass Init" }
func (*MassInit) Version() string     { return version }
func (*MassInit) Description() string { return "Initialize several variables in one node" }

func (*MassInit) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "massinit",
		DisplayName: "Mass Init",
		Category:    category,
		Icon:        "📦",
		DefaultData: graph.Data{
			"variables": []any{
				map[string]any{"name": "var1", "value": 0.0},
				map[string]any{"name": "var2", "value": "hello"},
			},
		},
		PropertiesSchema: map[string]any{
			"variables": map[string]any{"type": "list", "label": "Variables", "item": map[string]any{"name": "text", "value": "text"}},
		},
	}}
}

func (*MassInit) SetsVariables(n *graph.Node) []string {
	var names []string
	for _, v := range n.Data.Maps("variables") {
		name, _ := v["name"].(string)
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (*MassInit) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	vars := n.Data.Maps("variables")
	if len(vars) == 0 {
		return []lint.Issue{issue(lint.SeverityWarning,
			"MassInit has no variables",
			"Add at least one variable to initialize.")}, nil
	}

	var issues []lint.Issue
	seen := make(map[string]bool, len(vars))
	for i, v := range vars {
		name, _ := v["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			issues = append(issues, issue(lint.SeverityError,
				fmt.Sprintf("Variable #%d has no name", i+1),
				fmt.Sprintf("Variable at position %d needs a name.", i+1)))
			continue
		}
		if seen[name] {
			issues = append(issues, issue(lint.SeverityWarning,
				fmt.Sprintf("Duplicate variable name '%s'", name),
				fmt.Sprintf("The variable '%s' appears multiple times in this MassInit node. The last value will be used.", name)))
		}
		seen[name] = true
	}
	return issues, nil
}
