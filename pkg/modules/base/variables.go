package base

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

var (
	// Operations supported by variable nodes.
	Operations = []string{"set", "add", "subtract", "multiply", "divide"}
	// Operators supported by condition nodes.
	Operators = []string{"==", "!=", ">", "<", ">=", "<="}
)

// Variables provides the variable (mutation) and condition (branch) nodes.
type Variables struct{}

func (*Variables) ID() string          { return "variables" }
func (*Variables) Name() string        { return "Variables" }
func (*Variables) Version() string     { return version }
func (*Variables) Description() string { return "Game state mutation and branching" }

func (*Variables) NodeTypes() []modules.NodeType {
	return []modules.NodeType{
		{
			TypeID:      "variable",
			DisplayName: "Variable",
			Category:    category,
			Icon:        "💾",
			DefaultData: graph.Data{"variable": "score", "operation": "set", "value": 0.0, "value_type": "number"},
			PropertiesSchema: map[string]any{
				"variable":   map[string]any{"type": "text", "label": "Variable"},
				"operation":  map[string]any{"type": "select", "label": "Operation", "options": Operations},
				"value_type": map[string]any{"type": "select", "label": "Type", "options": []string{"number", "string", "bool"}},
				"value":      map[string]any{"type": "text", "label": "Value"},
			},
		},
		{
			TypeID:      "condition",
			DisplayName: "Condition",
			Category:    category,
			Icon:        "🔀",
			DefaultData: graph.Data{"variable": "score", "operator": "==", "value": 0.0, "value_type": "number"},
			PropertiesSchema: map[string]any{
				"variable": map[string]any{"type": "text", "label": "Variable"},
				"operator": map[string]any{"type": "select", "label": "Operator", "options": Operators},
				"value":    map[string]any{"type": "text", "label": "Value"},
			},
		},
	}
}

func (*Variables) Ports(localType string, _ graph.Data) ([]graph.Port, []graph.Port) {
	in := []graph.Port{modules.InputPort()}
	if localType == "condition" {
		return in, []graph.Port{
			{ID: "output_true", Name: "True"},
			{ID: "output_false", Name: "False"},
		}
	}
	return in, []graph.Port{modules.OutputPort()}
}

// SetsVariables reports the variable a "set" node initializes.
func (*Variables) SetsVariables(n *graph.Node) []string {
	if n.LocalType() != "variable" || n.Data.String("operation", "set") != "set" {
		return nil
	}
	return []string{strings.TrimSpace(n.Data.String("variable", ""))}
}

func (v *Variables) Serialize(_ string, data graph.Data) graph.Data   { return coerceValue(data) }
func (v *Variables) Deserialize(_ string, data graph.Data) graph.Data { return coerceValue(data) }

// coerceValue turns a text-field value into the declared value_type.
func coerceValue(data graph.Data) graph.Data {
	s, ok := data["value"].(string)
	if !ok {
		return data
	}
	switch data.String("value_type", "number") {
	case "number":
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			data["value"] = f
		}
	case "bool":
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			data["value"] = b
		}
	}
	return data
}

func (*Variables) Validate(n *graph.Node, gc *lint.Context) ([]lint.Issue, error) {
	local := n.LocalType()
	name := strings.TrimSpace(n.Data.String("variable", ""))
	if name == "" {
		return []lint.Issue{issue(lint.SeverityError,
			"Variable name is empty",
			fmt.Sprintf("This %s node requires a valid variable name.", local))}, nil
	}

	var issues []lint.Issue
	switch local {
	case "variable":
		op := n.Data.String("operation", "set")
		if !slices.Contains(Operations, op) {
			issues = append(issues, issue(lint.SeverityError,
				fmt.Sprintf("Unknown operation '%s'", op),
				fmt.Sprintf("Supported operations: %s.", strings.Join(Operations, ", "))))
			break
		}
		if n.Data.String("value_type", "number") == "string" && (op == "subtract" || op == "multiply" || op == "divide") {
			issues = append(issues, issue(lint.SeverityError,
				fmt.Sprintf("Operation '%s' not compatible with string type", op),
				fmt.Sprintf("The operation '%s' cannot be used with string values. Only 'set' and 'add' (concatenation) are supported for strings.", op)))
		}
		if op != "set" && !gc.Initialized(name) {
			issues = append(issues, issue(lint.SeverityWarning,
				fmt.Sprintf("Variable '%s' used in operation '%s' but never initialized", name, op),
				fmt.Sprintf("The variable '%s' is used with operation '%s' before being set. This may cause runtime errors or unexpected behavior.", name, op)))
		}

	case "condition":
		operator := n.Data.String("operator", "==")
		if !slices.Contains(Operators, operator) {
			issues = append(issues, issue(lint.SeverityError,
				fmt.Sprintf("Unknown operator '%s'", operator),
				fmt.Sprintf("Supported operators: %s.", strings.Join(Operators, " "))))
		}
		if !gc.Initialized(name) {
			issues = append(issues, issue(lint.SeverityWarning,
				fmt.Sprintf("Variable '%s' used in condition but never initialized", name),
				fmt.Sprintf("The variable '%s' is tested in a condition before being set. This may cause unexpected behavior.", name)))
		}
	}
	return issues, nil
}
