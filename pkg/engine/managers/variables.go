package managers

import (
	"context"
	"log/slog"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

// Variable applies one operation to one variable. Arithmetic failures are
// logged and leave memory unchanged.
type Variable struct {
	logger *slog.Logger
}

func NewVariable(logger *slog.Logger) *Variable { return &Variable{logger: logger} }

func (*Variable) ID() string { return "variable_setter" }

func (m *Variable) Process(_ context.Context, node *graph.Node, mem *engine.Memory) (engine.Result, error) {
	name := node.Data.String("variable", "")
	op := node.Data.String("operation", "set")
	value := typedValue(node.Data)

	if name == "" {
		m.logger.Warn("variable node without a variable name", "node_id", node.ID)
		return engine.Next(graph.PortOutput), nil
	}

	var err error
	switch op {
	case "set":
		mem.Set(name, value)
	case "add":
		_, err = mem.Add(name, value)
	case "subtract":
		_, err = mem.Subtract(name, value)
	case "multiply":
		_, err = mem.Multiply(name, value)
	case "divide":
		_, err = mem.Divide(name, value)
	default:
		m.logger.Warn("unknown variable operation", "node_id", node.ID, "operation", op)
	}
	if err != nil {
		m.logger.Warn("variable operation failed", "node_id", node.ID, "variable", name, "operation", op, "error", err)
	}
	return engine.Next(graph.PortOutput), nil
}

// Condition branches on a comparison. A comparison that cannot be made
// counts as false.
type Condition struct {
	logger *slog.Logger
}

func NewCondition(logger *slog.Logger) *Condition { return &Condition{logger: logger} }

func (*Condition) ID() string { return "condition_evaluator" }

func (m *Condition) Process(_ context.Context, node *graph.Node, mem *engine.Memory) (engine.Result, error) {
	name := node.Data.String("variable", "")
	op := node.Data.String("operator", "==")

	ok, err := mem.Compare(name, op, typedValue(node.Data))
	if err != nil {
		m.logger.Warn("condition failed, taking the false branch", "node_id", node.ID, "variable", name, "error", err)
		ok = false
	}
	if ok {
		return engine.Next("output_true"), nil
	}
	return engine.Next("output_false"), nil
}

// MassInit sets several variables at once.
type MassInit struct{}

func NewMassInit() *MassInit { return &MassInit{} }

func (*MassInit) ID() string { return "massinit" }

func (*MassInit) Process(_ context.Context, node *graph.Node, mem *engine.Memory) (engine.Result, error) {
	for _, v := range node.Data.Maps("variables") {
		name, _ := v["name"].(string)
		if name == "" {
			continue
		}
		value, ok := v["value"]
		if !ok {
			value = 0.0
		}
		mem.Set(name, graph.CloneValue(value))
	}
	return engine.Next(graph.PortOutput), nil
}
