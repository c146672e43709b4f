// Package base provides the built-in node modules.
package base

import (
	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

const (
	category = "Base"
	version  = "1.0.0"
)

// Modules returns every built-in module.
func Modules() []modules.Module {
	return []modules.Module{
		&Flow{},
		&Text{},
		&Choice{},
		&Variables{},
		&MassInit{},
		&Image{},
		&Background{},
		&Music{},
	}
}

// Register adds every built-in module to r.
func Register(r *modules.Registry) error {
	for _, m := range Modules() {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// passThrough is the port layout of nodes with one input and one output.
type passThrough struct{}

func (passThrough) Ports(string, graph.Data) ([]graph.Port, []graph.Port) {
	return []graph.Port{modules.InputPort()}, []graph.Port{modules.OutputPort()}
}

func issue(sev lint.Severity, msg, details string) lint.Issue {
	return lint.Issue{Severity: sev, Message: msg, Details: details}
}
