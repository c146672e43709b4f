// Package managers holds the runtime behavior of the built-in node types.
package managers

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

// Node types served by this package.
const (
	TypeStart      = "flow.start"
	TypeText       = "text.text"
	TypeChoice     = "choice.choice"
	TypeVariable   = "variables.variable"
	TypeCondition  = "variables.condition"
	TypeMassInit   = "massinit.massinit"
	TypeBackground = "background.background"
	TypeImage      = "image.image"
	TypeMusic      = "music.music"
)

// Deps are the collaborators managers talk to. Stage must be the one the
// engine was built with so saves capture what managers put on it.
type Deps struct {
	Presenter engine.Presenter
	Stage     engine.Stage
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Register wires every built-in manager into reg.
func Register(reg *engine.Registry, d Deps) {
	log := d.logger()
	reg.Register(TypeStart, NewStart())
	reg.Register(TypeText, NewText(d.Presenter, d.Stage, log))
	reg.Register(TypeChoice, NewChoice(d.Presenter, log))
	reg.Register(TypeVariable, NewVariable(log))
	reg.Register(TypeCondition, NewCondition(log))
	reg.Register(TypeMassInit, NewMassInit())
	reg.Register(TypeBackground, NewBackground(d.Stage, log))
	reg.Register(TypeImage, NewImage(d.Stage, log))
	reg.Register(TypeMusic, NewMusic(d.Stage, log))
}

// checkAsset warns when path is missing on disk. The stage still records
// it and the renderer shows a placeholder.
func checkAsset(log *slog.Logger, node *graph.Node, path string) {
	if _, err := os.Stat(path); err != nil {
		log.Warn("asset file not found", "node_id", node.ID, "node_type", node.Type, "path", path)
	}
}

// typedValue returns data["value"] converted to its declared value_type.
// Values typed into a text field arrive as strings.
func typedValue(data graph.Data) any {
	v, _ := data.Value("value")
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch data.String("value_type", "") {
	case "number":
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	case "bool":
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return s
}
