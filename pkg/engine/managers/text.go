package managers

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces {{name}} with the value of name. Unknown variables
// are left as written.
func Interpolate(text string, mem *engine.Memory) string {
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := mem.Get(name)
		if !ok || v == nil {
			return match
		}
		return graph.FormatValue(v)
	})
}

// Text shows narrative text and waits for the player to continue.
type Text struct {
	presenter engine.Presenter
	stage     engine.Stage
	logger    *slog.Logger
}

// NewText creates the text manager.
func NewText(p engine.Presenter, stage engine.Stage, logger *slog.Logger) *Text {
	return &Text{presenter: p, stage: stage, logger: logger}
}

func (*Text) ID() string { return "text_display" }

func (m *Text) Process(ctx context.Context, node *graph.Node, mem *engine.Memory) (engine.Result, error) {
	portrait := strings.TrimSpace(node.Data.String("character_image", ""))
	if portrait != "" {
		checkAsset(m.logger, node, portrait)
	}
	m.stage.SetPortrait(portrait)

	prompt := engine.Prompt{
		NodeID:   node.ID,
		Kind:     engine.PromptText,
		Speaker:  Interpolate(node.Data.String("speaker", ""), mem),
		Text:     Interpolate(node.Data.String("content", ""), mem),
		Portrait: portrait,
	}
	reply, err := m.presenter.Present(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if reply.Canceled {
		return engine.Canceled(graph.PortOutput), nil
	}
	return engine.Interactive(graph.PortOutput), nil
}
