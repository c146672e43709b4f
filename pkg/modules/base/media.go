package base

import (
	"fmt"
	"strings"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

// Image shows a picture on a numbered layer.
type Image struct{ passThrough }

func (*Image) ID() string          { return "image" }
func (*Image) Name() string        { return "Image" }
func (*Image) Version() string     { return version }
func (*Image) Description() string { return "Show an image on a layer" }

func (*Image) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "image",
		DisplayName: "Image",
		Category:    category,
		Icon:        "🖼",
		DefaultData: graph.Data{"image_path": "", "layer": 0.0},
		PropertiesSchema: map[string]any{
			"image_path": map[string]any{"type": "file", "label": "Image"},
			"layer":      map[string]any{"type": "number", "label": "Layer"},
		},
	}}
}

func (*Image) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	issues := checkAsset(n, "image_path", "image")
	if n.Data.Int("layer", 0) < 0 {
		issues = append(issues, issue(lint.SeverityError,
			"Layer must not be negative",
			fmt.Sprintf("Layer %d is below the background.", n.Data.Int("layer", 0))))
	}
	return issues, nil
}

// Background replaces the scene background.
type Background struct{ passThrough }

func (*Background) ID() string          { return "background" }
func (*Background) Name() string        { return "Background" }
func (*Background) Version() string     { return version }
func (*Background) Description() string { return "Change the background image" }

func (*Background) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "background",
		DisplayName: "Background",
		Category:    category,
		Icon:        "🏞",
		DefaultData: graph.Data{"image_path": ""},
		PropertiesSchema: map[string]any{
			"image_path": map[string]any{"type": "file", "label": "Image"},
		},
	}}
}

func (*Background) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	return checkAsset(n, "image_path", "background"), nil
}

// Music plays a track on a numbered channel.
type Music struct{ passThrough }

func (*Music) ID() string          { return "music" }
func (*Music) Name() string        { return "Music" }
func (*Music) Version() string     { return version }
func (*Music) Description() string { return "Play music on a track" }

func (*Music) NodeTypes() []modules.NodeType {
	return []modules.NodeType{{
		TypeID:      "music",
		DisplayName: "Music",
		Category:    category,
		Icon:        "🎵",
		DefaultData: graph.Data{"music_path": "", "track": 0.0, "repeat": true},
		PropertiesSchema: map[string]any{
			"music_path": map[string]any{"type": "file", "label": "Music"},
			"track":      map[string]any{"type": "number", "label": "Track"},
			"repeat":     map[string]any{"type": "bool", "label": "Repeat"},
		},
	}}
}

func (*Music) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	issues := checkAsset(n, "music_path", "music")
	if n.Data.Int("track", 0) < 0 {
		issues = append(issues, issue(lint.SeverityError,
			"Track must not be negative",
			fmt.Sprintf("Track %d does not exist.", n.Data.Int("track", 0))))
	}
	return issues, nil
}

func checkAsset(n *graph.Node, field, kind string) []lint.Issue {
	if strings.TrimSpace(n.Data.String(field, "")) != "" {
		return nil
	}
	return []lint.Issue{issue(lint.SeverityWarning,
		fmt.Sprintf("No %s file selected", kind),
		fmt.Sprintf("The %s node does nothing until a file is set.", kind))}
}
