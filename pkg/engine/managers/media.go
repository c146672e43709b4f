package managers

import (
	"context"
	"log/slog"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

// Background swaps the background image.
type Background struct {
	stage  engine.Stage
	logger *slog.Logger
}

func NewBackground(stage engine.Stage, logger *slog.Logger) *Background {
	return &Background{stage: stage, logger: logger}
}

func (*Background) ID() string { return "background_manager" }

func (m *Background) Process(_ context.Context, node *graph.Node, _ *engine.Memory) (engine.Result, error) {
	path := node.Data.String("image_path", "")
	if path == "" {
		m.logger.Warn("background node without an image", "node_id", node.ID)
		return engine.Next(graph.PortOutput), nil
	}
	checkAsset(m.logger, node, path)
	m.stage.SetBackground(path)
	return engine.Next(graph.PortOutput), nil
}

// Image shows an image on a layer. Higher layers draw on top.
type Image struct {
	stage  engine.Stage
	logger *slog.Logger
}

func NewImage(stage engine.Stage, logger *slog.Logger) *Image {
	return &Image{stage: stage, logger: logger}
}

func (*Image) ID() string { return "image_manager" }

func (m *Image) Process(_ context.Context, node *graph.Node, _ *engine.Memory) (engine.Result, error) {
	path := node.Data.String("image_path", "")
	if path == "" {
		m.logger.Warn("image node without an image", "node_id", node.ID)
		return engine.Next(graph.PortOutput), nil
	}
	checkAsset(m.logger, node, path)
	m.stage.ShowImage(node.Data.Int("layer", 0), path)
	return engine.Next(graph.PortOutput), nil
}

// Music starts a track. Music keeps playing across nodes.
type Music struct {
	stage  engine.Stage
	logger *slog.Logger
}

func NewMusic(stage engine.Stage, logger *slog.Logger) *Music {
	return &Music{stage: stage, logger: logger}
}

func (*Music) ID() string { return "music_manager" }

func (m *Music) Process(_ context.Context, node *graph.Node, _ *engine.Memory) (engine.Result, error) {
	path := node.Data.String("music_path", "")
	if path == "" {
		m.logger.Warn("music node without a file", "node_id", node.ID)
		return engine.Next(graph.PortOutput), nil
	}
	checkAsset(m.logger, node, path)
	m.stage.PlayMusic(node.Data.Int("track", 0), path, node.Data.Bool("repeat", true))
	return engine.Next(graph.PortOutput), nil
}
