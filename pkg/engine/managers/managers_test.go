package managers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/graph"
)

// mockPresenter records prompts and answers through PresentFunc.
type mockPresenter struct {
	PresentFunc func(ctx context.Context, p engine.Prompt) (engine.Reply, error)
	prompts     []engine.Prompt
}

func (m *mockPresenter) Present(ctx context.Context, p engine.Prompt) (engine.Reply, error) {
	m.prompts = append(m.prompts, p)
	if m.PresentFunc == nil {
		return engine.Reply{}, nil
	}
	return m.PresentFunc(ctx, p)
}

func quietLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func node(id, typ string, data graph.Data) *graph.Node {
	return &graph.Node{ID: id, Type: typ, Data: data}
}

func TestVariable(t *testing.T) {
	ctx := context.Background()
	log, logs := quietLogger()
	m := NewVariable(log)

	t.Run("add twice from empty memory", func(t *testing.T) {
		mem := engine.NewMemory()
		n := node("v", TypeVariable, graph.Data{"variable": "score", "operation": "add", "value": 5.0})
		for range 2 {
			res, err := m.Process(ctx, n, mem)
			require.NoError(t, err)
			assert.Equal(t, engine.Next("output"), res)
		}
		assert.Equal(t, 10.0, mem.GetOr("score", nil))
	})

	tests := []struct {
		name     string
		start    any
		data     graph.Data
		expected any
	}{
		{"set string", nil, graph.Data{"variable": "x", "operation": "set", "value": "hi", "value_type": "string"}, "hi"},
		{"set typed number", nil, graph.Data{"variable": "x", "operation": "set", "value": "3.5", "value_type": "number"}, 3.5},
		{"set typed bool", nil, graph.Data{"variable": "x", "operation": "set", "value": "true", "value_type": "bool"}, true},
		{"subtract", 10.0, graph.Data{"variable": "x", "operation": "subtract", "value": 4.0}, 6.0},
		{"multiply", 3.0, graph.Data{"variable": "x", "operation": "multiply", "value": 2.0}, 6.0},
		{"divide", 9.0, graph.Data{"variable": "x", "operation": "divide", "value": 3.0}, 3.0},
		{"divide by zero is a no-op", 9.0, graph.Data{"variable": "x", "operation": "divide", "value": 0.0}, 9.0},
		{"unknown operation is a no-op", 1.0, graph.Data{"variable": "x", "operation": "pow", "value": 2.0}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := engine.NewMemory()
			if tt.start != nil {
				mem.Set("x", tt.start)
			}
			res, err := m.Process(ctx, node("v", TypeVariable, tt.data), mem)
			require.NoError(t, err)
			assert.Equal(t, "output", res[engine.KeyFinalNext])
			assert.Equal(t, tt.expected, mem.GetOr("x", nil))
		})
	}

	assert.Contains(t, logs.String(), "variable operation failed")
}

func TestCondition(t *testing.T) {
	ctx := context.Background()
	log, _ := quietLogger()
	m := NewCondition(log)

	tests := []struct {
		name string
		data graph.Data
		port string
	}{
		{"true branch", graph.Data{"variable": "score", "operator": ">", "value": 5.0}, "output_true"},
		{"false branch", graph.Data{"variable": "score", "operator": "<", "value": 5.0}, "output_false"},
		{"string value typed as number", graph.Data{"variable": "score", "operator": "==", "value": "10", "value_type": "number"}, "output_true"},
		{"bad operator degrades to false", graph.Data{"variable": "score", "operator": "~", "value": 5.0}, "output_false"},
		{"unordered values degrade to false", graph.Data{"variable": "flag", "operator": ">", "value": 1.0}, "output_false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := engine.NewMemory()
			mem.Set("score", 10.0)
			mem.Set("flag", true)
			res, err := m.Process(ctx, node("c", TypeCondition, tt.data), mem)
			require.NoError(t, err)
			assert.Equal(t, tt.port, res[engine.KeyFinalNext])
			assert.False(t, res.AddToHistory())
		})
	}
}

func TestMassInit(t *testing.T) {
	mem := engine.NewMemory()
	mem.Set("hp", 1.0)
	n := node("m", TypeMassInit, graph.Data{"variables": []any{
		map[string]any{"name": "hp", "value": 100.0},
		map[string]any{"name": "name", "value": "hero"},
		map[string]any{"name": "", "value": "ignored"},
		map[string]any{"name": "bag", "value": []any{"rope"}},
	}})

	res, err := NewMassInit().Process(context.Background(), n, mem)
	require.NoError(t, err)
	assert.Equal(t, engine.Next("output"), res)
	assert.Equal(t, map[string]any{"hp": 100.0, "name": "hero", "bag": []any{"rope"}}, mem.All())

	bag, _ := mem.Get("bag")
	bag.([]any)[0] = "torch"
	assert.Equal(t, "rope", n.Data.Maps("variables")[3]["value"].([]any)[0], "memory must not alias node data")
}

func TestText(t *testing.T) {
	log, logs := quietLogger()
	presenter := &mockPresenter{}
	stage := engine.NewScene()
	m := NewText(presenter, stage, log)

	mem := engine.NewMemory()
	mem.Set("score", 42.0)
	mem.Set("who", "Mira")

	n := node("t", TypeText, graph.Data{
		"content":         "You have {{score}} points, {{ who }}. {{missing}} stays.",
		"speaker":         "{{who}}",
		"character_image": "/nowhere/mira.png",
	})
	res, err := m.Process(context.Background(), n, mem)
	require.NoError(t, err)
	assert.Equal(t, engine.Interactive("output"), res)

	require.Len(t, presenter.prompts, 1)
	p := presenter.prompts[0]
	assert.Equal(t, engine.PromptText, p.Kind)
	assert.Equal(t, "You have 42 points, Mira. {{missing}} stays.", p.Text)
	assert.Equal(t, "Mira", p.Speaker)
	assert.Equal(t, "/nowhere/mira.png", stage.Snapshot().Portrait)
	assert.Contains(t, logs.String(), "asset file not found")

	t.Run("no portrait hides it", func(t *testing.T) {
		_, err := m.Process(context.Background(), node("t2", TypeText, graph.Data{"content": "hi"}), mem)
		require.NoError(t, err)
		assert.Equal(t, "", stage.Snapshot().Portrait)
	})

	t.Run("interrupted wait is not an answer", func(t *testing.T) {
		presenter.PresentFunc = func(context.Context, engine.Prompt) (engine.Reply, error) {
			return engine.Reply{Canceled: true}, nil
		}
		res, err := m.Process(context.Background(), n, mem)
		require.NoError(t, err)
		assert.True(t, res.WasCanceled())
	})

	t.Run("presenter error aborts", func(t *testing.T) {
		presenter.PresentFunc = func(ctx context.Context, _ engine.Prompt) (engine.Reply, error) {
			return engine.Reply{}, context.Canceled
		}
		_, err := m.Process(context.Background(), n, mem)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestChoice(t *testing.T) {
	ctx := context.Background()
	log, _ := quietLogger()
	data := graph.Data{
		"question": "Which way?",
		"choices":  []any{map[string]any{"text": "Go left"}, map[string]any{"text": ""}},
	}

	t.Run("selected index picks the port", func(t *testing.T) {
		p := &mockPresenter{PresentFunc: func(context.Context, engine.Prompt) (engine.Reply, error) {
			return engine.Reply{Choice: 1}, nil
		}}
		res, err := NewChoice(p, log).Process(ctx, node("q", TypeChoice, data), engine.NewMemory())
		require.NoError(t, err)
		assert.Equal(t, engine.Interactive("output_1"), res)
		assert.Equal(t, []string{"Go left", "Choice 2"}, p.prompts[0].Choices)
		assert.Equal(t, engine.PromptChoice, p.prompts[0].Kind)
	})

	t.Run("out of range", func(t *testing.T) {
		p := &mockPresenter{PresentFunc: func(context.Context, engine.Prompt) (engine.Reply, error) {
			return engine.Reply{Choice: 2}, nil
		}}
		_, err := NewChoice(p, log).Process(ctx, node("q", TypeChoice, data), engine.NewMemory())
		assert.True(t, errors.Is(err, ErrInvalidChoice))
	})

	t.Run("canceled", func(t *testing.T) {
		p := &mockPresenter{PresentFunc: func(context.Context, engine.Prompt) (engine.Reply, error) {
			return engine.Reply{Canceled: true}, nil
		}}
		res, err := NewChoice(p, log).Process(ctx, node("q", TypeChoice, data), engine.NewMemory())
		require.NoError(t, err)
		assert.Equal(t, engine.Canceled("output"), res)
		assert.True(t, res.WasCanceled())
	})

	t.Run("no choices passes through", func(t *testing.T) {
		p := &mockPresenter{}
		res, err := NewChoice(p, log).Process(ctx, node("q", TypeChoice, graph.Data{"question": "?"}), engine.NewMemory())
		require.NoError(t, err)
		assert.Equal(t, engine.Next("output"), res)
		assert.Empty(t, p.prompts)
	})
}

func TestMedia(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bg := filepath.Join(dir, "bg.png")
	require.NoError(t, os.WriteFile(bg, []byte("png"), 0o644))

	log, logs := quietLogger()
	stage := engine.NewScene()

	_, err := NewBackground(stage, log).Process(ctx, node("b", TypeBackground, graph.Data{"image_path": bg}), nil)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "asset file not found")

	_, err = NewImage(stage, log).Process(ctx, node("i", TypeImage, graph.Data{"image_path": "/missing/door.png", "layer": 2.0}), nil)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "asset file not found")

	_, err = NewMusic(stage, log).Process(ctx, node("m", TypeMusic, graph.Data{"music_path": "/missing/theme.ogg", "track": 1.0, "repeat": false}), nil)
	require.NoError(t, err)

	res, err := NewImage(stage, log).Process(ctx, node("e", TypeImage, graph.Data{"image_path": ""}), nil)
	require.NoError(t, err)
	assert.Equal(t, engine.Next("output"), res)

	snap := stage.Snapshot()
	assert.Equal(t, bg, snap.Background)
	assert.Equal(t, map[int]string{2: "/missing/door.png"}, snap.Layers)
	assert.Equal(t, map[int]engine.Track{1: {Path: "/missing/theme.ogg", Repeat: false}}, snap.Tracks)
}

// A full template through the real managers: start, variable, condition,
// choice and text.
func TestRegisteredManagersDriveEngine(t *testing.T) {
	raw := []byte(`{
		"version": "1.0.0",
		"metadata": {"title": "t", "author": "a"},
		"nodes": {
			"start": {"id": "start", "type": "flow.start", "data": {}},
			"init":  {"id": "init", "type": "massinit.massinit", "data": {"variables": [{"name": "score", "value": 0}]}},
			"win":   {"id": "win", "type": "variables.variable", "data": {"variable": "score", "operation": "add", "value": 10}},
			"check": {"id": "check", "type": "variables.condition", "data": {"variable": "score", "operator": ">", "value": 5}},
			"q":     {"id": "q", "type": "choice.choice", "data": {"question": "Which way?", "choices": [{"text": "Go left"}, {"text": "Go right"}]}},
			"L":     {"id": "L", "type": "text.text", "data": {"content": "left"}},
			"R":     {"id": "R", "type": "text.text", "data": {"content": "right with {{score}}"}},
			"lose":  {"id": "lose", "type": "text.text", "data": {"content": "lost"}}
		},
		"connections": [
			{"from_node": "start", "to_node": "init"},
			{"from_node": "init", "to_node": "win"},
			{"from_node": "win", "to_node": "check"},
			{"from_node": "check", "from_port": "output_true", "to_node": "q"},
			{"from_node": "check", "from_port": "output_false", "to_node": "lose"},
			{"from_node": "q", "from_port": "output_0", "to_node": "L"},
			{"from_node": "q", "from_port": "output_1", "to_node": "R"}
		],
		"start_node": "start",
		"modules": []
	}`)
	tmpl, err := graph.Parse(raw)
	require.NoError(t, err)

	presenter := &mockPresenter{PresentFunc: func(_ context.Context, p engine.Prompt) (engine.Reply, error) {
		if p.Kind == engine.PromptChoice {
			return engine.Reply{Choice: 1}, nil
		}
		return engine.Reply{}, nil
	}}
	log, _ := quietLogger()
	stage := engine.NewScene()
	reg := engine.NewRegistry()
	Register(reg, Deps{Presenter: presenter, Stage: stage, Logger: log})

	e, err := engine.New(engine.Options{Template: tmpl, Registry: reg, Stage: stage, Logger: log})
	require.NoError(t, err)
	require.NoError(t, e.NewGame(""))

	out, err := e.Play(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTerminate, out)
	assert.Equal(t, []string{"q", "R"}, e.History())
	assert.Equal(t, 10.0, e.Memory().GetOr("score", nil))

	require.Len(t, presenter.prompts, 2)
	assert.Equal(t, "right with 10", presenter.prompts[1].Text)
}
