package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/graph"
)

func conn(from, port, to string) graph.Connection {
	return graph.Connection{FromNode: from, FromPort: port, ToNode: to, ToPort: graph.PortInput}
}

func TestTransitioner(t *testing.T) {
	tr := NewTransitioner([]graph.Connection{
		conn("choice", "output_0", "left"),
		conn("choice", "output_1", "right"),
		conn("cond", "output_true", "yes"),
		{FromNode: "text", ToNode: "next"},
		conn("dup", "output", "first"),
		conn("dup", "output", "second"),
	})
	node := func(id string) *graph.Node { return &graph.Node{ID: id, Type: "x.y"} }

	tests := []struct {
		name   string
		node   string
		port   string
		next   string
		exists bool
	}{
		{"exact indexed port", "choice", "output_1", "right", true},
		{"bare port falls back to _0", "choice", "output", "left", true},
		{"indexed port never falls back", "choice", "output_5", "", false},
		{"underscore port never falls back", "cond", "output_false", "", false},
		{"default from_port", "text", "output", "next", true},
		{"first connection wins", "dup", "output", "first", true},
		{"no outgoing connection", "left", "output", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := tr.NextNode(tt.node, tt.port)
			assert.Equal(t, tt.exists, ok)
			assert.Equal(t, tt.next, next)
			assert.Equal(t, tt.exists, tr.HasConnection(tt.node, tt.port))

			got, err := tr.Transition(node(tt.node), Next(tt.port))
			require.NoError(t, err)
			assert.Equal(t, tt.next, got)
		})
	}

	t.Run("missing final_next never defaults", func(t *testing.T) {
		for _, res := range []Result{nil, {}, {KeyFinalNext: ""}, {KeyFinalNext: 3}, {KeyAddToHistory: true}} {
			_, err := tr.Transition(node("text"), res)
			var te *TransitionError
			require.True(t, errors.As(err, &te), "result %v", res)
			assert.Equal(t, "text", te.NodeID)
		}
	})

	t.Run("connection queries", func(t *testing.T) {
		assert.Len(t, tr.ConnectionsFrom("choice"), 2)
		in := tr.ConnectionsTo("next")
		require.Len(t, in, 1)
		assert.Equal(t, graph.PortOutput, in[0].FromPort)
	})
}

type stubManager struct {
	id      string
	process func(ctx context.Context, node *graph.Node, mem *Memory) (Result, error)
	inits   int
	cleans  int
}

func (m *stubManager) ID() string { return m.id }

func (m *stubManager) Process(ctx context.Context, node *graph.Node, mem *Memory) (Result, error) {
	return m.process(ctx, node, mem)
}

func (m *stubManager) Initialize(context.Context, *Memory) error {
	m.inits++
	return nil
}

func (m *stubManager) Cleanup(context.Context, *Memory) { m.cleans++ }

func returning(id string, r Result) *stubManager {
	return &stubManager{id: id, process: func(context.Context, *graph.Node, *Memory) (Result, error) {
		return r, nil
	}}
}

func TestRegistry(t *testing.T) {
	t.Run("chain runs in order and last writer wins", func(t *testing.T) {
		r := NewRegistry()
		var order []string
		first := &stubManager{id: "first", process: func(_ context.Context, n *graph.Node, _ *Memory) (Result, error) {
			order = append(order, "first")
			n.Data = n.Data.With("seen", true)
			return Result{KeyFinalNext: "output", "extra": 1}, nil
		}}
		second := &stubManager{id: "second", process: func(_ context.Context, n *graph.Node, _ *Memory) (Result, error) {
			order = append(order, "second")
			assert.True(t, n.Data.Bool("seen", false), "later managers see earlier data swaps")
			return Result{KeyFinalNext: "output_true"}, nil
		}}
		r.Register("a.b", first)
		r.Register("a.b", second)
		r.Register("a.b", first)

		node := &graph.Node{ID: "n", Type: "a.b", Data: graph.Data{}}
		res, err := r.ProcessNode(context.Background(), node, NewMemory())
		require.NoError(t, err)

		assert.Equal(t, []string{"first", "second"}, order)
		assert.Equal(t, Result{KeyFinalNext: "output_true", "extra": 1}, res)
		assert.False(t, node.Data.Bool("seen", false), "template node must stay untouched")
	})

	t.Run("missing manager", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.ProcessNode(context.Background(), &graph.Node{ID: "n", Type: "ghost.node"}, NewMemory())
		assert.ErrorIs(t, err, ErrMissingManager)

		var me *MissingManagerError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, "ghost.node", me.NodeType)
	})

	t.Run("manager error is wrapped", func(t *testing.T) {
		r := NewRegistry()
		boom := errors.New("boom")
		r.Register("a.b", &stubManager{id: "bad", process: func(context.Context, *graph.Node, *Memory) (Result, error) {
			return nil, boom
		}})
		_, err := r.ProcessNode(context.Background(), &graph.Node{ID: "n", Type: "a.b"}, NewMemory())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("bookkeeping", func(t *testing.T) {
		r := NewRegistry()
		m := returning("m", Next("output"))
		r.RegisterTypes(m, "z.z", "a.a")

		assert.Equal(t, []string{"a.a", "z.z"}, r.NodeTypes())
		assert.True(t, r.Has("z.z"))
		assert.Len(t, r.unique(), 1)

		assert.True(t, r.Unregister("z.z", "m"))
		assert.False(t, r.Unregister("z.z", "m"))
		assert.False(t, r.Has("z.z"))
		assert.Len(t, r.Managers("a.a"), 1)
	})
}
