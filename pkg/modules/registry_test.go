package modules

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
)

// fakeModule provides "fake.branch" whose outputs follow data["branches"].
type fakeModule struct {
	id          string
	version     string
	initErr     error
	initialized int
	cleaned     int
}

func (m *fakeModule) ID() string          { return m.id }
func (m *fakeModule) Name() string        { return "Fake " + m.id }
func (m *fakeModule) Version() string     { return m.version }
func (m *fakeModule) Description() string { return "test module" }

func (m *fakeModule) NodeTypes() []NodeType {
	return []NodeType{{TypeID: "branch", DisplayName: "Branch", Category: "Test", DefaultData: graph.Data{"branches": 2.0}}}
}

func (m *fakeModule) Ports(_ string, data graph.Data) ([]graph.Port, []graph.Port) {
	n := data.Int("branches", 0)
	outs := make([]graph.Port, n)
	for i := range outs {
		outs[i] = graph.Port{ID: fmt.Sprintf("output_%d", i)}
	}
	return []graph.Port{InputPort()}, outs
}

func (m *fakeModule) Initialize() error {
	m.initialized++
	return m.initErr
}

func (m *fakeModule) Cleanup() { m.cleaned++ }

func (m *fakeModule) Validate(n *graph.Node, _ *lint.Context) ([]lint.Issue, error) {
	if n.Data.Int("branches", 0) == 0 {
		return []lint.Issue{{Severity: lint.SeverityError, Message: "no branches"}}, nil
	}
	return nil, nil
}

// upperModule also serializes and builds widgets.
type upperModule struct{ fakeModule }

func (m *upperModule) Serialize(_ string, data graph.Data) graph.Data {
	return data.With("serialized", true)
}

func (m *upperModule) Deserialize(_ string, data graph.Data) graph.Data {
	return data.With("deserialized", true)
}

func (m *upperModule) CreateWidget(localType, nodeID string, pos graph.Position) any {
	return fmt.Sprintf("%s:%s@%v,%v", localType, nodeID, pos.X, pos.Y)
}

func newTestRegistry(t *testing.T) (*Registry, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return NewRegistry(slog.New(slog.NewTextHandler(&logs, nil))), &logs
}

func TestRegisterReplacesWithWarning(t *testing.T) {
	r, logs := newTestRegistry(t)

	first := &fakeModule{id: "fake", version: "1"}
	second := &fakeModule{id: "fake", version: "2"}

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	m, ok := r.ModuleFor("fake.branch")
	require.True(t, ok)
	assert.Equal(t, "2", m.Version())
	assert.Equal(t, 1, first.cleaned, "replaced module is cleaned up")
	assert.Equal(t, 1, second.initialized)
	assert.Contains(t, logs.String(), "module already registered, replacing")
	assert.Len(t, r.Modules(), 1)
}

func TestRegisterInitializeFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	initErr := errors.New("no assets")

	err := r.Register(&fakeModule{id: "broken", initErr: initErr})
	assert.ErrorIs(t, err, initErr)

	_, ok := r.Module("broken")
	assert.False(t, ok)
}

func TestRegisterFailedReplacementKeepsOriginal(t *testing.T) {
	r, _ := newTestRegistry(t)
	initErr := errors.New("no assets")

	original := &fakeModule{id: "fake", version: "1"}
	require.NoError(t, r.Register(original))

	err := r.Register(&fakeModule{id: "fake", version: "2", initErr: initErr})
	assert.ErrorIs(t, err, initErr)

	m, ok := r.ModuleFor("fake.branch")
	require.True(t, ok)
	assert.Equal(t, "1", m.Version())
	assert.Equal(t, 0, original.cleaned)
	assert.Len(t, r.Modules(), 1)
}

func TestUnregister(t *testing.T) {
	r, _ := newTestRegistry(t)
	m := &fakeModule{id: "fake"}
	require.NoError(t, r.Register(m))

	assert.True(t, r.Unregister("fake"))
	assert.False(t, r.Unregister("fake"))
	assert.Equal(t, 1, m.cleaned)

	_, ok := r.ModuleFor("fake.branch")
	assert.False(t, ok)
	assert.Empty(t, r.NodeTypes())
}

func TestDelegationFallbacks(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "plain"}))
	require.NoError(t, r.Register(&upperModule{fakeModule{id: "rich"}}))

	data := graph.Data{"k": "v"}

	tests := []struct {
		name     string
		nodeType string
		wantSer  graph.Data
		wantDes  graph.Data
		widget   bool
	}{
		{name: "unknown type", nodeType: "nope.x", wantSer: data, wantDes: data},
		{name: "module without serializer", nodeType: "plain.branch", wantSer: data, wantDes: data},
		{
			name:     "module with serializer",
			nodeType: "rich.branch",
			wantSer:  graph.Data{"k": "v", "serialized": true},
			wantDes:  graph.Data{"k": "v", "deserialized": true},
			widget:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSer, r.Serialize(tt.nodeType, data))
			assert.Equal(t, tt.wantDes, r.Deserialize(tt.nodeType, data))

			w, ok := r.CreateWidget(tt.nodeType, "n1", graph.Position{X: 1, Y: 2})
			assert.Equal(t, tt.widget, ok)
			if tt.widget {
				assert.Equal(t, "branch:n1@1,2", w)
			} else {
				assert.Nil(t, w)
			}

			_, ok = r.CreatePropertiesEditor(tt.nodeType, data, func(graph.Data) {})
			assert.False(t, ok)
		})
	}
	assert.Equal(t, graph.Data{"k": "v"}, data, "delegation must not mutate the input")
}

func TestNewNodeAndPorts(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "fake"}))

	n, err := r.NewNode("fake.branch", "n1", graph.Position{X: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, n.Data.Int("branches", 0))

	ins, outs, ok := r.Ports(n)
	require.True(t, ok)
	assert.Len(t, ins, 1)
	assert.Equal(t, []graph.Port{{ID: "output_0"}, {ID: "output_1"}}, outs)

	_, err = r.NewNode("ghost.node", "n2", graph.Position{})
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestReplaceNodeDataPrunesStalePorts(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "fake"}))

	tmpl := graph.New("t", "")
	for _, id := range []string{"b", "x", "y", "z"} {
		n, err := r.NewNode("fake.branch", id, graph.Position{})
		require.NoError(t, err)
		require.NoError(t, tmpl.AddNode(n))
	}
	for _, c := range []graph.Connection{
		{FromNode: "b", FromPort: "output_0", ToNode: "x"},
		{FromNode: "b", FromPort: "output_1", ToNode: "y"},
		{FromNode: "z", FromPort: "output_0", ToNode: "b"},
	} {
		_, err := tmpl.Connect(c)
		require.NoError(t, err)
	}

	dropped, err := r.ReplaceNodeData(tmpl, "b", graph.Data{"branches": 1.0})
	require.NoError(t, err)

	assert.Equal(t, []graph.Connection{{FromNode: "b", FromPort: "output_1", ToNode: "y", ToPort: "input"}}, dropped)
	assert.Len(t, tmpl.Connections, 2)
}

func TestModuleListAndMissing(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "b", version: "1.0"}))
	require.NoError(t, r.Register(&fakeModule{id: "a", version: "2.0"}))

	assert.Equal(t, []graph.ModuleInfo{
		{ID: "b", Name: "Fake b", Version: "1.0"},
		{ID: "a", Name: "Fake a", Version: "2.0"},
	}, r.ModuleList())

	tmpl := graph.New("t", "")
	require.NoError(t, tmpl.AddNode(&graph.Node{ID: "1", Type: "a.branch"}))
	require.NoError(t, tmpl.AddNode(&graph.Node{ID: "2", Type: "zeta.x"}))
	require.NoError(t, tmpl.AddNode(&graph.Node{ID: "3", Type: "gamma.x"}))

	assert.Equal(t, []string{"gamma", "zeta"}, r.MissingModules(tmpl))
}

func TestLinterUsesModuleValidators(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "fake"}))

	tmpl := graph.New("t", "")
	require.NoError(t, tmpl.AddNode(&graph.Node{ID: "ok", Type: "fake.branch", Data: graph.Data{"branches": 1.0}}))
	require.NoError(t, tmpl.AddNode(&graph.Node{ID: "bad", Type: "fake.branch", Data: graph.Data{}}))

	issues := r.Linter().Lint(tmpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "bad", issues[0].NodeID)
}

func TestNodeTypesByCategory(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(&fakeModule{id: "fake"}))

	byCat := r.NodeTypesByCategory()
	require.Len(t, byCat["Test"], 1)
	assert.Equal(t, "fake.branch", byCat["Test"][0].Type)
}
