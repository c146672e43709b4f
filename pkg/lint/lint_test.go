package lint

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/graph"
)

// setter marks data["variable"] as initialized.
type setter struct{}

func (setter) SetsVariables(n *graph.Node) []string {
	return []string{n.Data.String("variable", "")}
}

// recorder captures the memory state each validated node sees.
type recorder struct {
	seen map[string]map[string]bool
}

func (r *recorder) Validate(n *graph.Node, gc *Context) ([]Issue, error) {
	r.seen[n.ID] = gc.MemoryState
	return nil, nil
}

type failing struct{ err error }

func (f failing) Validate(n *graph.Node, gc *Context) ([]Issue, error) {
	return nil, f.err
}

type panicking struct{}

func (panicking) Validate(n *graph.Node, gc *Context) ([]Issue, error) {
	panic("boom")
}

type emptyContent struct{}

func (emptyContent) Validate(n *graph.Node, gc *Context) ([]Issue, error) {
	if n.Data.String("content", "") == "" {
		return []Issue{{Severity: SeverityWarning, Message: "empty"}}, nil
	}
	return nil, nil
}

func node(id, typ string, data graph.Data) *graph.Node {
	return &graph.Node{ID: id, Type: typ, Data: data}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestFanOut(t *testing.T) {
	e := NewEngine(nil)

	nodes := []*graph.Node{node("A", "x.y", nil), node("B", "x.y", nil), node("C", "x.y", nil)}
	conns := []graph.Connection{
		{FromNode: "A", FromPort: "output", ToNode: "B", ToPort: "input"},
		{FromNode: "A", FromPort: "output", ToNode: "C", ToPort: "input"},
		{FromNode: "B", FromPort: "output_0", ToNode: "C", ToPort: "input"},
		{FromNode: "B", FromPort: "output_1", ToNode: "C", ToPort: "input"},
	}

	errs := e.LintNodes(nodes, conns).Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "A", errs[0].NodeID)
	assert.Equal(t, "Output port 'output' has 2 connections", errs[0].Message)
}

func TestFanOutCountsEveryGroupOnce(t *testing.T) {
	e := NewEngine(nil)

	conns := []graph.Connection{
		{FromNode: "A", ToNode: "B"},
		{FromNode: "A", ToNode: "C"},
		{FromNode: "A", ToNode: "D"},
		{FromNode: "B", FromPort: "output_true", ToNode: "C"},
		{FromNode: "B", FromPort: "output_true", ToNode: "D"},
	}

	errs := e.LintNodes(nil, conns).Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, "Output port 'output' has 3 connections", errs[0].Message)
	assert.Equal(t, "Output port 'output_true' has 2 connections", errs[1].Message)
}

func TestMemoryStateFromStart(t *testing.T) {
	rec := &recorder{seen: make(map[string]map[string]bool)}
	e := NewEngine(nil)
	e.Register("flow.start", rec)
	e.Register("vars.set", setter{})
	e.Register("vars.check", rec)

	nodes := []*graph.Node{
		node("orphan", "vars.set", graph.Data{"variable": "unreachable"}),
		node("start", "flow.start", nil),
		node("s1", "vars.set", graph.Data{"variable": "hp"}),
		node("check", "vars.check", nil),
	}
	conns := []graph.Connection{
		{FromNode: "start", ToNode: "s1"},
		{FromNode: "s1", ToNode: "check"},
		// cycle back to the start must not loop forever
		{FromNode: "check", FromPort: "output_true", ToNode: "start"},
	}

	e.LintNodes(nodes, conns)

	assert.Equal(t, []string{"hp"}, keys(rec.seen["check"]))
}

func TestMemoryStateWithoutStartScansAllNodes(t *testing.T) {
	rec := &recorder{seen: make(map[string]map[string]bool)}
	e := NewEngine(nil)
	e.Register("vars.set", setter{})
	e.Register("vars.check", rec)

	nodes := []*graph.Node{
		node("a", "vars.set", graph.Data{"variable": "x"}),
		node("b", "vars.set", graph.Data{"variable": "y"}),
		node("c", "vars.check", nil),
	}

	e.LintNodes(nodes, nil)

	assert.Equal(t, []string{"x", "y"}, keys(rec.seen["c"]))
}

func TestValidatorFaultIsolation(t *testing.T) {
	e := NewEngine(nil)
	e.Register("t.fail", failing{err: errors.New("bad data")})
	e.Register("t.panic", panicking{})
	e.Register("t.text", emptyContent{})

	nodes := []*graph.Node{
		node("f", "t.fail", nil),
		node("p", "t.panic", nil),
		node("ok", "t.text", graph.Data{"content": ""}),
	}

	issues := e.LintNodes(nodes, nil)
	require.Len(t, issues, 3)

	assert.Equal(t, Issue{NodeID: "f", Severity: SeverityError, Message: "Validation failed: bad data", Details: "Error in t.fail validation"}, issues[0])
	assert.Equal(t, "p", issues[1].NodeID)
	assert.Equal(t, "Validation failed: boom", issues[1].Message)
	assert.Equal(t, Issue{NodeID: "ok", Severity: SeverityWarning, Message: "empty"}, issues[2], "node id is filled in")
}

func TestUnknownTypeIsInfo(t *testing.T) {
	e := NewEngine(nil)
	issues := e.LintNodes([]*graph.Node{node("n", "mystery.node", nil)}, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityInfo, issues[0].Severity)
	assert.False(t, issues.HasErrors())
	assert.Equal(t, "0 error(s), 0 warning(s), 1 info", issues.Summary())
}

func TestLintJSONAcceptsBothForms(t *testing.T) {
	e := NewEngine(nil)
	e.Register("t.text", emptyContent{})

	forms := map[string]string{
		"map":  `{"a": {"type": "t.text", "data": {"content": ""}}}`,
		"list": `[{"id": "a", "type": "t.text", "data": {"content": ""}}]`,
	}
	for name, raw := range forms {
		t.Run(name, func(t *testing.T) {
			issues, err := e.LintJSON(json.RawMessage(raw), nil)
			require.NoError(t, err)
			require.Len(t, issues, 1)
			assert.Equal(t, "a", issues[0].NodeID)
		})
	}
}

func TestLintTemplate(t *testing.T) {
	tmpl := graph.New("t", "")
	require.NoError(t, tmpl.AddNode(node("a", "t.text", graph.Data{"content": "hi"})))
	require.NoError(t, tmpl.AddNode(node("b", "t.text", graph.Data{})))

	e := NewEngine(nil)
	e.Register("t.text", emptyContent{})

	issues := e.Lint(tmpl)
	assert.Len(t, issues.ForNode("b"), 1)
	assert.Empty(t, issues.ForNode("a"))
}
