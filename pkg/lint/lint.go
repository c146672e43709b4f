// Package lint statically checks a narrative graph without executing it.
package lint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"choicegraph/pkg/graph"
)

// DefaultStartType is the node type the memory-state walk starts from.
const DefaultStartType = "flow.start"

// Severity ranks an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single finding attributed to a node.
type Issue struct {
	NodeID   string   `json:"node_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  string   `json:"details,omitempty"`
}

// Issues is the result of a lint pass.
type Issues []Issue

// Errors returns the error-severity issues.
func (is Issues) Errors() Issues { return is.filter(SeverityError) }

// Warnings returns the warning-severity issues.
func (is Issues) Warnings() Issues { return is.filter(SeverityWarning) }

// HasErrors reports whether any issue is an error.
func (is Issues) HasErrors() bool { return len(is.Errors()) > 0 }

// ForNode returns the issues attributed to one node.
func (is Issues) ForNode(id string) Issues {
	var out Issues
	for _, i := range is {
		if i.NodeID == id {
			out = append(out, i)
		}
	}
	return out
}

// Summary renders counts per severity.
func (is Issues) Summary() string {
	return fmt.Sprintf("%d error(s), %d warning(s), %d info", len(is.Errors()), len(is.Warnings()), len(is.filter(SeverityInfo)))
}

func (is Issues) filter(s Severity) Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Context is the read-only view of the graph handed to validators.
type Context struct {
	Nodes       []*graph.Node
	NodeByID    map[string]*graph.Node
	Connections []graph.Connection
	// MemoryState approximates which variables are set somewhere upstream.
	MemoryState map[string]bool
}

// Initialized reports whether a variable is considered set.
func (c *Context) Initialized(name string) bool {
	return c.MemoryState[name]
}

// Validator checks one node. A returned error (or a panic) becomes an
// error issue on that node.
type Validator interface {
	Validate(node *graph.Node, gc *Context) ([]Issue, error)
}

// VariableSetter declares the variables a node initializes.
type VariableSetter interface {
	SetsVariables(node *graph.Node) []string
}

// Engine runs lint passes. Capabilities are registered per node type.
type Engine struct {
	mu           sync.RWMutex
	capabilities map[string]any
	startType    string
	logger       *slog.Logger
}

// NewEngine creates an engine with no registered node types.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		capabilities: make(map[string]any),
		startType:    DefaultStartType,
		logger:       logger,
	}
}

// SetStartType changes the node type the memory-state walk starts from.
func (e *Engine) SetStartType(nodeType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startType = nodeType
}

// Register attaches a capability object to a node type. It may implement
// Validator, VariableSetter, both or neither.
func (e *Engine) Register(nodeType string, capability any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capabilities[nodeType] = capability
}

func (e *Engine) capability(nodeType string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.capabilities[nodeType]
	return c, ok
}

// Lint checks a template.
func (e *Engine) Lint(t *graph.Template) Issues {
	return e.LintNodes(t.Nodes.All(), t.Connections)
}

// LintJSON checks nodes given either as a map by id or as a list.
func (e *Engine) LintJSON(nodes json.RawMessage, connections []graph.Connection) (Issues, error) {
	var set graph.NodeSet
	if err := json.Unmarshal(nodes, &set); err != nil {
		return nil, fmt.Errorf("normalize nodes: %w", err)
	}
	return e.LintNodes(set.All(), connections), nil
}

// LintNodes checks an ordered node list and its connections.
func (e *Engine) LintNodes(nodes []*graph.Node, connections []graph.Connection) Issues {
	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	issues := checkFanOut(connections)

	gc := &Context{
		Nodes:       nodes,
		NodeByID:    byID,
		Connections: connections,
	}
	gc.MemoryState = e.memoryState(gc)

	for _, n := range nodes {
		c, ok := e.capability(n.Type)
		if !ok {
			issues = append(issues, Issue{
				NodeID:   n.ID,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("No module registered for node type '%s'", n.Type),
				Details:  "The node is kept as-is but cannot be validated.",
			})
			continue
		}
		v, ok := c.(Validator)
		if !ok {
			continue
		}
		issues = append(issues, e.validateNode(v, n, gc)...)
	}

	e.logger.Debug("lint finished", "nodes", len(nodes), "issues", len(issues))
	return issues
}

// checkFanOut reports one error per output port feeding more than one
// connection, in first-seen order.
func checkFanOut(connections []graph.Connection) Issues {
	type portKey struct{ node, port string }

	counts := make(map[portKey]int)
	var order []portKey
	for _, c := range connections {
		c = c.WithDefaults()
		k := portKey{c.FromNode, c.FromPort}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var issues Issues
	for _, k := range order {
		if n := counts[k]; n > 1 {
			issues = append(issues, Issue{
				NodeID:   k.node,
				Severity: SeverityError,
				Message:  fmt.Sprintf("Output port '%s' has %d connections", k.port, n),
				Details:  fmt.Sprintf("The output port '%s' is connected to %d different ports. Each output port can only have one connection.", k.port, n),
			})
		}
	}
	return issues
}

// memoryState marks variables initialized by nodes reachable from the
// start node, depth first. Without a start node every node counts. It is
// path-insensitive: a variable set on one branch counts as set everywhere.
func (e *Engine) memoryState(gc *Context) map[string]bool {
	state := make(map[string]bool)
	mark := func(n *graph.Node) {
		c, ok := e.capability(n.Type)
		if !ok {
			return
		}
		if s, ok := c.(VariableSetter); ok {
			for _, name := range s.SetsVariables(n) {
				if name != "" {
					state[name] = true
				}
			}
		}
	}

	e.mu.RLock()
	startType := e.startType
	e.mu.RUnlock()

	var start *graph.Node
	for _, n := range gc.Nodes {
		if n.Type == startType {
			start = n
			break
		}
	}
	if start == nil {
		for _, n := range gc.Nodes {
			mark(n)
		}
		return state
	}

	next := make(map[string][]string)
	for _, c := range gc.Connections {
		next[c.FromNode] = append(next[c.FromNode], c.ToNode)
	}

	visited := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := gc.NodeByID[id]
		if !ok {
			return
		}
		mark(n)
		for _, to := range next[id] {
			visit(to)
		}
	}
	visit(start.ID)
	return state
}

func (e *Engine) validateNode(v Validator, n *graph.Node, gc *Context) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("validator panicked", "node_id", n.ID, "node_type", n.Type, "panic", r)
			issues = []Issue{validationFailed(n, fmt.Sprint(r))}
		}
	}()

	found, err := v.Validate(n.Clone(), gc)
	if err != nil {
		return []Issue{validationFailed(n, err.Error())}
	}
	for i := range found {
		if found[i].NodeID == "" {
			found[i].NodeID = n.ID
		}
	}
	return found
}

func validationFailed(n *graph.Node, msg string) Issue {
	return Issue{
		NodeID:   n.ID,
		Severity: SeverityError,
		Message:  "Validation failed: " + msg,
		Details:  fmt.Sprintf("Error in %s validation", n.Type),
	}
}
