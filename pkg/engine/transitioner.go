package engine

import (
	"fmt"
	"strings"

	"choicegraph/pkg/graph"
)

// TransitionError means a processed node did not declare final_next.
type TransitionError struct {
	NodeID   string
	NodeType string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("node %s (%s) did not set %s", e.NodeID, e.NodeType, KeyFinalNext)
}

type portKey struct{ node, port string }

// Transitioner resolves the next node from the port a node left through.
type Transitioner struct {
	connections []graph.Connection
	next        map[portKey]string
}

// NewTransitioner indexes a connection table. When a port feeds several
// connections the first one in table order wins.
func NewTransitioner(connections []graph.Connection) *Transitioner {
	t := &Transitioner{
		connections: make([]graph.Connection, len(connections)),
		next:        make(map[portKey]string, len(connections)),
	}
	for i, c := range connections {
		c = c.WithDefaults()
		t.connections[i] = c
		k := portKey{c.FromNode, c.FromPort}
		if _, exists := t.next[k]; !exists {
			t.next[k] = c.ToNode
		}
	}
	return t
}

// ValidateTransition fails when result lacks final_next. It never picks a
// default port.
func (t *Transitioner) ValidateTransition(node *graph.Node, result Result) error {
	if _, ok := result.FinalNext(); !ok {
		return &TransitionError{NodeID: node.ID, NodeType: node.Type}
	}
	return nil
}

// NextNode looks up the node connected to (currentID, port).
//
// Compatibility shim: connections store indexed ports ("output_0") while
// some managers report the bare name ("output"). A port without an
// underscore is retried with "_0" appended. Nothing else is guessed.
func (t *Transitioner) NextNode(currentID, port string) (string, bool) {
	if to, ok := t.next[portKey{currentID, port}]; ok {
		return to, true
	}
	if !strings.Contains(port, "_") {
		if to, ok := t.next[portKey{currentID, port + "_0"}]; ok {
			return to, true
		}
	}
	return "", false
}

// Transition validates result and returns the next node id, or "" at the
// end of the graph.
func (t *Transitioner) Transition(node *graph.Node, result Result) (string, error) {
	if err := t.ValidateTransition(node, result); err != nil {
		return "", err
	}
	port, _ := result.FinalNext()
	next, _ := t.NextNode(node.ID, port)
	return next, nil
}

// HasConnection reports whether (nodeID, port) leads anywhere, shim
// included.
func (t *Transitioner) HasConnection(nodeID, port string) bool {
	_, ok := t.NextNode(nodeID, port)
	return ok
}

// ConnectionsFrom returns the connections leaving nodeID.
func (t *Transitioner) ConnectionsFrom(nodeID string) []graph.Connection {
	var out []graph.Connection
	for _, c := range t.connections {
		if c.FromNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// ConnectionsTo returns the connections entering nodeID.
func (t *Transitioner) ConnectionsTo(nodeID string) []graph.Connection {
	var out []graph.Connection
	for _, c := range t.connections {
		if c.ToNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}
