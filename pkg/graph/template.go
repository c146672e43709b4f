package graph

import (
	"fmt"
	"time"
)

// Template is the persisted unit: a graph plus its metadata.
type Template struct {
	Version     string       `json:"version"`
	Metadata    Metadata     `json:"metadata"`
	Nodes       NodeSet      `json:"nodes"`
	Connections []Connection `json:"connections"`
	StartNode   NodeRef      `json:"start_node"`
	Modules     []ModuleInfo `json:"modules"`
}

// New creates an empty template stamped with the current time.
func New(title, author string) *Template {
	now := time.Now().Format(time.RFC3339)
	return &Template{
		Version: TemplateVersion,
		Metadata: Metadata{
			Title:      title,
			Author:     author,
			CreatedAt:  now,
			ModifiedAt: now,
		},
		Connections: []Connection{},
		Modules:     []ModuleInfo{},
	}
}

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	c := *t
	c.Metadata.Viewport = cloneMap(t.Metadata.Viewport)
	c.Nodes = t.Nodes.Clone()
	c.Connections = append([]Connection{}, t.Connections...)
	c.Modules = append([]ModuleInfo{}, t.Modules...)
	return &c
}

// Node returns the node with the given id.
func (t *Template) Node(id string) (*Node, bool) {
	return t.Nodes.Get(id)
}

// AddNode inserts a node. Its data is copied.
func (t *Template) AddNode(n *Node) error {
	if n.Type == "" {
		return fmt.Errorf("%w: node %s has no type", ErrInvalidTemplate, n.ID)
	}
	return t.Nodes.Add(n.Clone())
}

// RemoveNode deletes a node together with every connection touching it.
func (t *Template) RemoveNode(id string) error {
	if !t.Nodes.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	kept := t.Connections[:0]
	for _, c := range t.Connections {
		if c.FromNode != id && c.ToNode != id {
			kept = append(kept, c)
		}
	}
	t.Connections = kept
	if string(t.StartNode) == id {
		t.StartNode = ""
	}
	return nil
}

// ReplaceData swaps a node's whole data payload for a copy of data.
func (t *Template) ReplaceData(id string, data Data) error {
	n, ok := t.Nodes.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.Data = data.Clone()
	return nil
}

// Connect adds a connection. An output port feeds at most one connection,
// so an existing connection from the same port is replaced and returned.
func (t *Template) Connect(c Connection) (*Connection, error) {
	c = c.WithDefaults()
	if !t.Nodes.Has(c.FromNode) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, c.FromNode)
	}
	if !t.Nodes.Has(c.ToNode) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, c.ToNode)
	}

	var replaced *Connection
	kept := t.Connections[:0]
	for _, existing := range t.Connections {
		if existing.FromNode == c.FromNode && existing.FromPort == c.FromPort {
			prev := existing
			replaced = &prev
			continue
		}
		kept = append(kept, existing)
	}
	t.Connections = append(kept, c)
	return replaced, nil
}

// Disconnect removes an exact connection and reports whether it existed.
func (t *Template) Disconnect(c Connection) bool {
	c = c.WithDefaults()
	for i, existing := range t.Connections {
		if existing == c {
			t.Connections = append(t.Connections[:i], t.Connections[i+1:]...)
			return true
		}
	}
	return false
}

// Outgoing returns connections leaving a node, in table order.
func (t *Template) Outgoing(id string) []Connection {
	var out []Connection
	for _, c := range t.Connections {
		if c.FromNode == id {
			out = append(out, c)
		}
	}
	return out
}

// Incoming returns connections entering a node, in table order.
func (t *Template) Incoming(id string) []Connection {
	var in []Connection
	for _, c := range t.Connections {
		if c.ToNode == id {
			in = append(in, c)
		}
	}
	return in
}

// ResolveStartNode returns the explicit start node, else the first node
// without an incoming connection, else the first node. Empty graphs
// return "".
func (t *Template) ResolveStartNode() string {
	if t.StartNode != "" {
		return string(t.StartNode)
	}
	ids := t.Nodes.IDs()
	if len(ids) == 0 {
		return ""
	}

	hasIncoming := make(map[string]bool, len(t.Connections))
	for _, c := range t.Connections {
		hasIncoming[c.ToNode] = true
	}
	for _, id := range ids {
		if !hasIncoming[id] {
			return id
		}
	}
	// every node has an incoming edge: a cycle, tolerated
	return ids[0]
}

// Validate checks the structural invariants: typed nodes, connections
// between existing nodes, and an existing start node when one is set.
func (t *Template) Validate() error {
	for _, n := range t.Nodes.All() {
		if n.Type == "" {
			return fmt.Errorf("%w: node %s has no type", ErrInvalidTemplate, n.ID)
		}
	}
	for i, c := range t.Connections {
		if !t.Nodes.Has(c.FromNode) {
			return fmt.Errorf("%w: connection %d references unknown node %q", ErrInvalidTemplate, i, c.FromNode)
		}
		if !t.Nodes.Has(c.ToNode) {
			return fmt.Errorf("%w: connection %d references unknown node %q", ErrInvalidTemplate, i, c.ToNode)
		}
	}
	if t.StartNode != "" && !t.Nodes.Has(string(t.StartNode)) {
		return fmt.Errorf("%w: start node %q does not exist", ErrInvalidTemplate, t.StartNode)
	}
	return nil
}

func (t *Template) normalize() {
	if t.Version == "" {
		t.Version = TemplateVersion
	}
	if t.Connections == nil {
		t.Connections = []Connection{}
	}
	if t.Modules == nil {
		t.Modules = []ModuleInfo{}
	}
}
