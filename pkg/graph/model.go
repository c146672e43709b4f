package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// TemplateVersion is written to every template this package produces.
	TemplateVersion = "1.0.0"

	PortInput  = "input"
	PortOutput = "output"
)

var (
	ErrInvalidTemplate = errors.New("invalid template")
	ErrNodeExists      = errors.New("node already exists")
	ErrNodeNotFound    = errors.New("node not found")
)

// Position is the canvas location of a node. Execution ignores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed unit of graph content.
type Node struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Position *Position `json:"position,omitempty"`
	Data     Data      `json:"data"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{ID: n.ID, Type: n.Type, Data: n.Data.Clone()}
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	return c
}

// ModuleID returns the namespace part of the node type ("text" for "text.text").
func (n *Node) ModuleID() string {
	mod, _ := SplitType(n.Type)
	return mod
}

// LocalType returns the type without its module namespace.
func (n *Node) LocalType() string {
	_, local := SplitType(n.Type)
	return local
}

// SplitType splits "module.local" at the first dot. A type without a dot
// is its own local type.
func SplitType(nodeType string) (module, local string) {
	if i := strings.IndexByte(nodeType, '.'); i >= 0 {
		return nodeType[:i], nodeType[i+1:]
	}
	return "", nodeType
}

// JoinType builds a namespaced node type.
func JoinType(module, local string) string {
	return module + "." + local
}

// Port is a named attachment point derived from a node's current data.
type Port struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	FromNode string `json:"from_node"`
	FromPort string `json:"from_port"`
	ToNode   string `json:"to_node"`
	ToPort   string `json:"to_port"`
}

// WithDefaults fills the port names the file format allows to be omitted.
func (c Connection) WithDefaults() Connection {
	if c.FromPort == "" {
		c.FromPort = PortOutput
	}
	if c.ToPort == "" {
		c.ToPort = PortInput
	}
	return c
}

func (c *Connection) UnmarshalJSON(b []byte) error {
	type rawConnection Connection
	var raw rawConnection
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Connection(raw).WithDefaults()
	return nil
}

// Metadata describes a template.
type Metadata struct {
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	ModifiedAt  string         `json:"modified_at,omitempty"`
	Viewport    map[string]any `json:"viewport,omitempty"`
}

// ModuleInfo records a module a template depends on.
type ModuleInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NodeRef is a node id that encodes as JSON null when empty.
type NodeRef string

func (r NodeRef) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *NodeRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = NodeRef(s)
	return nil
}

// NodeSet holds nodes by id and remembers insertion order, so "the first
// node" of a graph means the same thing on every load.
type NodeSet struct {
	order []string
	byID  map[string]*Node
}

// NewNodeSet builds a set from nodes in the given order.
func NewNodeSet(nodes ...*Node) (NodeSet, error) {
	var s NodeSet
	for _, n := range nodes {
		if err := s.Add(n); err != nil {
			return NodeSet{}, err
		}
	}
	return s, nil
}

// Len returns the number of nodes.
func (s *NodeSet) Len() int { return len(s.order) }

// Get returns the node with the given id.
func (s *NodeSet) Get(id string) (*Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// Has reports whether id is present.
func (s *NodeSet) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Add appends a node. Ids must be unique.
func (s *NodeSet) Add(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidTemplate)
	}
	if s.byID == nil {
		s.byID = make(map[string]*Node)
	}
	if _, exists := s.byID[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, n.ID)
	}
	if n.Data == nil {
		n.Data = Data{}
	}
	s.byID[n.ID] = n
	s.order = append(s.order, n.ID)
	return nil
}

// Remove deletes a node and reports whether it existed.
func (s *NodeSet) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns node ids in order.
func (s *NodeSet) IDs() []string {
	return append([]string(nil), s.order...)
}

// All returns nodes in order.
func (s *NodeSet) All() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Clone deep-copies every node.
func (s *NodeSet) Clone() NodeSet {
	c := NodeSet{order: append([]string(nil), s.order...), byID: make(map[string]*Node, len(s.byID))}
	for id, n := range s.byID {
		c.byID[id] = n.Clone()
	}
	return c
}

func (s NodeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.byID[id])
		if err != nil {
			return nil, fmt.Errorf("encode node %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the map-by-id form and the list form.
func (s *NodeSet) UnmarshalJSON(b []byte) error {
	*s = NodeSet{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var nodes []*Node
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return err
		}
		for _, n := range nodes {
			if err := s.Add(n); err != nil {
				return err
			}
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected node key %v", ErrInvalidTemplate, tok)
		}
		var n Node
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("decode node %s: %w", key, err)
		}
		if n.ID == "" {
			n.ID = key
		}
		if n.ID != key {
			return fmt.Errorf("%w: node stored under %q has id %q", ErrInvalidTemplate, key, n.ID)
		}
		if err := s.Add(&n); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}
