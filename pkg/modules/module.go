// Package modules is the editor-side node type registry. A module owns one
// or more node types and answers every type-specific question about them:
// default data, ports, serialization, validation.
package modules

import (
	"choicegraph/pkg/graph"
)

// NodeType describes one node type a module provides.
type NodeType struct {
	TypeID           string         `json:"type_id"`
	DisplayName      string         `json:"display_name"`
	Category         string         `json:"category"`
	Icon             string         `json:"icon,omitempty"`
	DefaultData      graph.Data     `json:"default_data"`
	PropertiesSchema map[string]any `json:"properties_schema,omitempty"`
}

// Module is the capability object behind a family of node types.
type Module interface {
	ID() string
	Name() string
	Version() string
	Description() string
	NodeTypes() []NodeType
	// Ports derives the ports of a node of localType from its current data.
	Ports(localType string, data graph.Data) (inputs, outputs []graph.Port)
}

// Initializer is called when a module is registered.
type Initializer interface {
	Initialize() error
}

// Cleaner is called when a module is unregistered or replaced.
type Cleaner interface {
	Cleanup()
}

// Serializer converts node data between its editor and file forms.
type Serializer interface {
	Serialize(localType string, data graph.Data) graph.Data
	Deserialize(localType string, data graph.Data) graph.Data
}

// WidgetFactory builds the canvas widget for a node. The returned value is
// owned by the UI toolkit.
type WidgetFactory interface {
	CreateWidget(localType, nodeID string, pos graph.Position) any
}

// PropertiesEditorFactory builds the property editor for a node. onChange
// receives a complete replacement Data on every edit.
type PropertiesEditorFactory interface {
	CreatePropertiesEditor(localType string, data graph.Data, onChange func(graph.Data)) any
}

// RegisteredType is a node type together with its owner.
type RegisteredType struct {
	Type     string `json:"type"`
	ModuleID string `json:"module_id"`
	NodeType
}

// InputPort is the single input most node types expose.
func InputPort() graph.Port {
	return graph.Port{ID: graph.PortInput, Name: "Input"}
}

// OutputPort is the single output of pass-through node types.
func OutputPort() graph.Port {
	return graph.Port{ID: graph.PortOutput, Name: "Output"}
}
