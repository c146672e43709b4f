package modules

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
)

var ErrUnknownNodeType = errors.New("unknown node type")

// Registry maps namespaced node types to their modules.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
	types   map[string]RegisteredType
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		modules: make(map[string]Module),
		types:   make(map[string]RegisteredType),
		logger:  logger,
	}
}

// Register adds a module. A module with the same id is replaced, with a
// warning, so modules can be overridden or reloaded. The old module stays
// registered when the new one fails to initialize.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if init, ok := m.(Initializer); ok {
		if err := init.Initialize(); err != nil {
			return fmt.Errorf("initialize module %s: %w", m.ID(), err)
		}
	}

	if _, exists := r.modules[m.ID()]; exists {
		r.logger.Warn("module already registered, replacing", "module", m.ID())
		r.unregisterLocked(m.ID())
	}

	r.modules[m.ID()] = m
	r.order = append(r.order, m.ID())
	for _, nt := range m.NodeTypes() {
		full := graph.JoinType(m.ID(), nt.TypeID)
		r.types[full] = RegisteredType{Type: full, ModuleID: m.ID(), NodeType: nt}
	}
	r.logger.Debug("module registered", "module", m.ID(), "version", m.Version())
	return nil
}

// Unregister removes a module and its node types.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(id)
}

func (r *Registry) unregisterLocked(id string) bool {
	m, ok := r.modules[id]
	if !ok {
		return false
	}
	if c, ok := m.(Cleaner); ok {
		c.Cleanup()
	}
	delete(r.modules, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	for full, rt := range r.types {
		if rt.ModuleID == id {
			delete(r.types, full)
		}
	}
	return true
}

// Module returns a module by id.
func (r *Registry) Module(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// ModuleFor returns the capability object for a node type.
func (r *Registry) ModuleFor(nodeType string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.types[nodeType]
	if !ok {
		return nil, false
	}
	return r.modules[rt.ModuleID], true
}

// Modules returns modules in registration order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// NodeTypes returns every registered node type sorted by type.
func (r *Registry) NodeTypes() []RegisteredType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredType, 0, len(r.types))
	for _, rt := range r.types {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// NodeTypesByCategory groups NodeTypes by category.
func (r *Registry) NodeTypesByCategory() map[string][]RegisteredType {
	out := make(map[string][]RegisteredType)
	for _, rt := range r.NodeTypes() {
		out[rt.Category] = append(out[rt.Category], rt)
	}
	return out
}

// DefaultData returns a copy of a node type's default data.
func (r *Registry) DefaultData(nodeType string) (graph.Data, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.types[nodeType]
	if !ok {
		return nil, false
	}
	return rt.DefaultData.Clone(), true
}

// NewNode builds a node of a registered type carrying its default data.
func (r *Registry) NewNode(nodeType, id string, pos graph.Position) (*graph.Node, error) {
	data, ok := r.DefaultData(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}
	return &graph.Node{ID: id, Type: nodeType, Position: &pos, Data: data}, nil
}

// CreateWidget delegates to the module's widget factory. It returns false
// when no module or factory exists.
func (r *Registry) CreateWidget(nodeType, nodeID string, pos graph.Position) (any, bool) {
	m, ok := r.ModuleFor(nodeType)
	if !ok {
		return nil, false
	}
	f, ok := m.(WidgetFactory)
	if !ok {
		return nil, false
	}
	_, local := graph.SplitType(nodeType)
	return f.CreateWidget(local, nodeID, pos), true
}

// CreatePropertiesEditor delegates to the module's properties editor factory.
func (r *Registry) CreatePropertiesEditor(nodeType string, data graph.Data, onChange func(graph.Data)) (any, bool) {
	m, ok := r.ModuleFor(nodeType)
	if !ok {
		return nil, false
	}
	f, ok := m.(PropertiesEditorFactory)
	if !ok {
		return nil, false
	}
	_, local := graph.SplitType(nodeType)
	return f.CreatePropertiesEditor(local, data.Clone(), onChange), true
}

// Serialize converts editor data to its stored form. Unknown types pass
// through unchanged.
func (r *Registry) Serialize(nodeType string, data graph.Data) graph.Data {
	m, ok := r.ModuleFor(nodeType)
	if !ok {
		return data
	}
	s, ok := m.(Serializer)
	if !ok {
		return data
	}
	_, local := graph.SplitType(nodeType)
	return s.Serialize(local, data.Clone())
}

// Deserialize converts stored data to its editor form. Unknown types pass
// through unchanged.
func (r *Registry) Deserialize(nodeType string, data graph.Data) graph.Data {
	m, ok := r.ModuleFor(nodeType)
	if !ok {
		return data
	}
	s, ok := m.(Serializer)
	if !ok {
		return data
	}
	_, local := graph.SplitType(nodeType)
	return s.Deserialize(local, data.Clone())
}

// Ports derives a node's ports from its current data.
func (r *Registry) Ports(n *graph.Node) (inputs, outputs []graph.Port, ok bool) {
	m, ok := r.ModuleFor(n.Type)
	if !ok {
		return nil, nil, false
	}
	inputs, outputs = m.Ports(n.LocalType(), n.Data)
	return inputs, outputs, true
}

// ReplaceNodeData swaps a node's data and drops connections attached to
// ports the new data no longer has. The dropped connections are returned.
func (r *Registry) ReplaceNodeData(t *graph.Template, id string, data graph.Data) ([]graph.Connection, error) {
	if err := t.ReplaceData(id, data); err != nil {
		return nil, err
	}
	n, _ := t.Node(id)
	inputs, outputs, ok := r.Ports(n)
	if !ok {
		return nil, nil
	}

	in := portSet(inputs)
	out := portSet(outputs)

	var dropped []graph.Connection
	kept := t.Connections[:0]
	for _, c := range t.Connections {
		if (c.FromNode == id && !out[c.FromPort]) || (c.ToNode == id && !in[c.ToPort]) {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	t.Connections = kept

	if len(dropped) > 0 {
		r.logger.Info("dropped connections to removed ports", "node_id", id, "count", len(dropped))
	}
	return dropped, nil
}

// ModuleList describes registered modules for a template's modules field.
func (r *Registry) ModuleList() []graph.ModuleInfo {
	mods := r.Modules()
	out := make([]graph.ModuleInfo, 0, len(mods))
	for _, m := range mods {
		out = append(out, graph.ModuleInfo{ID: m.ID(), Name: m.Name(), Version: m.Version()})
	}
	return out
}

// MissingModules lists module ids used by t's nodes that are not
// registered, sorted.
func (r *Registry) MissingModules(t *graph.Template) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, n := range t.Nodes.All() {
		id := n.ModuleID()
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := r.Module(id); !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// Linter builds a lint engine wired to every registered node type.
func (r *Registry) Linter() *lint.Engine {
	e := lint.NewEngine(r.logger)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for full, rt := range r.types {
		e.Register(full, r.modules[rt.ModuleID])
	}
	return e
}

func portSet(ports []graph.Port) map[string]bool {
	s := make(map[string]bool, len(ports))
	for _, p := range ports {
		s[p.ID] = true
	}
	return s
}
