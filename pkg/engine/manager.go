package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"choicegraph/pkg/graph"
)

// Result keys every manager chain understands.
const (
	KeyFinalNext    = "final_next"
	KeyAddToHistory = "add_to_history"
	KeyCanceled     = "canceled"
)

var ErrMissingManager = errors.New("no manager registered for node type")

// MissingManagerError reports a node type nothing can execute.
type MissingManagerError struct {
	NodeID   string
	NodeType string
}

func (e *MissingManagerError) Error() string {
	return fmt.Sprintf("no manager registered for node type %s (node %s)", e.NodeType, e.NodeID)
}

func (e *MissingManagerError) Is(target error) bool { return target == ErrMissingManager }

// Result is what a manager reports after processing a node.
type Result map[string]any

// FinalNext returns the output port the node leaves through.
func (r Result) FinalNext() (string, bool) {
	p, ok := r[KeyFinalNext].(string)
	return p, ok && p != ""
}

// AddToHistory reports whether the node blocks on the player and belongs
// in history.
func (r Result) AddToHistory() bool {
	b, _ := r[KeyAddToHistory].(bool)
	return b
}

// WasCanceled reports whether the player's wait ended without an answer.
func (r Result) WasCanceled() bool {
	b, _ := r[KeyCanceled].(bool)
	return b
}

// Next builds the common result of a pass-through manager.
func Next(port string) Result {
	return Result{KeyFinalNext: port}
}

// Interactive builds the result of a manager that waited on the player.
func Interactive(port string) Result {
	return Result{KeyFinalNext: port, KeyAddToHistory: true}
}

// Canceled builds the result of a wait that an interrupt ended. The engine
// does not leave the node unless the interrupt is carried out.
func Canceled(port string) Result {
	return Result{KeyFinalNext: port, KeyAddToHistory: true, KeyCanceled: true}
}

// Merge folds results left to right. A key set by a later result
// overwrites the same key from an earlier one, so the last manager to run
// decides final_next.
func Merge(results ...Result) Result {
	out := Result{}
	for _, r := range results {
		maps.Copy(out, r)
	}
	return out
}

// Manager executes the runtime behavior of a node type.
// Process may read and write mem and may swap node.Data wholesale; the node
// is a per-step copy shared with the other managers of the chain.
type Manager interface {
	ID() string
	Process(ctx context.Context, node *graph.Node, mem *Memory) (Result, error)
}

// Initializer is called once before a game starts.
type Initializer interface {
	Initialize(ctx context.Context, mem *Memory) error
}

// Cleaner is called when the engine shuts down.
type Cleaner interface {
	Cleanup(ctx context.Context, mem *Memory)
}

// Registry maps node types to ordered manager chains.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	managers map[string][]Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string][]Manager)}
}

// Register appends m to the chain of nodeType. A manager id already in the
// chain is not added twice.
func (r *Registry) Register(nodeType string, m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.managers[nodeType] {
		if existing.ID() == m.ID() {
			return
		}
	}
	r.managers[nodeType] = append(r.managers[nodeType], m)
}

// RegisterTypes registers m for several node types.
func (r *Registry) RegisterTypes(m Manager, nodeTypes ...string) {
	for _, t := range nodeTypes {
		r.Register(t, m)
	}
}

// Unregister removes a manager from a chain.
func (r *Registry) Unregister(nodeType, managerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.managers[nodeType]
	for i, m := range chain {
		if m.ID() == managerID {
			r.managers[nodeType] = slices.Delete(slices.Clone(chain), i, i+1)
			if len(r.managers[nodeType]) == 0 {
				delete(r.managers, nodeType)
			}
			return true
		}
	}
	return false
}

// Managers returns the chain for a node type in registration order.
func (r *Registry) Managers(nodeType string) []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.managers[nodeType])
}

// Has reports whether any manager serves nodeType.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers[nodeType]) > 0
}

// NodeTypes returns every served node type, sorted.
func (r *Registry) NodeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.managers))
}

// unique returns each registered manager once, ordered by first node type
// then chain position.
func (r *Registry) unique() []Manager {
	seen := make(map[string]bool)
	var out []Manager
	for _, t := range r.NodeTypes() {
		for _, m := range r.Managers(t) {
			if !seen[m.ID()] {
				seen[m.ID()] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// ProcessNode runs the chain for node and merges the results. node is
// copied first so the template is never modified.
func (r *Registry) ProcessNode(ctx context.Context, node *graph.Node, mem *Memory) (Result, error) {
	chain := r.Managers(node.Type)
	if len(chain) == 0 {
		return nil, &MissingManagerError{NodeID: node.ID, NodeType: node.Type}
	}

	step := node.Clone()
	results := make([]Result, 0, len(chain))
	for _, m := range chain {
		res, err := m.Process(ctx, step, mem)
		if err != nil {
			return nil, fmt.Errorf("manager %s on node %s: %w", m.ID(), node.ID, err)
		}
		results = append(results, res)
	}
	return Merge(results...), nil
}
