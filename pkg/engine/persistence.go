package engine

import (
	"context"
	"fmt"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/saver"
)

// SaveGame writes the current position, memory, history with its snapshots
// and the stage into slot.
func (e *Engine) SaveGame(ctx context.Context, slot int) error {
	if e.saver == nil {
		return ErrNoSaver
	}
	if e.current == "" {
		return fmt.Errorf("save slot %d: %w", slot, ErrNoActiveNode)
	}

	return e.saver.Save(ctx, slot, saver.SaveData{
		CurrentNode:     e.current,
		MemoryState:     e.mem.All(),
		History:         e.History(),
		MemorySnapshots: e.Snapshots(),
		CustomData:      e.stage.Snapshot().CustomData(),
	})
}

// LoadGame replaces memory, history, position and stage with the contents
// of slot. Nothing is replayed. An empty slot returns false and leaves the
// engine untouched.
func (e *Engine) LoadGame(ctx context.Context, slot int) (bool, error) {
	if e.saver == nil {
		return false, ErrNoSaver
	}
	data, ok, err := e.saver.Load(ctx, slot)
	if err != nil || !ok {
		return false, err
	}
	if !e.tmpl.Nodes.Has(data.CurrentNode) {
		return false, fmt.Errorf("save slot %d: %w: %s", slot, graph.ErrNodeNotFound, data.CurrentNode)
	}

	history := make([]entry, len(data.History))
	for i, id := range data.History {
		history[i].nodeID = id
		if i < len(data.MemorySnapshots) {
			history[i].memory = data.MemorySnapshots[i]
		}
	}

	e.mem.Replace(data.MemoryState)
	e.stage.Reset()
	e.stage.Restore(SceneStateFromCustomData(data.CustomData))
	e.resetHistory(history)
	e.goBack.Store(false)
	e.current = data.CurrentNode

	e.logger.Info("game loaded", "slot", slot, "node_id", data.CurrentNode)
	return true, nil
}

// HasSave reports whether slot holds a save LoadGame would accept: it can
// be read and its current node exists in the template.
func (e *Engine) HasSave(ctx context.Context, slot int) bool {
	if e.saver == nil {
		return false
	}
	data, ok, err := e.saver.Load(ctx, slot)
	return err == nil && ok && e.tmpl.Nodes.Has(data.CurrentNode)
}
