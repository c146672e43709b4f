// Package saver persists point-in-time snapshots of a play session into
// numbered slots.
package saver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kat-co/vala"
)

const (
	// AutoSaveSlot is reserved for automatic saves; 1 to 3 are manual.
	AutoSaveSlot = 0
	SlotCount    = 4

	FormatVersion = "1.0"
)

var (
	ErrInvalidSlot = errors.New("invalid save slot")
	ErrNoSave      = errors.New("no save in slot")
)

// SaveData is the on-disk save format.
type SaveData struct {
	CurrentNode string         `json:"current_node"`
	MemoryState map[string]any `json:"memory_state"`
	History     []string       `json:"history"`
	// MemorySnapshots pairs each history entry with the memory state taken
	// before that node ran. Older saves omit it.
	MemorySnapshots []map[string]any `json:"memory_snapshots,omitempty"`
	Timestamp       string           `json:"timestamp"`
	CustomData      map[string]any   `json:"custom_data"`
	Version         string           `json:"version"`
}

// SlotInfo summarizes a slot without exposing its state.
type SlotInfo struct {
	Slot          int    `json:"slot"`
	AutoSave      bool   `json:"auto_save"`
	Timestamp     string `json:"timestamp"`
	CurrentNode   string `json:"current_node"`
	HistoryLength int    `json:"history_length"`
}

// Store is raw slot storage. Get and Delete return ErrNoSave for an empty
// slot.
type Store interface {
	Put(ctx context.Context, slot int, payload []byte) error
	Get(ctx context.Context, slot int) ([]byte, error)
	Delete(ctx context.Context, slot int) error
}

// Saver encodes SaveData into a Store.
type Saver struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Saver on top of store.
func New(store Store, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{store: store, now: time.Now, logger: logger}
}

// ValidSlot reports whether slot is one of the four save slots.
func ValidSlot(slot int) bool {
	return slot >= 0 && slot < SlotCount
}

// ValidManualSlot reports whether the player may save into slot. The
// auto-save slot can be loaded but not saved to by hand.
func ValidManualSlot(slot int) bool {
	return ValidSlot(slot) && slot != AutoSaveSlot
}

func checkSlot(slot int) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("%w: %d (expected 0-%d)", ErrInvalidSlot, slot, SlotCount-1)
	}
	return nil
}

// Save writes data into slot, stamping timestamp and version.
func (s *Saver) Save(ctx context.Context, slot int, data SaveData) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(data.CurrentNode, "current_node"),
	).Check(); err != nil {
		return fmt.Errorf("save slot %d: %w", slot, err)
	}

	data.Timestamp = s.now().Format(time.RFC3339)
	data.Version = FormatVersion
	if data.MemoryState == nil {
		data.MemoryState = map[string]any{}
	}
	if data.History == nil {
		data.History = []string{}
	}
	if data.CustomData == nil {
		data.CustomData = map[string]any{}
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode save slot %d: %w", slot, err)
	}
	if err := s.store.Put(ctx, slot, payload); err != nil {
		return fmt.Errorf("write save slot %d: %w", slot, err)
	}

	s.logger.Info("game saved", "slot", slot, "node_id", data.CurrentNode)
	return nil
}

// AutoSave writes data into the auto-save slot.
func (s *Saver) AutoSave(ctx context.Context, data SaveData) error {
	return s.Save(ctx, AutoSaveSlot, data)
}

// Load reads a slot. An empty slot returns (nil, false, nil).
func (s *Saver) Load(ctx context.Context, slot int) (*SaveData, bool, error) {
	if err := checkSlot(slot); err != nil {
		return nil, false, err
	}

	payload, err := s.store.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, ErrNoSave) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read save slot %d: %w", slot, err)
	}

	var data SaveData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false, fmt.Errorf("corrupt save slot %d: %w", slot, err)
	}
	if data.MemoryState == nil {
		data.MemoryState = map[string]any{}
	}
	if data.CustomData == nil {
		data.CustomData = map[string]any{}
	}
	return &data, true, nil
}

// HasSave reports whether slot holds a readable save.
func (s *Saver) HasSave(ctx context.Context, slot int) bool {
	_, ok, err := s.Load(ctx, slot)
	return ok && err == nil
}

// Info summarizes one slot.
func (s *Saver) Info(ctx context.Context, slot int) (*SlotInfo, bool, error) {
	data, ok, err := s.Load(ctx, slot)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &SlotInfo{
		Slot:          slot,
		AutoSave:      slot == AutoSaveSlot,
		Timestamp:     data.Timestamp,
		CurrentNode:   data.CurrentNode,
		HistoryLength: len(data.History),
	}, true, nil
}

// List summarizes every occupied slot. Unreadable slots are logged and
// skipped.
func (s *Saver) List(ctx context.Context) ([]SlotInfo, error) {
	var out []SlotInfo
	for slot := 0; slot < SlotCount; slot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, ok, err := s.Info(ctx, slot)
		if err != nil {
			s.logger.Warn("skipping unreadable save slot", "slot", slot, "error", err)
			continue
		}
		if ok {
			out = append(out, *info)
		}
	}
	return out, nil
}

// Delete clears a slot and reports whether it held a save.
func (s *Saver) Delete(ctx context.Context, slot int) (bool, error) {
	if err := checkSlot(slot); err != nil {
		return false, err
	}
	if err := s.store.Delete(ctx, slot); err != nil {
		if errors.Is(err, ErrNoSave) {
			return false, nil
		}
		return false, fmt.Errorf("delete save slot %d: %w", slot, err)
	}
	s.logger.Info("save deleted", "slot", slot)
	return true, nil
}
