package engine

import (
	"context"

	"choicegraph/pkg/saver"
)

// PromptKind tells a Presenter what the player is being asked for.
type PromptKind string

const (
	PromptText   PromptKind = "text"
	PromptChoice PromptKind = "choice"
)

// Prompt is one interaction point shown to the player.
type Prompt struct {
	NodeID   string     `json:"node_id"`
	Kind     PromptKind `json:"kind"`
	Speaker  string     `json:"speaker,omitempty"`
	Text     string     `json:"text"`
	Portrait string     `json:"portrait,omitempty"`
	Choices  []string   `json:"choices,omitempty"`
}

// Reply resolves a Prompt. Exactly one of a continue/choice or a cancel is
// reported. Canceled means an interrupt was requested while waiting and the
// engine will act on it at its next safe point.
type Reply struct {
	Choice   int
	Canceled bool
}

// Presenter blocks until the player answers a Prompt. It runs on the engine
// goroutine.
type Presenter interface {
	Present(ctx context.Context, p Prompt) (Reply, error)
}

// MenuAction is what the player picked on the main menu.
type MenuAction int

const (
	MenuNew MenuAction = iota
	MenuLoad
	MenuQuit
)

// MenuChoice is a main menu selection. Slot is set for MenuLoad.
type MenuChoice struct {
	Action MenuAction
	Slot   int
}

// MainMenu is shown between games. slots lists the occupied save slots.
type MainMenu interface {
	Choose(ctx context.Context, slots []saver.SlotInfo) (MenuChoice, error)
}

// Controller is the part of the Engine a Presenter may drive while it
// waits on the player. Requests are honored at the engine's next safe
// point; a Presenter that made one should return a canceled Reply.
type Controller interface {
	CanGoBack() bool
	RequestGoBack() bool
	RequestReturnToMenu()
	RequestLoad(slot int)
	HasSave(ctx context.Context, slot int) bool
	SaveGame(ctx context.Context, slot int) error
}
