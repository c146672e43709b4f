package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/saver"
)

type mockController struct {
	CanGoBackFunc func() bool
	SaveGameFunc  func(ctx context.Context, slot int) error
	HasSaveFunc   func(ctx context.Context, slot int) bool

	goBackRequests int
	menuRequests   int
	loadRequests   []int
}

func (m *mockController) CanGoBack() bool {
	return m.CanGoBackFunc != nil && m.CanGoBackFunc()
}

func (m *mockController) RequestGoBack() bool {
	if !m.CanGoBack() {
		return false
	}
	m.goBackRequests++
	return true
}

func (m *mockController) RequestReturnToMenu() { m.menuRequests++ }

func (m *mockController) RequestLoad(slot int) { m.loadRequests = append(m.loadRequests, slot) }

func (m *mockController) HasSave(ctx context.Context, slot int) bool {
	return m.HasSaveFunc != nil && m.HasSaveFunc(ctx, slot)
}

func (m *mockController) SaveGame(ctx context.Context, slot int) error {
	if m.SaveGameFunc == nil {
		panic("SaveGameFunc not set")
	}
	return m.SaveGameFunc(ctx, slot)
}

func newConsole(input string, ctl *mockController) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := New(strings.NewReader(input), &out)
	c.Attach(ctl)
	return c, &out
}

var textPrompt = engine.Prompt{NodeID: "t", Kind: engine.PromptText, Speaker: "Mira", Text: "Hello there"}

var choicePrompt = engine.Prompt{NodeID: "q", Kind: engine.PromptChoice, Text: "Which way?", Choices: []string{"Left", "Right"}}

func TestPresent(t *testing.T) {
	ctx := context.Background()

	t.Run("enter continues", func(t *testing.T) {
		c, out := newConsole("\n", &mockController{})
		reply, err := c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.Equal(t, engine.Reply{}, reply)
		assert.Contains(t, out.String(), "Mira:")
		assert.Contains(t, out.String(), "Hello there")
	})

	t.Run("choice by number after bad input", func(t *testing.T) {
		c, out := newConsole("\n7\nzz\n2\n", &mockController{})
		reply, err := c.Present(ctx, choicePrompt)
		require.NoError(t, err)
		assert.Equal(t, engine.Reply{Choice: 1}, reply)
		assert.Contains(t, out.String(), "  2. Right")
		assert.Contains(t, out.String(), "Pick a number between 1 and 2")
	})

	t.Run("back is refused without history", func(t *testing.T) {
		ctl := &mockController{}
		c, out := newConsole("b\n\n", ctl)
		reply, err := c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.False(t, reply.Canceled)
		assert.Contains(t, out.String(), "Nothing to go back to")
		assert.Zero(t, ctl.goBackRequests)
	})

	t.Run("back cancels the wait", func(t *testing.T) {
		ctl := &mockController{CanGoBackFunc: func() bool { return true }}
		c, _ := newConsole("b\n", ctl)
		reply, err := c.Present(ctx, choicePrompt)
		require.NoError(t, err)
		assert.True(t, reply.Canceled)
		assert.Equal(t, 1, ctl.goBackRequests)
	})

	t.Run("menu and load cancel", func(t *testing.T) {
		ctl := &mockController{HasSaveFunc: func(_ context.Context, slot int) bool { return slot == 2 }}
		c, out := newConsole("m\nl 9\nl 1\nl 2\n", ctl)

		reply, err := c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.True(t, reply.Canceled)
		assert.Equal(t, 1, ctl.menuRequests)

		reply, err = c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.True(t, reply.Canceled)
		assert.Equal(t, []int{2}, ctl.loadRequests)
		assert.Contains(t, out.String(), "Slot 1 is empty")
	})

	t.Run("save keeps waiting", func(t *testing.T) {
		var saved []int
		ctl := &mockController{SaveGameFunc: func(_ context.Context, slot int) error {
			if slot == 3 {
				return errors.New("disk full")
			}
			saved = append(saved, slot)
			return nil
		}}
		c, out := newConsole("s 0\ns 1\ns 3\n\n", ctl)
		reply, err := c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.False(t, reply.Canceled)
		assert.Equal(t, []int{1}, saved)
		assert.Contains(t, out.String(), "Slot 0 is the auto-save, save to 1 to 3")
		assert.Contains(t, out.String(), "Saved to slot 1")
		assert.Contains(t, out.String(), "Save failed: disk full")
	})

	t.Run("end of input returns to menu", func(t *testing.T) {
		ctl := &mockController{}
		c, _ := newConsole("", ctl)
		reply, err := c.Present(ctx, textPrompt)
		require.NoError(t, err)
		assert.True(t, reply.Canceled)
		assert.Equal(t, 1, ctl.menuRequests)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c, _ := newConsole("\n", &mockController{})
		_, err := c.Present(cctx, textPrompt)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestChoose(t *testing.T) {
	ctx := context.Background()
	slots := []saver.SlotInfo{{Slot: 0, AutoSave: true, CurrentNode: "n4", Timestamp: "2024-05-01T12:00:00Z"}}

	tests := []struct {
		name     string
		input    string
		expected engine.MenuChoice
	}{
		{"new", "n\n", engine.MenuChoice{Action: engine.MenuNew}},
		{"load", "l 0\n", engine.MenuChoice{Action: engine.MenuLoad, Slot: 0}},
		{"bad slot then quit", "l x\nq\n", engine.MenuChoice{Action: engine.MenuQuit}},
		{"eof quits", "", engine.MenuChoice{Action: engine.MenuQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newConsole(tt.input, &mockController{})
			got, err := c.Choose(ctx, slots)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, out.String(), "auto 0: n4")
		})
	}
}
