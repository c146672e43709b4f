// Package console plays a story in a terminal: a line-oriented Presenter
// and MainMenu for the engine.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/saver"
)

const help = "[enter] continue  b back  m menu  s N save  l N load"

// Console reads commands from in and writes the story to out.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
	ctl engine.Controller

	speaker *color.Color
	notice  *color.Color
	dim     *color.Color
}

// New creates a console. Attach an engine before playing.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:      bufio.NewScanner(in),
		out:     out,
		speaker: color.New(color.FgCyan, color.Bold),
		notice:  color.New(color.FgYellow),
		dim:     color.New(color.Faint),
	}
}

// Attach connects the console to the engine it drives.
func (c *Console) Attach(ctl engine.Controller) { c.ctl = ctl }

// readLine returns the next trimmed input line. End of input reads as
// io.EOF.
func (c *Console) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, "> ")
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// Present shows p and blocks until the player continues, picks a choice or
// interrupts.
func (c *Console) Present(ctx context.Context, p engine.Prompt) (engine.Reply, error) {
	fmt.Fprintln(c.out)
	if p.Speaker != "" {
		c.speaker.Fprintf(c.out, "%s:\n", p.Speaker)
	}
	if p.Text != "" {
		fmt.Fprintln(c.out, p.Text)
	}
	for i, choice := range p.Choices {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, choice)
	}
	c.dim.Fprintln(c.out, help)

	for {
		line, err := c.readLine(ctx)
		if err == io.EOF {
			// input closed: leave the game, the menu will read EOF and quit
			c.ctl.RequestReturnToMenu()
			return engine.Reply{Canceled: true}, nil
		}
		if err != nil {
			return engine.Reply{}, err
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "":
			if p.Kind == engine.PromptChoice {
				c.notice.Fprintf(c.out, "Pick a number between 1 and %d\n", len(p.Choices))
				continue
			}
			return engine.Reply{}, nil
		case "b", "back":
			if c.ctl.RequestGoBack() {
				return engine.Reply{Canceled: true}, nil
			}
			c.notice.Fprintln(c.out, "Nothing to go back to")
		case "m", "menu":
			c.ctl.RequestReturnToMenu()
			return engine.Reply{Canceled: true}, nil
		case "s", "save":
			slot, ok := c.slotArg(arg)
			if !ok {
				continue
			}
			if !saver.ValidManualSlot(slot) {
				c.notice.Fprintf(c.out, "Slot %d is the auto-save, save to 1 to %d\n", slot, saver.SlotCount-1)
				continue
			}
			if err := c.ctl.SaveGame(ctx, slot); err != nil {
				c.notice.Fprintf(c.out, "Save failed: %v\n", err)
				continue
			}
			c.notice.Fprintf(c.out, "Saved to slot %d\n", slot)
		case "l", "load":
			slot, ok := c.slotArg(arg)
			if !ok {
				continue
			}
			if !c.ctl.HasSave(ctx, slot) {
				c.notice.Fprintf(c.out, "Slot %d is empty\n", slot)
				continue
			}
			c.ctl.RequestLoad(slot)
			return engine.Reply{Canceled: true}, nil
		default:
			n, err := strconv.Atoi(cmd)
			if p.Kind == engine.PromptChoice && err == nil && n >= 1 && n <= len(p.Choices) {
				return engine.Reply{Choice: n - 1}, nil
			}
			c.notice.Fprintln(c.out, "Unknown command. "+help)
		}
	}
}

func (c *Console) slotArg(arg string) (int, bool) {
	slot, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || !saver.ValidSlot(slot) {
		c.notice.Fprintf(c.out, "Slot must be 0 to %d\n", saver.SlotCount-1)
		return 0, false
	}
	return slot, true
}

// Choose shows the main menu.
func (c *Console) Choose(ctx context.Context, slots []saver.SlotInfo) (engine.MenuChoice, error) {
	fmt.Fprintln(c.out)
	c.speaker.Fprintln(c.out, "== Main menu ==")
	for _, s := range slots {
		label := "slot"
		if s.AutoSave {
			label = "auto"
		}
		fmt.Fprintf(c.out, "  %s %d: %s (%s)\n", label, s.Slot, s.CurrentNode, s.Timestamp)
	}
	c.dim.Fprintln(c.out, "n new game  l N load  q quit")

	for {
		line, err := c.readLine(ctx)
		if err == io.EOF {
			return engine.MenuChoice{Action: engine.MenuQuit}, nil
		}
		if err != nil {
			return engine.MenuChoice{}, err
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "n", "new", "":
			return engine.MenuChoice{Action: engine.MenuNew}, nil
		case "l", "load":
			if slot, ok := c.slotArg(arg); ok {
				return engine.MenuChoice{Action: engine.MenuLoad, Slot: slot}, nil
			}
		case "q", "quit":
			return engine.MenuChoice{Action: engine.MenuQuit}, nil
		default:
			c.notice.Fprintln(c.out, "Unknown command")
		}
	}
}
