package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"choicegraph/pkg/saver"
)

// SavesCmd groups the save slot commands.
type SavesCmd struct {
	List   SavesListCmd   `cmd:"" help:"List occupied save slots"`
	Delete SavesDeleteCmd `cmd:"" help:"Clear a save slot"`
}

// SavesListCmd lists the occupied slots of a template.
type SavesListCmd struct {
	Template string `arg:"" type:"path" help:"Template the saves belong to"`
	SaveDir  string `name:"save-dir" type:"path" help:"Read file saves from this directory"`
	JSON     bool   `help:"Print slots as JSON"`
}

// Run executes the saves list command.
func (c *SavesListCmd) Run(g *Globals) error {
	ctx := context.Background()
	sv, closeSaves, err := openSaves(ctx, g, c.Template, c.SaveDir)
	if err != nil {
		return err
	}
	defer closeSaves()

	slots, err := sv.List(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		if slots == nil {
			slots = []saver.SlotInfo{}
		}
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(slots)
	}

	if len(slots) == 0 {
		fmt.Fprintln(g.Out, "No saves")
		return nil
	}
	w := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tKIND\tNODE\tSTEPS\tSAVED")
	for _, s := range slots {
		kind := "manual"
		if s.AutoSave {
			kind = "auto"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", s.Slot, kind, s.CurrentNode, s.HistoryLength, s.Timestamp)
	}
	return w.Flush()
}

// SavesDeleteCmd clears one slot.
type SavesDeleteCmd struct {
	Template string `arg:"" type:"path" help:"Template the saves belong to"`
	Slot     int    `arg:"" help:"Slot to clear (0 is the auto-save)"`
	SaveDir  string `name:"save-dir" type:"path" help:"Read file saves from this directory"`
}

// Run executes the saves delete command.
func (c *SavesDeleteCmd) Run(g *Globals) error {
	ctx := context.Background()
	sv, closeSaves, err := openSaves(ctx, g, c.Template, c.SaveDir)
	if err != nil {
		return err
	}
	defer closeSaves()

	deleted, err := sv.Delete(ctx, c.Slot)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(g.Out, "Slot %d is already empty\n", c.Slot)
		return nil
	}
	fmt.Fprintf(g.Out, "Deleted slot %d\n", c.Slot)
	return nil
}
