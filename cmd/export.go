package cmd

import (
	"fmt"
	"path/filepath"

	"choicegraph/pkg/graph"
)

// ExportCmd writes the runtime-only form of a template.
type ExportCmd struct {
	Template string `arg:"" type:"existingfile" help:"Template JSON file"`
	Output   string `arg:"" type:"path" help:"Where to write the export"`
}

// Run executes the export command.
func (c *ExportCmd) Run(g *Globals) error {
	tmpl, err := graph.LoadFile(c.Template)
	if err != nil {
		return err
	}

	outDir, err := filepath.Abs(filepath.Dir(c.Output))
	if err != nil {
		return err
	}
	graph.RelativizeAssetPaths(tmpl, outDir, g.Logger)

	if err := graph.ExportFile(tmpl, c.Output); err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "Exported %s to %s\n", c.Template, c.Output)
	return nil
}
