package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"choicegraph/pkg/config"
	"choicegraph/pkg/console"
	"choicegraph/pkg/engine"
	"choicegraph/pkg/engine/managers"
	"choicegraph/pkg/saver"
)

// RunCmd plays a template in the terminal.
type RunCmd struct {
	Template string `arg:"" type:"existingfile" help:"Template JSON file"`
	Start    string `help:"Node to start from instead of the template's start node"`
	SaveDir  string `name:"save-dir" type:"path" help:"Keep saves as files in this directory"`
}

// Run executes the run command.
func (c *RunCmd) Run(g *Globals) error {
	reg, err := moduleRegistry(g.Logger)
	if err != nil {
		return err
	}
	tmpl, err := loadTemplate(c.Template, reg)
	if err != nil {
		return err
	}
	if c.Start != "" && !tmpl.Nodes.Has(c.Start) {
		return fmt.Errorf("start node %q not found in %s", c.Start, c.Template)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sv, closeSaves, err := openSaves(ctx, g, c.Template, c.SaveDir)
	if err != nil {
		return err
	}
	defer closeSaves()

	con := console.New(g.In, g.Out)
	stage := engine.NewScene()
	managerReg := engine.NewRegistry()
	managers.Register(managerReg, managers.Deps{Presenter: con, Stage: stage, Logger: g.Logger})

	e, err := engine.New(engine.Options{
		Template: tmpl,
		Registry: managerReg,
		Saver:    sv,
		Stage:    stage,
		Menu:     con,
		Logger:   g.Logger,
		AutoSave: g.Config.AutoSave,
	})
	if err != nil {
		return err
	}
	con.Attach(e)

	return e.Run(ctx, c.Start)
}

// openSaves opens the configured save backend for a template. A save dir
// given on the command line selects file saves there.
func openSaves(ctx context.Context, g *Globals, templatePath, saveDir string) (*saver.Saver, func() error, error) {
	saves := g.Config.Saves
	if saveDir != "" {
		saves.Backend = config.BackendFile
		saves.Dir = saveDir
	}
	return saves.OpenSaver(ctx, saveNamespace(templatePath), g.Logger)
}
