// Package cmd provides the choicegraph command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/alecthomas/kong"

	"choicegraph/pkg/config"
	"choicegraph/pkg/graph"
	"choicegraph/pkg/modules"
	"choicegraph/pkg/modules/base"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals is what every command receives.
type Globals struct {
	Config *config.Config
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
}

// CLI is the root Kong command structure.
type CLI struct {
	Version  kong.VersionFlag `help:"Show version information"`
	Config   string           `short:"c" type:"existingfile" help:"Config file (yaml, json or toml)"`
	LogLevel string           `name:"log-level" help:"Override log.level (debug, info, warn, error)"`

	// Commands
	Run    RunCmd    `cmd:"" help:"Play a template in the terminal"`
	Lint   LintCmd   `cmd:"" help:"Check a template for errors"`
	Export ExportCmd `cmd:"" help:"Write the runtime-only form of a template"`
	Saves  SavesCmd  `cmd:"" help:"Inspect or clear save slots"`
	Serve  ServeCmd  `cmd:"" help:"Start the HTTP play and authoring API"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command
// on the process's standard streams.
func (c *CLI) Execute(args []string) error {
	return c.execute(args, os.Stdin, os.Stdout, os.Stderr)
}

func (c *CLI) execute(args []string, in io.Reader, out, errOut io.Writer) error {
	parser, err := kong.New(c,
		kong.Name("choicegraph"),
		kong.Description("Author, check and play branching story graphs"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Writers(out, errOut),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	logger, err := cfg.Logger(errOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return kongCtx.Run(&Globals{
		Config: cfg,
		Logger: logger,
		In:     in,
		Out:    out,
		Err:    errOut,
	})
}

// moduleRegistry returns a registry holding the built-in modules.
func moduleRegistry(logger *slog.Logger) (*modules.Registry, error) {
	reg := modules.NewRegistry(logger)
	if err := base.Register(reg); err != nil {
		return nil, fmt.Errorf("registering modules: %w", err)
	}
	return reg, nil
}

// loadTemplate reads path and checks every node type has a module.
func loadTemplate(path string, reg *modules.Registry) (*graph.Template, error) {
	tmpl, err := graph.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if missing := reg.MissingModules(tmpl); len(missing) > 0 {
		return nil, fmt.Errorf("%s uses unknown modules: %s", path, strings.Join(missing, ", "))
	}
	return tmpl, nil
}

// saveNamespace keeps saves of different templates apart. It is derived
// from the template's file name.
func saveNamespace(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "default"
	}
	return name
}
