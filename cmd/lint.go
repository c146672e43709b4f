package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/modules"
)

// ErrLintFailed is returned when a template has blocking issues.
var ErrLintFailed = errors.New("lint failed")

const watchDebounce = 200 * time.Millisecond

// LintCmd checks a template.
type LintCmd struct {
	Template string `arg:"" type:"existingfile" help:"Template JSON file"`
	JSON     bool   `help:"Print issues as JSON"`
	Strict   bool   `help:"Treat warnings as failures"`
	Watch    bool   `short:"w" help:"Re-check whenever the file changes"`
}

// lintReport is the --json output.
type lintReport struct {
	Template       string      `json:"template"`
	Errors         int         `json:"errors"`
	Warnings       int         `json:"warnings"`
	MissingModules []string    `json:"missing_modules,omitempty"`
	Issues         lint.Issues `json:"issues"`
}

// Run executes the lint command.
func (c *LintCmd) Run(g *Globals) error {
	reg, err := moduleRegistry(g.Logger)
	if err != nil {
		return err
	}
	if !c.Watch {
		return c.check(g.Out, reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.watch(ctx, g, reg)
}

// check lints the template once and prints the result.
func (c *LintCmd) check(out io.Writer, reg *modules.Registry) error {
	tmpl, err := graph.LoadFile(c.Template)
	if err != nil {
		return err
	}

	issues := reg.Linter().Lint(tmpl)
	missing := reg.MissingModules(tmpl)
	report := lintReport{
		Template:       c.Template,
		Errors:         len(issues.Errors()) + len(missing),
		Warnings:       len(issues.Warnings()),
		MissingModules: missing,
		Issues:         issues,
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printIssues(out, report)
	}

	if report.Errors > 0 || (c.Strict && report.Warnings > 0) {
		return fmt.Errorf("%w: %d error(s), %d warning(s)", ErrLintFailed, report.Errors, report.Warnings)
	}
	return nil
}

func printIssues(out io.Writer, report lintReport) {
	errc := color.New(color.FgRed, color.Bold)
	warnc := color.New(color.FgYellow)
	infoc := color.New(color.FgCyan)

	for _, m := range report.MissingModules {
		errc.Fprint(out, "error")
		fmt.Fprintf(out, "   module %q is not installed\n", m)
	}
	for _, is := range report.Issues {
		switch is.Severity {
		case lint.SeverityError:
			errc.Fprint(out, "error")
		case lint.SeverityWarning:
			warnc.Fprint(out, "warning")
		default:
			infoc.Fprint(out, "info")
		}
		fmt.Fprintf(out, "  [%s] %s\n", is.NodeID, is.Message)
	}

	summary := fmt.Sprintf("%s: %s", report.Template, report.Issues.Summary())
	if report.Errors > 0 {
		errc.Fprintln(out, summary)
		return
	}
	color.New(color.FgGreen).Fprintln(out, summary)
}

// watch re-lints the template on every write until ctx ends. Editors often
// replace files instead of writing them, so the directory is watched.
func (c *LintCmd) watch(ctx context.Context, g *Globals, reg *modules.Registry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(c.Template)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	rerun := func() {
		if err := c.check(g.Out, reg); err != nil {
			fmt.Fprintln(g.Err, err)
		}
	}
	rerun()
	g.Logger.Info("watching template", "path", target)

	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			fmt.Fprintln(g.Out)
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.Logger.Warn("watcher error", "error", err)
		}
	}
}
