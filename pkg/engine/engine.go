package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/saver"
)

var (
	ErrNoActiveNode = errors.New("no active node")
	ErrNoSaver      = errors.New("no saver configured")
)

// Outcome is what a step tells the loop driving it.
type Outcome int

const (
	// OutcomeContinue means the engine moved to another node.
	OutcomeContinue Outcome = iota
	// OutcomeReturnToMenu means the player asked to leave the game.
	OutcomeReturnToMenu
	// OutcomeTerminate means the graph ended.
	OutcomeTerminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeReturnToMenu:
		return "return_to_menu"
	case OutcomeTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Options configures an Engine. Template and Registry are required.
type Options struct {
	Template *graph.Template
	Registry *Registry
	// Saver is optional; without it saving and loading fail with ErrNoSaver.
	Saver *saver.Saver
	// Stage defaults to a new Scene.
	Stage Stage
	// Menu is only needed by Run.
	Menu     MainMenu
	Logger   *slog.Logger
	AutoSave bool
}

// entry is one history record: an interaction node and the state captured
// before it ran. memory is nil for entries restored from saves that did not
// carry snapshots; scene is nil when it was never captured.
type entry struct {
	nodeID string
	memory map[string]any
	scene  *SceneState
}

// Engine walks a template one node at a time.
//
// Step, Play, Run, NewGame, SaveGame and LoadGame must be called from a
// single goroutine. The Request methods and CanGoBack are safe from any
// goroutine.
type Engine struct {
	tmpl         *graph.Template
	transitioner *Transitioner
	registry     *Registry
	saver        *saver.Saver
	stage        Stage
	menu         MainMenu
	logger       *slog.Logger
	autoSave     bool

	mem     *Memory
	current string
	history []entry
	// pushed is set while the current node's entry sits on top of history,
	// between its push and the step's transition.
	pushed bool

	canGoBack atomic.Bool
	goBack    atomic.Bool
	toMenu    atomic.Bool
	loadSlot  atomic.Int32
}

// New creates an Engine for opts.Template.
func New(opts Options) (*Engine, error) {
	if opts.Template == nil {
		return nil, fmt.Errorf("%w: nil template", graph.ErrInvalidTemplate)
	}
	if opts.Registry == nil {
		return nil, errors.New("engine: nil manager registry")
	}
	if opts.Stage == nil {
		opts.Stage = NewScene()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		tmpl:         opts.Template,
		transitioner: NewTransitioner(opts.Template.Connections),
		registry:     opts.Registry,
		saver:        opts.Saver,
		stage:        opts.Stage,
		menu:         opts.Menu,
		logger:       opts.Logger,
		autoSave:     opts.AutoSave,
		mem:          NewMemory(),
	}
	e.loadSlot.Store(-1)
	return e, nil
}

// Start runs the optional Initialize hook of every registered manager.
func (e *Engine) Start(ctx context.Context) error {
	for _, m := range e.registry.unique() {
		if in, ok := m.(Initializer); ok {
			if err := in.Initialize(ctx, e.mem); err != nil {
				return fmt.Errorf("initialize manager %s: %w", m.ID(), err)
			}
		}
	}
	return nil
}

// Close runs the optional Cleanup hook of every registered manager.
func (e *Engine) Close(ctx context.Context) {
	for _, m := range e.registry.unique() {
		if c, ok := m.(Cleaner); ok {
			c.Cleanup(ctx, e.mem)
		}
	}
}

// Memory returns the live variable store.
func (e *Engine) Memory() *Memory { return e.mem }

// Stage returns the presentation state.
func (e *Engine) Stage() Stage { return e.stage }

// Template returns the template being played.
func (e *Engine) Template() *graph.Template { return e.tmpl }

// Transitioner returns the connection resolver built from the template.
func (e *Engine) Transitioner() *Transitioner { return e.transitioner }

// Current returns the node the next step will process.
func (e *Engine) Current() string { return e.current }

// History returns the visited interaction nodes, oldest first.
func (e *Engine) History() []string {
	out := make([]string, len(e.history))
	for i, h := range e.history {
		out[i] = h.nodeID
	}
	return out
}

// Snapshots returns the memory snapshots paired with History, index for
// index. Entries restored from a save without snapshots are nil.
func (e *Engine) Snapshots() []map[string]any {
	out := make([]map[string]any, len(e.history))
	for i, h := range e.history {
		if h.memory != nil {
			out[i] = graph.CloneValue(h.memory).(map[string]any)
		}
	}
	return out
}

// NewGame clears memory, history and the stage and positions the engine at
// start, or at the template's start node when start is empty.
func (e *Engine) NewGame(start string) error {
	if start == "" {
		start = e.tmpl.ResolveStartNode()
	}
	if start == "" {
		return fmt.Errorf("%w: template has no nodes", ErrNoActiveNode)
	}
	if !e.tmpl.Nodes.Has(start) {
		return fmt.Errorf("%w: start node %s", graph.ErrNodeNotFound, start)
	}

	e.mem.Clear()
	e.stage.Reset()
	e.resetHistory(nil)
	e.clearInterrupts()
	e.current = start
	e.logger.Info("new game", "node_id", start)
	return nil
}

// CanGoBack reports whether a previous interaction node with a memory
// snapshot exists.
func (e *Engine) CanGoBack() bool { return e.canGoBack.Load() }

// RequestGoBack asks the engine to return to the previous interaction node.
// It is refused when there is nowhere to go back to.
func (e *Engine) RequestGoBack() bool {
	if !e.canGoBack.Load() {
		return false
	}
	e.goBack.Store(true)
	return true
}

// RequestReturnToMenu asks the engine to abandon the game in progress.
func (e *Engine) RequestReturnToMenu() { e.toMenu.Store(true) }

// RequestLoad asks the engine to load slot at its next safe point.
func (e *Engine) RequestLoad(slot int) { e.loadSlot.Store(int32(slot)) }

func (e *Engine) clearInterrupts() {
	e.goBack.Store(false)
	e.toMenu.Store(false)
	e.loadSlot.Store(-1)
}

// Step processes the current node and moves to the next one.
//
// Pending interrupts are honored before the node runs and again after its
// managers returned, in priority order: return to menu, load, go back.
func (e *Engine) Step(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeTerminate, err
	}
	if out, handled := e.poll(ctx); handled {
		return out, nil
	}
	if e.current == "" {
		return OutcomeTerminate, ErrNoActiveNode
	}

	node, ok := e.tmpl.Node(e.current)
	if !ok {
		return OutcomeTerminate, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, e.current)
	}

	scene := e.stage.Snapshot()
	before := entry{nodeID: node.ID, memory: e.mem.All(), scene: &scene}

	result, err := e.registry.ProcessNode(ctx, node, e.mem)
	if err != nil {
		return OutcomeTerminate, err
	}

	added := result.AddToHistory()
	if added {
		e.history = append(e.history, before)
		e.pushed = true
		e.refreshCanGoBack()
	}

	var next string
	if !result.WasCanceled() {
		next, err = e.transitioner.Transition(node, result)
		if err != nil {
			return OutcomeTerminate, err
		}
	}

	if out, handled := e.poll(ctx); handled {
		return out, nil
	}

	if result.WasCanceled() {
		// the interrupt that ended the wait could not be carried out
		e.stay(before, added)
		return OutcomeContinue, nil
	}

	e.pushed = false
	e.refreshCanGoBack()
	if next == "" {
		e.logger.Info("end of graph", "node_id", node.ID)
		e.current = ""
		return OutcomeTerminate, nil
	}
	e.current = next

	if added && e.autoSave && e.saver != nil {
		if err := e.SaveGame(ctx, saver.AutoSaveSlot); err != nil {
			e.logger.Warn("auto-save failed", "node_id", next, "error", err)
		}
	}
	return OutcomeContinue, nil
}

// Play steps until the game ends, the player returns to the menu or a step
// fails.
func (e *Engine) Play(ctx context.Context) (Outcome, error) {
	for {
		out, err := e.Step(ctx)
		if err != nil || out != OutcomeContinue {
			return out, err
		}
	}
}

// Run cycles between the main menu and play until the player quits or ctx
// ends. Failures inside a game are logged and lead back to the menu.
func (e *Engine) Run(ctx context.Context, start string) error {
	if e.menu == nil {
		return errors.New("engine: no main menu configured")
	}
	if err := e.Start(ctx); err != nil {
		return err
	}
	defer e.Close(context.WithoutCancel(ctx))

	for {
		choice, err := e.menu.Choose(ctx, e.slots(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("main menu: %w", err)
		}

		switch choice.Action {
		case MenuQuit:
			e.logger.Info("quit")
			return nil
		case MenuLoad:
			ok, err := e.LoadGame(ctx, choice.Slot)
			if err != nil {
				e.logger.Error("load failed", "slot", choice.Slot, "error", err)
				continue
			}
			if !ok {
				e.logger.Info("empty save slot, starting a new game", "slot", choice.Slot)
				if err := e.NewGame(start); err != nil {
					return err
				}
			}
		default:
			if err := e.NewGame(start); err != nil {
				return err
			}
		}

		out, err := e.Play(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			e.logGameError(err)
		} else {
			e.logger.Info("game ended", "outcome", out.String())
		}
		e.stage.Reset()
	}
}

func (e *Engine) logGameError(err error) {
	var te *TransitionError
	var me *MissingManagerError
	switch {
	case errors.As(err, &te):
		e.logger.Error("node did not declare an output", "node_id", te.NodeID, "node_type", te.NodeType, "error", err)
	case errors.As(err, &me):
		e.logger.Error("missing manager", "node_id", me.NodeID, "node_type", me.NodeType, "error", err)
	default:
		e.logger.Error("game aborted", "node_id", e.current, "error", err)
	}
}

func (e *Engine) slots(ctx context.Context) []saver.SlotInfo {
	if e.saver == nil {
		return nil
	}
	infos, err := e.saver.List(ctx)
	if err != nil {
		e.logger.Warn("list save slots", "error", err)
	}
	return infos
}

// poll applies at most one pending interrupt.
func (e *Engine) poll(ctx context.Context) (Outcome, bool) {
	if e.toMenu.Swap(false) {
		e.goBack.Store(false)
		e.loadSlot.Store(-1)
		e.pushed = false
		return OutcomeReturnToMenu, true
	}

	if slot := int(e.loadSlot.Swap(-1)); slot >= 0 {
		e.goBack.Store(false)
		ok, err := e.LoadGame(ctx, slot)
		switch {
		case err != nil:
			e.logger.Warn("load requested during play failed", "slot", slot, "error", err)
		case !ok:
			e.logger.Warn("load requested for an empty slot", "slot", slot)
		default:
			return OutcomeContinue, true
		}
	}

	if e.goBack.Swap(false) && e.stepBack() {
		return OutcomeContinue, true
	}
	return OutcomeContinue, false
}

// stay undoes a step whose wait was canceled so the node runs again.
func (e *Engine) stay(before entry, pushed bool) {
	if pushed {
		e.history = e.history[:len(e.history)-1]
	}
	e.pushed = false
	e.mem.Replace(before.memory)
	e.stage.Restore(*before.scene)
	e.refreshCanGoBack()
	e.logger.Debug("wait canceled, showing node again", "node_id", before.nodeID)
}

// stepBack drops the current node's entry if it was pushed, then pops the
// previous entry and resumes there with the memory it had before it ran.
func (e *Engine) stepBack() bool {
	n := len(e.history)
	if e.pushed {
		n--
	}
	if n < 1 || e.history[n-1].memory == nil {
		return false
	}

	prev := e.history[n-1]
	e.history = e.history[:n-1]
	e.pushed = false

	e.mem.Replace(prev.memory)
	if prev.scene != nil {
		e.stage.Restore(*prev.scene)
	}
	e.current = prev.nodeID
	e.refreshCanGoBack()
	e.logger.Debug("went back", "node_id", prev.nodeID)
	return true
}

func (e *Engine) refreshCanGoBack() {
	n := len(e.history)
	if e.pushed {
		n--
	}
	e.canGoBack.Store(n >= 1 && e.history[n-1].memory != nil)
}

func (e *Engine) resetHistory(h []entry) {
	e.history = h
	e.pushed = false
	e.refreshCanGoBack()
}
