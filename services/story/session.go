package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/engine/managers"
	"choicegraph/pkg/graph"
	"choicegraph/pkg/saver"
)

var (
	ErrInvalidAction   = errors.New("invalid action")
	ErrCannotGoBack    = errors.New("nothing to go back to")
	ErrSessionFinished = errors.New("session finished")
)

type command struct {
	ActionRequest
	done chan error
}

// Session plays one template on its own engine goroutine. The engine
// blocks in Present or Choose until an action arrives over cmds; an action
// that moves the game on is answered once the engine reaches its next wait
// so the caller sees the resulting view.
type Session struct {
	id         uuid.UUID
	templateID uuid.UUID
	profileID  uuid.UUID
	engine     *engine.Engine
	logger     *slog.Logger

	cmds     chan command
	finished chan struct{}
	cancel   context.CancelFunc

	// owned by the engine goroutine
	pending  *command
	quitting bool

	mu   sync.Mutex
	view View
}

func newSession(tmpl *graph.Template, templateID, profileID uuid.UUID, sv *saver.Saver, autoSave bool, logger *slog.Logger) (*Session, error) {
	s := &Session{
		id:         uuid.New(),
		templateID: templateID,
		profileID:  profileID,
		cmds:       make(chan command),
		finished:   make(chan struct{}),
	}
	s.logger = logger.With("session_id", s.id.String(), "template_id", templateID.String())

	stage := engine.NewScene()
	reg := engine.NewRegistry()
	managers.Register(reg, managers.Deps{Presenter: s, Stage: stage, Logger: s.logger})

	e, err := engine.New(engine.Options{
		Template: tmpl,
		Registry: reg,
		Saver:    sv,
		Stage:    stage,
		Menu:     s,
		Logger:   s.logger,
		AutoSave: autoSave,
	})
	if err != nil {
		return nil, err
	}
	s.engine = e
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// start launches the engine and returns the first view, normally the main
// menu. The session lives until ctx ends or Close is called.
func (s *Session) start(ctx context.Context, startNode string) (View, error) {
	ctx, s.cancel = context.WithCancel(ctx)

	first := command{done: make(chan error, 1)}
	s.pending = &first

	go func() {
		defer close(s.finished)
		if err := s.engine.Run(ctx, startNode); err != nil {
			s.logger.Error("session stopped", "error", err)
		}
		s.publish(View{State: StateFinished})
	}()

	err := <-first.done
	return s.View(), err
}

// View returns what the player currently sees.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Finished is closed once the engine has stopped.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// Close stops the engine and waits for it.
func (s *Session) Close() {
	s.cancel()
	<-s.finished
}

// Do hands req to the engine and returns the view it leads to.
func (s *Session) Do(ctx context.Context, req ActionRequest) (View, error) {
	cmd := command{ActionRequest: req, done: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.finished:
		return s.View(), ErrSessionFinished
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return s.View(), err
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// publish records v and answers the action waiting for it. Runs on the
// engine goroutine.
func (s *Session) publish(v View) {
	v.SessionID = s.id
	v.TemplateID = s.templateID
	v.ProfileID = s.profileID
	if v.State == StatePrompt {
		scene := s.engine.Stage().Snapshot()
		v.Scene = &scene
		v.CurrentNode = s.engine.Current()
		v.History = s.engine.History()
		v.Memory = s.engine.Memory().All()
		v.CanGoBack = s.engine.CanGoBack()
	}

	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	if s.pending != nil {
		s.pending.done <- nil
		s.pending = nil
	}
}

func (s *Session) Present(ctx context.Context, p engine.Prompt) (engine.Reply, error) {
	s.publish(View{State: StatePrompt, Prompt: &p})
	for {
		select {
		case <-ctx.Done():
			return engine.Reply{}, ctx.Err()
		case cmd := <-s.cmds:
			reply, resolved, err := s.answer(ctx, p, cmd.ActionRequest)
			if !resolved {
				cmd.done <- err
				continue
			}
			s.pending = &cmd
			return reply, nil
		}
	}
}

// answer applies req to prompt p. resolved reports whether the wait ends.
func (s *Session) answer(ctx context.Context, p engine.Prompt, req ActionRequest) (engine.Reply, bool, error) {
	canceled := engine.Reply{Canceled: true}
	switch req.Action {
	case ActionContinue:
		if p.Kind == engine.PromptChoice {
			return engine.Reply{}, false, fmt.Errorf("%w: pick one of %d choices", ErrInvalidAction, len(p.Choices))
		}
		return engine.Reply{}, true, nil
	case ActionChoose:
		if p.Kind != engine.PromptChoice {
			return engine.Reply{}, false, fmt.Errorf("%w: nothing to choose", ErrInvalidAction)
		}
		if req.Choice < 0 || req.Choice >= len(p.Choices) {
			return engine.Reply{}, false, fmt.Errorf("%w: %d", managers.ErrInvalidChoice, req.Choice)
		}
		return engine.Reply{Choice: req.Choice}, true, nil
	case ActionBack:
		if !s.engine.RequestGoBack() {
			return engine.Reply{}, false, ErrCannotGoBack
		}
		return canceled, true, nil
	case ActionMenu:
		s.engine.RequestReturnToMenu()
		return canceled, true, nil
	case ActionQuit:
		s.quitting = true
		s.engine.RequestReturnToMenu()
		return canceled, true, nil
	case ActionLoad:
		if err := s.checkLoad(ctx, req.Slot); err != nil {
			return engine.Reply{}, false, err
		}
		s.engine.RequestLoad(req.Slot)
		return canceled, true, nil
	case ActionSave:
		if !saver.ValidManualSlot(req.Slot) {
			return engine.Reply{}, false, fmt.Errorf("%w: %d (manual saves use 1-%d)", saver.ErrInvalidSlot, req.Slot, saver.SlotCount-1)
		}
		return engine.Reply{}, false, s.engine.SaveGame(ctx, req.Slot)
	default:
		return engine.Reply{}, false, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
}

func (s *Session) Choose(ctx context.Context, slots []saver.SlotInfo) (engine.MenuChoice, error) {
	if s.quitting {
		return engine.MenuChoice{Action: engine.MenuQuit}, nil
	}
	s.publish(View{State: StateMenu, Slots: slots})
	for {
		select {
		case <-ctx.Done():
			return engine.MenuChoice{}, ctx.Err()
		case cmd := <-s.cmds:
			choice, err := s.menuChoice(ctx, cmd.ActionRequest)
			if err != nil {
				cmd.done <- err
				continue
			}
			s.pending = &cmd
			return choice, nil
		}
	}
}

func (s *Session) menuChoice(ctx context.Context, req ActionRequest) (engine.MenuChoice, error) {
	switch req.Action {
	case ActionNew:
		return engine.MenuChoice{Action: engine.MenuNew}, nil
	case ActionLoad:
		if err := s.checkLoad(ctx, req.Slot); err != nil {
			return engine.MenuChoice{}, err
		}
		return engine.MenuChoice{Action: engine.MenuLoad, Slot: req.Slot}, nil
	case ActionQuit:
		s.quitting = true
		return engine.MenuChoice{Action: engine.MenuQuit}, nil
	default:
		return engine.MenuChoice{}, fmt.Errorf("%w: %q is not available on the menu", ErrInvalidAction, req.Action)
	}
}

// checkLoad rejects loads the engine would ignore.
func (s *Session) checkLoad(ctx context.Context, slot int) error {
	if !saver.ValidSlot(slot) {
		return fmt.Errorf("%w: %d", saver.ErrInvalidSlot, slot)
	}
	if !s.engine.HasSave(ctx, slot) {
		return fmt.Errorf("%w: slot %d", saver.ErrNoSave, slot)
	}
	return nil
}
