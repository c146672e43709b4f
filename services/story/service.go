package story

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"choicegraph/pkg/graph"
	"choicegraph/pkg/modules"
	"choicegraph/pkg/modules/base"
	"choicegraph/pkg/saver"
)

// SaveStoreFactory returns the slot storage for one profile playing one
// template.
type SaveStoreFactory func(profileID, templateID uuid.UUID) saver.Store

type Service struct {
	repo    Repository
	modules *modules.Registry
	saves   SaveStoreFactory
	logger  *slog.Logger

	// AutoSave makes sessions write slot 0 after every interaction node.
	AutoSave bool

	// ctx bounds every session; cancel stops them all.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewService(pool *pgxpool.Pool, logger *slog.Logger) (*Service, error) {
	repo := NewRepository(pool)
	saves := func(profileID, templateID uuid.UUID) saver.Store {
		return NewPostgresSaveStore(pool, profileID, templateID)
	}
	return NewServiceWithDeps(repo, saves, logger)
}

func NewServiceWithDeps(repo Repository, saves SaveStoreFactory, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := modules.NewRegistry(logger)
	if err := base.Register(reg); err != nil {
		return nil, fmt.Errorf("register base modules: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:     repo,
		modules:  reg,
		saves:    saves,
		logger:   logger,
		AutoSave: true,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// jsonMiddleware sets the Content-Type header to application/json
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	templates := parentRouter.PathPrefix("/templates").Subrouter()
	templates.StrictSlash(false)
	templates.Use(jsonMiddleware)

	templates.HandleFunc("", s.HandleListTemplates).Methods("GET")
	templates.HandleFunc("", s.HandleCreateTemplate).Methods("POST")
	templates.HandleFunc("/{id}", s.HandleGetTemplate).Methods("GET")
	templates.HandleFunc("/{id}/lint", s.HandleLintTemplate).Methods("POST")
	templates.HandleFunc("/{id}/export", s.HandleExportTemplate).Methods("GET")
	templates.HandleFunc("/{id}/sessions", s.HandleCreateSession).Methods("POST")

	sessions := parentRouter.PathPrefix("/sessions").Subrouter()
	sessions.StrictSlash(false)
	sessions.Use(jsonMiddleware)

	sessions.HandleFunc("/{sid}", s.HandleGetSession).Methods("GET")
	sessions.HandleFunc("/{sid}/actions", s.HandleSessionAction).Methods("POST")
	sessions.HandleFunc("/{sid}", s.HandleDeleteSession).Methods("DELETE")
}

// Close stops every running session.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// startSession plays tmpl for profileID and returns the opening view.
func (s *Service) startSession(templateID, profileID uuid.UUID, tmpl *graph.Template, start string) (*Session, View, error) {
	sv := saver.New(s.saves(profileID, templateID), s.logger)
	sess, err := newSession(tmpl, templateID, profileID, sv, s.AutoSave, s.logger)
	if err != nil {
		return nil, View{}, err
	}

	view, err := sess.start(s.ctx, start)
	if err != nil {
		sess.Close()
		return nil, View{}, err
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return sess, view, nil
}

func (s *Service) session(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Service) removeSession(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return sess, ok
}
