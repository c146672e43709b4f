package story

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/engine/managers"
	"choicegraph/pkg/graph"
	"choicegraph/pkg/saver"
)

// maxTemplateSize bounds uploaded template bodies.
const maxTemplateSize = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// loadTemplate fetches and parses a stored template, writing the error
// response itself when it fails.
func (s *Service) loadTemplate(ctx context.Context, w http.ResponseWriter, idStr string) (*Template, *graph.Template, bool) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return nil, nil, false
	}

	row, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "template not found", http.StatusNotFound)
			return nil, nil, false
		}
		s.logger.Error("failed to get template", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, nil, false
	}

	tmpl, err := graph.Parse(row.Body)
	if err != nil {
		s.logger.Error("stored template is invalid", "template_id", id, "error", err)
		http.Error(w, "stored template is invalid", http.StatusUnprocessableEntity)
		return nil, nil, false
	}
	return row, tmpl, true
}

func (s *Service) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.ListTemplates(r.Context())
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	summaries := make([]TemplateSummary, len(rows))
	for i := range rows {
		summaries[i] = rows[i].ToSummary()
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Service) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateSize))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tmpl, err := graph.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	encoded, err := graph.Encode(tmpl, false)
	if err != nil {
		s.logger.Error("failed to encode template", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	row := &Template{
		ID:     uuid.New(),
		Title:  tmpl.Metadata.Title,
		Author: tmpl.Metadata.Author,
		Body:   encoded,
	}
	if err := s.repo.CreateTemplate(r.Context(), row); err != nil {
		s.logger.Error("failed to save template", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	slog.Debug("Created template", "id", row.ID)
	writeJSON(w, http.StatusCreated, CreateTemplateResponse{
		TemplateSummary: row.ToSummary(),
		MissingModules:  s.modules.MissingModules(tmpl),
	})
}

func (s *Service) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	row, _, ok := s.loadTemplate(r.Context(), w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{TemplateSummary: row.ToSummary(), Template: row.Body})
}

func (s *Service) HandleLintTemplate(w http.ResponseWriter, r *http.Request) {
	_, tmpl, ok := s.loadTemplate(r.Context(), w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	issues := s.modules.Linter().Lint(tmpl)
	writeJSON(w, http.StatusOK, LintResponse{
		Errors:   len(issues.Errors()),
		Warnings: len(issues.Warnings()),
		Issues:   issues,
	})
}

func (s *Service) HandleExportTemplate(w http.ResponseWriter, r *http.Request) {
	_, tmpl, ok := s.loadTemplate(r.Context(), w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	out, err := graph.Encode(graph.Export(tmpl), false)
	if err != nil {
		s.logger.Error("failed to export template", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Service) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	row, tmpl, ok := s.loadTemplate(r.Context(), w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	profileID := uuid.New()
	if req.ProfileID != "" {
		id, err := uuid.Parse(req.ProfileID)
		if err != nil {
			http.Error(w, "invalid profile id", http.StatusBadRequest)
			return
		}
		profileID = id
	}

	if missing := s.modules.MissingModules(tmpl); len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "template uses unknown modules: " + strings.Join(missing, ", ")})
		return
	}
	if req.Start != "" && !tmpl.Nodes.Has(req.Start) {
		http.Error(w, "start node not found", http.StatusBadRequest)
		return
	}

	_, view, err := s.startSession(row.ID, profileID, tmpl, req.Start)
	if err != nil {
		s.logger.Error("failed to start session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Service) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["sid"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return nil, false
	}
	sess, ok := s.session(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Service) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Service) HandleSessionAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	view, err := sess.Do(r.Context(), req)
	if err != nil {
		status := actionStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("session action failed", "action", req.Action, "error", err)
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["sid"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	sess, ok := s.removeSession(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// actionStatus maps a rejected action to its HTTP status.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAction),
		errors.Is(err, managers.ErrInvalidChoice),
		errors.Is(err, saver.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, ErrCannotGoBack),
		errors.Is(err, saver.ErrNoSave),
		errors.Is(err, engine.ErrNoActiveNode),
		errors.Is(err, ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
