package story

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"choicegraph/pkg/engine"
	"choicegraph/pkg/lint"
	"choicegraph/pkg/saver"
)

// =============================================================================
// Database Models - map directly to PostgreSQL tables
// =============================================================================

// Template represents a row in the templates table. Body holds the
// template JSON as authored.
type Template struct {
	ID        uuid.UUID       `db:"id"`
	Title     string          `db:"title"`
	Author    string          `db:"author"`
	Body      json.RawMessage `db:"body"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// =============================================================================
// API Models
// =============================================================================

// TemplateSummary is one entry of GET /templates.
type TemplateSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateResponse is the API response for GET /templates/{id}.
type TemplateResponse struct {
	TemplateSummary
	Template json.RawMessage `json:"template"`
}

// CreateTemplateResponse is returned by POST /templates.
type CreateTemplateResponse struct {
	TemplateSummary
	MissingModules []string `json:"missing_modules,omitempty"`
}

// LintResponse is returned by POST /templates/{id}/lint.
type LintResponse struct {
	Errors   int         `json:"errors"`
	Warnings int         `json:"warnings"`
	Issues   lint.Issues `json:"issues"`
}

// CreateSessionRequest starts play. ProfileID selects whose save slots are
// used; a new profile is made up when it is empty.
type CreateSessionRequest struct {
	ProfileID string `json:"profile_id,omitempty"`
	Start     string `json:"start,omitempty"`
}

// Action is a player command sent to a session.
type Action string

const (
	ActionContinue Action = "continue"
	ActionChoose   Action = "choose"
	ActionBack     Action = "back"
	ActionMenu     Action = "menu"
	ActionNew      Action = "new"
	ActionLoad     Action = "load"
	ActionSave     Action = "save"
	ActionQuit     Action = "quit"
)

// ActionRequest is the body of POST /sessions/{sid}/actions. Choice is the
// zero-based option for choose; Slot is used by load and save.
type ActionRequest struct {
	Action Action `json:"action"`
	Choice int    `json:"choice,omitempty"`
	Slot   int    `json:"slot,omitempty"`
}

// Session states.
const (
	StateMenu     = "menu"
	StatePrompt   = "prompt"
	StateFinished = "finished"
)

// View is what a client renders: either the main menu with its slots or
// the current prompt with the stage behind it.
type View struct {
	SessionID   uuid.UUID          `json:"session_id"`
	TemplateID  uuid.UUID          `json:"template_id"`
	ProfileID   uuid.UUID          `json:"profile_id"`
	State       string             `json:"state"`
	Prompt      *engine.Prompt     `json:"prompt,omitempty"`
	Slots       []saver.SlotInfo   `json:"slots,omitempty"`
	Scene       *engine.SceneState `json:"scene,omitempty"`
	CurrentNode string             `json:"current_node,omitempty"`
	History     []string           `json:"history,omitempty"`
	Memory      map[string]any     `json:"memory,omitempty"`
	CanGoBack   bool               `json:"can_go_back"`
}

// ErrorResponse is the JSON body of a rejected action.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToSummary converts a Template row to its listing entry.
func (t *Template) ToSummary() TemplateSummary {
	return TemplateSummary{ID: t.ID, Title: t.Title, Author: t.Author, CreatedAt: t.CreatedAt}
}
