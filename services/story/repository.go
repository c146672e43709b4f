package story

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for template storage
type Repository interface {
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	CreateTemplate(ctx context.Context, t *Template) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListTemplates returns every template, newest first
func (r *PostgresRepository) ListTemplates(ctx context.Context) ([]Template, error) {
	query := `
		SELECT id, title, author, body, created_at, updated_at
		FROM templates
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates, err := pgx.CollectRows(rows, pgx.RowToStructByName[Template])
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}

	return templates, nil
}

// GetTemplate retrieves a template by ID
func (r *PostgresRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	query := `
		SELECT id, title, author, body, created_at, updated_at
		FROM templates
		WHERE id = $1
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query template %s: %w", id, err)
	}
	defer rows.Close()

	tmpl, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Template])
	if err != nil {
		return nil, fmt.Errorf("scan template %s: %w", id, err)
	}

	return &tmpl, nil
}

// CreateTemplate inserts a template and fills in its timestamps
func (r *PostgresRepository) CreateTemplate(ctx context.Context, t *Template) error {
	query := `
		INSERT INTO templates (id, title, author, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, t.ID, t.Title, t.Author, t.Body).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert template %s: %w", t.ID, err)
	}

	return nil
}
