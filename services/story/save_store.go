package story

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"choicegraph/pkg/saver"
)

// PostgresSaveStore keeps one profile's slots for one template in the
// save_slots table.
type PostgresSaveStore struct {
	db         *pgxpool.Pool
	profileID  uuid.UUID
	templateID uuid.UUID
}

func NewPostgresSaveStore(db *pgxpool.Pool, profileID, templateID uuid.UUID) *PostgresSaveStore {
	return &PostgresSaveStore{db: db, profileID: profileID, templateID: templateID}
}

func (s *PostgresSaveStore) Put(ctx context.Context, slot int, payload []byte) error {
	query := `
		INSERT INTO save_slots (profile_id, template_id, slot, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id, template_id, slot)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`

	if _, err := s.db.Exec(ctx, query, s.profileID, s.templateID, slot, payload); err != nil {
		return fmt.Errorf("upsert save slot %d: %w", slot, err)
	}
	return nil
}

func (s *PostgresSaveStore) Get(ctx context.Context, slot int) ([]byte, error) {
	query := `
		SELECT payload
		FROM save_slots
		WHERE profile_id = $1 AND template_id = $2 AND slot = $3
	`

	var payload []byte
	err := s.db.QueryRow(ctx, query, s.profileID, s.templateID, slot).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, saver.ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("query save slot %d: %w", slot, err)
	}
	return payload, nil
}

func (s *PostgresSaveStore) Delete(ctx context.Context, slot int) error {
	query := `
		DELETE FROM save_slots
		WHERE profile_id = $1 AND template_id = $2 AND slot = $3
	`

	tag, err := s.db.Exec(ctx, query, s.profileID, s.templateID, slot)
	if err != nil {
		return fmt.Errorf("delete save slot %d: %w", slot, err)
	}
	if tag.RowsAffected() == 0 {
		return saver.ErrNoSave
	}
	return nil
}
