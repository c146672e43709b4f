package story

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockRepository implements Repository for testing.
// All methods panic if the corresponding function is not set,
// ensuring tests explicitly configure the behavior they expect.
type MockRepository struct {
	ListTemplatesFunc  func(ctx context.Context) ([]Template, error)
	GetTemplateFunc    func(ctx context.Context, id uuid.UUID) (*Template, error)
	CreateTemplateFunc func(ctx context.Context, t *Template) error
}

func (m *MockRepository) ListTemplates(ctx context.Context) ([]Template, error) {
	if m.ListTemplatesFunc == nil {
		panic("MockRepository.ListTemplates called but ListTemplatesFunc not set")
	}
	return m.ListTemplatesFunc(ctx)
}

func (m *MockRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	if m.GetTemplateFunc == nil {
		panic(fmt.Sprintf("MockRepository.GetTemplate called but GetTemplateFunc not set (id: %s)", id))
	}
	return m.GetTemplateFunc(ctx, id)
}

func (m *MockRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if m.CreateTemplateFunc == nil {
		panic("MockRepository.CreateTemplate called but CreateTemplateFunc not set")
	}
	return m.CreateTemplateFunc(ctx, t)
}
