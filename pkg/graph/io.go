package graph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var requiredFields = []string{"version", "metadata", "nodes", "connections"}

// Parse decodes and validates a template.
func Parse(b []byte) (*Template, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrInvalidTemplate, f)
		}
	}

	var t Template
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	t.normalize()

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Encode renders a template as JSON, indented for authoring or compact for
// export.
func Encode(t *Template, indent bool) ([]byte, error) {
	t.normalize()
	if indent {
		return json.MarshalIndent(t, "", "  ")
	}
	return json.Marshal(t)
}

// LoadFile reads a template and resolves its asset paths against the
// template's directory.
func LoadFile(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve template dir: %w", err)
	}
	ResolveAssetPaths(t, dir)
	return t, nil
}

// SaveFile writes a template for authoring. Asset paths are stored
// relative to the file's directory and modified_at is refreshed; t itself
// is left untouched.
func SaveFile(t *Template, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("resolve template dir: %w", err)
	}

	out := t.Clone()
	out.Metadata.ModifiedAt = time.Now().Format(time.RFC3339)
	if out.Metadata.CreatedAt == "" {
		out.Metadata.CreatedAt = out.Metadata.ModifiedAt
	}
	RelativizeAssetPaths(out, dir, logger)

	b, err := Encode(out, true)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write template %s: %w", path, err)
	}
	return nil
}

// Export returns the runtime-only variant: no positions and metadata
// reduced to title, author and version.
func Export(t *Template) *Template {
	out := t.Clone()
	out.Metadata = Metadata{
		Title:   t.Metadata.Title,
		Author:  t.Metadata.Author,
		Version: t.Version,
	}
	for _, n := range out.Nodes.All() {
		n.Position = nil
	}
	return out
}

// ExportFile writes the compact export of t to path.
func ExportFile(t *Template, path string) error {
	b, err := Encode(Export(t), false)
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	return nil
}
