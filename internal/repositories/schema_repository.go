package repositories

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSchemaNotFound is returned by Load before the first upload.
var ErrSchemaNotFound = errors.New("no schema has been uploaded yet")

const schemaFileName = "schema.sql"

// SchemaRepository persists the single active schema document on local
// disk. Every upload overwrites the previous one; concurrent writes
// race and the last writer wins.
type SchemaRepository struct {
	path string
}

func NewSchemaRepository(dir string) (*SchemaRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create schema directory %s: %w", dir, err)
	}
	return &SchemaRepository{path: filepath.Join(dir, schemaFileName)}, nil
}

// Save writes the uploaded bytes verbatim, replacing any prior schema.
func (r *SchemaRepository) Save(raw []byte) error {
	if err := os.WriteFile(r.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to store schema file: %w", err)
	}
	return nil
}

// Load returns the full text of the stored schema.
func (r *SchemaRepository) Load() (string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrSchemaNotFound
		}
		return "", fmt.Errorf("failed to read schema file: %w", err)
	}
	return string(data), nil
}

func (r *SchemaRepository) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}
