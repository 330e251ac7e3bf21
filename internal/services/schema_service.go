package services

import (
	"sqlforge/internal/repositories"
)

// SchemaService wraps the file-backed schema repository. There is one
// active schema document process-wide; every upload replaces it.
type SchemaService struct {
	repo *repositories.SchemaRepository
}

func NewSchemaService(repo *repositories.SchemaRepository) *SchemaService {
	return &SchemaService{repo: repo}
}

// SaveSchema stores the uploaded DDL bytes verbatim.
func (s *SchemaService) SaveSchema(raw []byte) error {
	return s.repo.Save(raw)
}

// LoadSchema returns the stored DDL text, or
// repositories.ErrSchemaNotFound before the first upload.
func (s *SchemaService) LoadSchema() (string, error) {
	return s.repo.Load()
}
