package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sqlforge/internal/responses"
)

// SchemaStore is the slice of the schema service the handlers need.
type SchemaStore interface {
	SaveSchema(raw []byte) error
	LoadSchema() (string, error)
}

type SchemaHandler struct {
	schemaService SchemaStore
}

func NewSchemaHandler(schemaService SchemaStore) *SchemaHandler {
	return &SchemaHandler{
		schemaService: schemaService,
	}
}

// UploadSchema handles POST /upload-schema/. The uploaded dump.sql is
// stored as the single active schema for subsequent generation calls.
func (h *SchemaHandler) UploadSchema(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "A schema file is required in the 'file' form field")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "There was an error uploading the file")
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "There was an error uploading the file")
		return
	}

	if err := h.schemaService.SaveSchema(contents); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "There was an error uploading the file")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"message":  fmt.Sprintf("Successfully uploaded and saved schema from %s", fileHeader.Filename),
		"filename": fileHeader.Filename,
	}, "Schema uploaded successfully")
}
