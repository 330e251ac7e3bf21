package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"sqlforge/internal/repositories"
	"sqlforge/internal/services"
)

func newSchemaRouter(store SchemaStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewSchemaHandler(store)
	router.POST("/upload-schema/", h.UploadSchema)
	return router
}

func multipartUpload(t *testing.T, filename, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadSchemaStoresFileContents(t *testing.T) {
	repo, err := repositories.NewSchemaRepository(t.TempDir())
	require.NoError(t, err)
	svc := services.NewSchemaService(repo)
	router := newSchemaRouter(svc)

	ddl := "CREATE TABLE orders (id SERIAL PRIMARY KEY, total NUMERIC);"
	body, contentType := multipartUpload(t, "dump.sql", ddl)

	req := httptest.NewRequest(http.MethodPost, "/upload-schema/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "dump.sql")

	stored, err := svc.LoadSchema()
	require.NoError(t, err)
	require.Equal(t, ddl, stored)
}

func TestUploadSchemaOverwritesPrevious(t *testing.T) {
	repo, err := repositories.NewSchemaRepository(t.TempDir())
	require.NoError(t, err)
	svc := services.NewSchemaService(repo)
	router := newSchemaRouter(svc)

	for _, ddl := range []string{"CREATE TABLE a (id INT);", "CREATE TABLE b (id INT);"} {
		body, contentType := multipartUpload(t, "dump.sql", ddl)
		req := httptest.NewRequest(http.MethodPost, "/upload-schema/", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	stored, err := svc.LoadSchema()
	require.NoError(t, err)
	require.Equal(t, "CREATE TABLE b (id INT);", stored)
}

func TestUploadSchemaMissingFile(t *testing.T) {
	router := newSchemaRouter(&fakeSchemaStore{})

	req := httptest.NewRequest(http.MethodPost, "/upload-schema/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadSchemaStoreFailure(t *testing.T) {
	store := &fakeSchemaStore{saveErr: errContaining("disk full")}
	router := newSchemaRouter(store)

	body, contentType := multipartUpload(t, "dump.sql", "CREATE TABLE t (id INT);")
	req := httptest.NewRequest(http.MethodPost, "/upload-schema/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "disk full")
}
