package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptoapp/presupuesto/backend/internal/bulk"
	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

type fakeArchiver struct {
	started  int
	statuses []string
}

func (a *fakeArchiver) StartJob(ctx context.Context, file io.Reader, filename string, dryRun bool) (*repository.ImportJob, error) {
	a.started++
	return &repository.ImportJob{ID: uuid.New(), Filename: filename, DryRun: dryRun}, nil
}

func (a *fakeArchiver) Complete(ctx context.Context, jobID uuid.UUID, status, message string, created, updated, skipped, errored int) error {
	a.statuses = append(a.statuses, status)
	return nil
}

func newTestHandler(store *repository.Mem) (*echo.Echo, *fakeArchiver) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := &fakeArchiver{}
	handler := NewBulkHandler(bulk.NewService(store, logger), archiver, store, logger)

	e := echo.New()
	handler.RegisterRoutes(e.Group(""))
	return e, archiver
}

func uploadRequest(t *testing.T, target, csvBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "catalogs.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestHandleTemplate(t *testing.T) {
	e, _ := newTestHandler(repository.NewMem())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bulk/template", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="catalogs_template.csv"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\ufeff")))
	assert.Contains(t, rec.Body.String(), "type,name,code")
}

func TestHandleImportDefaultsToDryRun(t *testing.T) {
	store := repository.NewMem()
	e, archiver := newTestHandler(store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs", "type,name\nManagement,Tech\n"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["dryRun"])
	assert.Empty(t, store.Managements)
	assert.Equal(t, 1, archiver.started)
	assert.Equal(t, []string{"COMPLETE"}, archiver.statuses)
}

func TestHandleImportLiveRun(t *testing.T) {
	store := repository.NewMem()
	e, _ := newTestHandler(store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs?dryRun=false",
		"type,name,managementName\nManagement,Tech,\nArea,Dev,Tech\n"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		DryRun  bool         `json:"dryRun"`
		Summary bulk.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.DryRun)
	assert.Equal(t, bulk.Summary{Created: 2}, body.Summary)
	assert.Len(t, store.Managements, 1)
	assert.Len(t, store.Areas, 1)
}

func TestHandleImportEmptyFile(t *testing.T) {
	e, archiver := newTestHandler(repository.NewMem())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs", "type,name\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "El archivo CSV está vacío o no tiene datos válidos", body["error"])
	assert.Equal(t, []string{"REJECTED"}, archiver.statuses)
}

func TestHandleImportValidationRejection(t *testing.T) {
	store := repository.NewMem()
	e, archiver := newTestHandler(store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs?dryRun=false",
		"type,name\nManagement,Tech\nMystery,X\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error string           `json:"error"`
		Rows  []bulk.RowResult `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error)
	require.Len(t, body.Rows, 2)
	for _, row := range body.Rows {
		assert.Equal(t, bulk.ActionError, row.Action)
	}
	assert.Empty(t, store.Managements)
	assert.Equal(t, []string{"REJECTED"}, archiver.statuses)
}

func TestHandleImportRowErrors(t *testing.T) {
	store := repository.NewMem()
	e, archiver := newTestHandler(store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs?dryRun=false",
		"type,name,managementName\nArea,Dev,Fantasma\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error   string       `json:"error"`
		DryRun  *bool        `json:"dryRun"`
		Summary bulk.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error)
	require.NotNil(t, body.DryRun, "processed-with-errors payload carries the dryRun flag")
	assert.False(t, *body.DryRun)
	assert.Equal(t, 1, body.Summary.Errors)
	assert.Equal(t, []string{"COMPLETE_WITH_ISSUES"}, archiver.statuses)
}

func TestHandleImportMissingFile(t *testing.T) {
	e, _ := newTestHandler(repository.NewMem())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bulk/catalogs", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImportBadDryRunParam(t *testing.T) {
	e, _ := newTestHandler(repository.NewMem())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/bulk/catalogs?dryRun=maybe", "type,name\nManagement,Tech\n"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListJobs(t *testing.T) {
	store := repository.NewMem()
	require.NoError(t, store.CreateImportJob(context.Background(), repository.ImportJob{
		ID: uuid.New(), Filename: "catalogs.csv", Status: "COMPLETE",
	}))
	e, _ := newTestHandler(store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bulk/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []repository.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "catalogs.csv", jobs[0].Filename)
}

func TestHandleListJobsClampsPagination(t *testing.T) {
	store := repository.NewMem()
	require.NoError(t, store.CreateImportJob(context.Background(), repository.ImportJob{
		ID: uuid.New(), Filename: "catalogs.csv", Status: "COMPLETE",
	}))
	e, _ := newTestHandler(store)

	// A limit beyond int32 must not wrap into a negative page size.
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bulk/jobs?limit=4294967297", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var jobs []repository.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)
}
