package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pptoapp/presupuesto/backend/internal/archive"
	"github.com/pptoapp/presupuesto/backend/internal/bulk"
	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

// maxUploadSize caps bulk CSV uploads at 5 MB.
const maxUploadSize = 5 << 20

// maxJobPageSize caps one page of the job listing.
const maxJobPageSize = 100

// BulkHandler exposes the catalog import pipeline over HTTP.
type BulkHandler struct {
	service  *bulk.Service
	archiver archive.Archiver
	jobs     repository.JobStore
	logger   *slog.Logger
}

func NewBulkHandler(service *bulk.Service, archiver archive.Archiver, jobs repository.JobStore, logger *slog.Logger) *BulkHandler {
	return &BulkHandler{
		service:  service,
		archiver: archiver,
		jobs:     jobs,
		logger:   logger.With("component", "bulk_handler"),
	}
}

func (h *BulkHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/bulk/template", h.handleTemplate)
	g.POST("/bulk/catalogs", h.handleImport)
	g.GET("/bulk/jobs", h.handleListJobs)
}

// errorReport is the payload for a batch processed with row errors: the same
// shape as a success response plus the error discriminator.
type errorReport struct {
	Error string `json:"error"`
	*bulk.Report
}

// validationReport is the batch-validation rejection payload; it carries no
// dryRun flag because nothing was processed in either mode.
type validationReport struct {
	Error   string                      `json:"error"`
	Summary bulk.Summary                `json:"summary"`
	ByType  map[bulk.Kind]*bulk.Summary `json:"byType"`
	Rows    []bulk.RowResult            `json:"rows"`
}

func (h *BulkHandler) handleTemplate(c echo.Context) error {
	doc, err := bulk.Template()
	if err != nil {
		h.logger.ErrorContext(c.Request().Context(), "failed to render catalogs template", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render template").SetInternal(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, bulk.TemplateFilename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", doc)
}

func (h *BulkHandler) handleImport(c echo.Context) error {
	ctx := c.Request().Context()

	dryRun := true
	if raw := c.QueryParam("dryRun"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "dryRun debe ser true o false")
		}
		dryRun = v
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Se requiere un archivo CSV en el campo 'file'")
	}
	if fileHeader.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "El archivo excede el tamaño máximo de 5 MB")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No se pudo abrir el archivo subido").SetInternal(err)
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No se pudo leer el archivo subido").SetInternal(err)
	}
	if len(content) > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "El archivo excede el tamaño máximo de 5 MB")
	}

	jobID := h.startJob(ctx, content, fileHeader.Filename, dryRun)

	report, err := h.service.Import(ctx, bytes.NewReader(content), dryRun)
	switch {
	case errors.Is(err, bulk.ErrEmptyFile):
		h.completeJob(ctx, jobID, archive.StatusRejected, bulk.ErrEmptyFile.Error(), nil)
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "El archivo CSV está vacío o no tiene datos válidos",
		})

	case errors.Is(err, bulk.ErrValidation):
		h.completeJob(ctx, jobID, archive.StatusRejected, bulk.ErrValidation.Error(), report)
		return c.JSON(http.StatusUnprocessableEntity, validationReport{
			Error:   "VALIDATION_ERROR",
			Summary: report.Summary,
			ByType:  report.ByType,
			Rows:    report.Rows,
		})

	case err != nil:
		h.logger.ErrorContext(ctx, "bulk import failed", "error", err)
		sentry.CaptureException(err)
		h.completeJob(ctx, jobID, archive.StatusFailed, err.Error(), nil)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "Error al procesar el archivo CSV",
			"message": err.Error(),
		})
	}

	if report.Summary.Errors > 0 {
		h.completeJob(ctx, jobID, archive.StatusCompleteWithIssues, "", report)
		return c.JSON(http.StatusUnprocessableEntity, errorReport{Error: "VALIDATION_ERROR", Report: report})
	}

	h.completeJob(ctx, jobID, archive.StatusComplete, "", report)
	return c.JSON(http.StatusOK, report)
}

// startJob archives the upload; audit failures are reported but never block
// the import.
func (h *BulkHandler) startJob(ctx context.Context, content []byte, filename string, dryRun bool) uuid.UUID {
	job, err := h.archiver.StartJob(ctx, bytes.NewReader(content), filename, dryRun)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to archive bulk upload", "error", err, "filename", filename)
		sentry.CaptureException(err)
		return uuid.Nil
	}
	return job.ID
}

func (h *BulkHandler) completeJob(ctx context.Context, jobID uuid.UUID, status, message string, report *bulk.Report) {
	if jobID == uuid.Nil {
		return
	}
	var created, updated, skipped, errored int
	if report != nil {
		created = report.Summary.Created
		updated = report.Summary.Updated
		skipped = report.Summary.Skipped
		errored = report.Summary.Errors
	}
	if err := h.archiver.Complete(ctx, jobID, status, message, created, updated, skipped, errored); err != nil {
		h.logger.ErrorContext(ctx, "failed to finalize import job", "error", err, "job_id", jobID)
		sentry.CaptureException(err)
	}
}

func (h *BulkHandler) handleListJobs(c echo.Context) error {
	ctx := c.Request().Context()

	limit := int32(20)
	if v, err := strconv.ParseInt(c.QueryParam("limit"), 10, 32); err == nil && v > 0 {
		limit = int32(v)
	}
	if limit > maxJobPageSize {
		limit = maxJobPageSize
	}
	offset := int32(0)
	if v, err := strconv.ParseInt(c.QueryParam("offset"), 10, 32); err == nil && v > 0 {
		offset = int32(v)
	}

	jobs, err := h.jobs.ListImportJobs(ctx, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list import jobs", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get import jobs").SetInternal(err)
	}
	if jobs == nil {
		jobs = []repository.ImportJob{}
	}
	return c.JSON(http.StatusOK, jobs)
}
