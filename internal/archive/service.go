package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

// Job statuses of the import audit trail.
const (
	StatusUploaded           = "UPLOADED"
	StatusComplete           = "COMPLETE"
	StatusCompleteWithIssues = "COMPLETE_WITH_ISSUES"
	StatusRejected           = "REJECTED"
	StatusFailed             = "FAILED"
)

// Archiver records the audit trail of bulk uploads: the raw file plus a job
// row with the final outcome. Archiving is best-effort; it must never fail an
// import.
type Archiver interface {
	StartJob(ctx context.Context, file io.Reader, filename string, dryRun bool) (*repository.ImportJob, error)
	Complete(ctx context.Context, jobID uuid.UUID, status, message string, created, updated, skipped, errored int) error
}

// Service archives raw CSV uploads to a GCS bucket and keeps the import_jobs
// table current.
type Service struct {
	jobs      repository.JobStore
	gcsClient *storage.Client
	gcsBucket string
	logger    *slog.Logger
}

func NewService(jobs repository.JobStore, gcsClient *storage.Client, gcsBucket string, logger *slog.Logger) *Service {
	return &Service{
		jobs:      jobs,
		gcsClient: gcsClient,
		gcsBucket: gcsBucket,
		logger:    logger.With("component", "archive_service"),
	}
}

var _ Archiver = (*Service)(nil)

// StartJob uploads the raw file and inserts the job record in UPLOADED state.
func (s *Service) StartJob(ctx context.Context, file io.Reader, filename string, dryRun bool) (*repository.ImportJob, error) {
	jobID := uuid.New()
	objectKey := fmt.Sprintf("bulk-uploads/%s/%s", jobID, filename)

	s.logger.InfoContext(ctx, "archiving bulk upload", "job_id", jobID, "filename", filename, "dry_run", dryRun)

	wc := s.gcsClient.Bucket(s.gcsBucket).Object(objectKey).NewWriter(ctx)
	if _, err := io.Copy(wc, file); err != nil {
		return nil, fmt.Errorf("failed to upload file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	job := repository.ImportJob{
		ID:        jobID,
		Filename:  filename,
		SourceURI: fmt.Sprintf("gs://%s/%s", s.gcsBucket, objectKey),
		DryRun:    dryRun,
		Status:    StatusUploaded,
	}
	if err := s.jobs.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job record: %w", err)
	}
	return &job, nil
}

// Complete records the final status and per-action counters for a job.
func (s *Service) Complete(ctx context.Context, jobID uuid.UUID, status, message string, created, updated, skipped, errored int) error {
	job, err := s.jobs.GetImportJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load import job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("import job %s not found", jobID)
	}

	job.Status = status
	job.Message = message
	job.RowsCreated = created
	job.RowsUpdated = updated
	job.RowsSkipped = skipped
	job.RowsErrored = errored
	if err := s.jobs.UpdateImportJob(ctx, *job); err != nil {
		return fmt.Errorf("failed to update import job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "import job finished", "job_id", jobID, "status", status,
		"created", created, "updated", updated, "skipped", skipped, "errors", errored)
	return nil
}
