package bulk

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

// ErrEmptyFile is returned when the CSV yields no data rows.
var ErrEmptyFile = errors.New("el archivo CSV está vacío o no tiene datos válidos")

// ErrValidation is returned when any row fails schema validation. The batch
// is rejected whole: no upserts happen, even for the valid rows, and the
// accompanying Report marks every row as an error.
var ErrValidation = errors.New("el archivo contiene errores de validación")

// Service runs the full import pipeline: tokenize, sanitize, validate,
// dependency-order, upsert, aggregate.
type Service struct {
	importer *Importer
	logger   *slog.Logger
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	return &Service{
		importer: NewImporter(store, logger),
		logger:   logger.With("component", "bulk_service"),
	}
}

// Import processes one uploaded CSV. On ErrValidation the returned Report
// carries the per-row validation errors; on ErrEmptyFile the Report is nil.
// Row outcomes during the upsert pass never fail the batch: they are
// reported per row and counted in Summary.Errors.
func (s *Service) Import(ctx context.Context, r io.Reader, dryRun bool) (*Report, error) {
	raw, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	rows := make([]Row, 0, len(raw))
	invalid := make(map[int][]Issue)
	for _, rr := range raw {
		row, issues := ValidateRow(rr)
		if len(issues) > 0 {
			invalid[rr.Number] = issues
		}
		rows = append(rows, row)
	}

	if len(invalid) > 0 {
		results := make([]RowResult, 0, len(rows))
		for _, row := range rows {
			res := RowResult{
				Row:     row.Number,
				Type:    row.Kind,
				Action:  ActionError,
				Message: "No procesado: el archivo contiene errores de validación",
			}
			if issues, ok := invalid[row.Number]; ok {
				res.Message = issues[0].Message
				res.Issues = issues
			}
			results = append(results, res)
		}
		s.logger.WarnContext(ctx, "import batch rejected by validation",
			"rows", len(rows), "invalid_rows", len(invalid))
		return NewReport(dryRun, results), ErrValidation
	}

	ordered := Schedule(rows)
	results := s.importer.Run(ctx, ordered, dryRun)
	report := NewReport(dryRun, results)

	s.logger.InfoContext(ctx, "import batch processed",
		"dry_run", dryRun,
		"rows", len(results),
		"created", report.Summary.Created,
		"updated", report.Summary.Updated,
		"skipped", report.Summary.Skipped,
		"errors", report.Summary.Errors,
	)
	return report, nil
}
