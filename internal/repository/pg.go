package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG implements Store and JobStore against PostgreSQL. Natural-key lookups
// use lower() comparisons backed by unique functional indexes (see the
// migrations directory).
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

var _ Store = (*PG)(nil)
var _ JobStore = (*PG)(nil)

func (s *PG) FindManagementByName(ctx context.Context, name string) (*Management, error) {
	var m Management
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(code, ''), active FROM managements WHERE lower(name) = lower($1)`,
		name,
	).Scan(&m.ID, &m.Name, &m.Code, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find management by name: %w", err)
	}
	return &m, nil
}

func (s *PG) CreateManagement(ctx context.Context, m Management) (*Management, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO managements (name, code, active) VALUES ($1, NULLIF($2, ''), $3) RETURNING id`,
		m.Name, m.Code, m.Active,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("create management: %w", err)
	}
	return &m, nil
}

func (s *PG) FindAreaByName(ctx context.Context, name string) (*Area, error) {
	var a Area
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, management_id, COALESCE(code, ''), active FROM areas WHERE lower(name) = lower($1)`,
		name,
	).Scan(&a.ID, &a.Name, &a.ManagementID, &a.Code, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find area by name: %w", err)
	}
	return &a, nil
}

func (s *PG) CreateArea(ctx context.Context, a Area) (*Area, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO areas (name, management_id, code, active) VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id`,
		a.Name, a.ManagementID, a.Code, a.Active,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("create area: %w", err)
	}
	return &a, nil
}

func (s *PG) UpdateArea(ctx context.Context, a Area) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE areas SET management_id = $2, code = NULLIF($3, ''), active = $4 WHERE id = $1`,
		a.ID, a.ManagementID, a.Code, a.Active,
	)
	if err != nil {
		return fmt.Errorf("update area: %w", err)
	}
	return nil
}

func (s *PG) FindExpensePackageByName(ctx context.Context, name string) (*ExpensePackage, error) {
	var p ExpensePackage
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM expense_packages WHERE lower(name) = lower($1)`,
		name,
	).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find expense package by name: %w", err)
	}
	return &p, nil
}

func (s *PG) CreateExpensePackage(ctx context.Context, p ExpensePackage) (*ExpensePackage, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO expense_packages (name) VALUES ($1) RETURNING id`,
		p.Name,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("create expense package: %w", err)
	}
	return &p, nil
}

func (s *PG) FindExpenseConceptByName(ctx context.Context, packageID int64, name string) (*ExpenseConcept, error) {
	var c ExpenseConcept
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, package_id FROM expense_concepts WHERE package_id = $1 AND lower(name) = lower($2)`,
		packageID, name,
	).Scan(&c.ID, &c.Name, &c.PackageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find expense concept by name: %w", err)
	}
	return &c, nil
}

func (s *PG) CreateExpenseConcept(ctx context.Context, c ExpenseConcept) (*ExpenseConcept, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO expense_concepts (name, package_id) VALUES ($1, $2) RETURNING id`,
		c.Name, c.PackageID,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("create expense concept: %w", err)
	}
	return &c, nil
}

func (s *PG) FindCostCenterByCode(ctx context.Context, code string) (*CostCenter, error) {
	var cc CostCenter
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, COALESCE(name, '') FROM cost_centers WHERE lower(code) = lower($1)`,
		code,
	).Scan(&cc.ID, &cc.Code, &cc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cost center by code: %w", err)
	}
	return &cc, nil
}

func (s *PG) CreateCostCenter(ctx context.Context, cc CostCenter) (*CostCenter, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cost_centers (code, name) VALUES ($1, NULLIF($2, '')) RETURNING id`,
		cc.Code, cc.Name,
	).Scan(&cc.ID)
	if err != nil {
		return nil, fmt.Errorf("create cost center: %w", err)
	}
	return &cc, nil
}

func (s *PG) UpdateCostCenter(ctx context.Context, cc CostCenter) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cost_centers SET name = NULLIF($2, '') WHERE id = $1`,
		cc.ID, cc.Name,
	)
	if err != nil {
		return fmt.Errorf("update cost center: %w", err)
	}
	return nil
}

func (s *PG) FindArticuloByCode(ctx context.Context, code string) (*Articulo, error) {
	var a Articulo
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name FROM articulos WHERE lower(code) = lower($1)`,
		code,
	).Scan(&a.ID, &a.Code, &a.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find articulo by code: %w", err)
	}
	return &a, nil
}

func (s *PG) CreateArticulo(ctx context.Context, a Articulo) (*Articulo, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO articulos (code, name) VALUES ($1, $2) RETURNING id`,
		a.Code, a.Name,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("create articulo: %w", err)
	}
	return &a, nil
}

func (s *PG) UpdateArticulo(ctx context.Context, a Articulo) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE articulos SET name = $2 WHERE id = $1`,
		a.ID, a.Name,
	)
	if err != nil {
		return fmt.Errorf("update articulo: %w", err)
	}
	return nil
}

func (s *PG) FindSupportByName(ctx context.Context, name string) (*Support, error) {
	var sp Support
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(code, ''), management_id, area_id, expense_package_id, expense_concept_id, expense_type, active
		 FROM supports WHERE lower(name) = lower($1)`,
		name,
	).Scan(&sp.ID, &sp.Name, &sp.Code, &sp.ManagementID, &sp.AreaID, &sp.ExpensePackageID, &sp.ExpenseConceptID, &sp.ExpenseType, &sp.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find support by name: %w", err)
	}
	return &sp, nil
}

func (s *PG) CreateSupport(ctx context.Context, sp Support, costCenterIDs []int64) (*Support, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create support: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO supports (name, code, management_id, area_id, expense_package_id, expense_concept_id, expense_type, active)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8) RETURNING id`,
		sp.Name, sp.Code, sp.ManagementID, sp.AreaID, sp.ExpensePackageID, sp.ExpenseConceptID, sp.ExpenseType, sp.Active,
	).Scan(&sp.ID)
	if err != nil {
		return nil, fmt.Errorf("create support: %w", err)
	}

	if err := insertSupportCostCenters(ctx, tx, sp.ID, costCenterIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create support: %w", err)
	}
	return &sp, nil
}

func (s *PG) UpdateSupport(ctx context.Context, sp Support, replaceCostCenters bool, costCenterIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update support: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE supports SET code = NULLIF($2, ''), management_id = $3, area_id = $4, expense_package_id = $5,
		 expense_concept_id = $6, expense_type = $7, active = $8 WHERE id = $1`,
		sp.ID, sp.Code, sp.ManagementID, sp.AreaID, sp.ExpensePackageID, sp.ExpenseConceptID, sp.ExpenseType, sp.Active,
	)
	if err != nil {
		return fmt.Errorf("update support: %w", err)
	}

	if replaceCostCenters {
		if _, err := tx.Exec(ctx, `DELETE FROM support_cost_centers WHERE support_id = $1`, sp.ID); err != nil {
			return fmt.Errorf("clear support cost centers: %w", err)
		}
		if err := insertSupportCostCenters(ctx, tx, sp.ID, costCenterIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update support: %w", err)
	}
	return nil
}

func insertSupportCostCenters(ctx context.Context, tx pgx.Tx, supportID int64, costCenterIDs []int64) error {
	for _, ccID := range costCenterIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO support_cost_centers (support_id, cost_center_id) VALUES ($1, $2)`,
			supportID, ccID,
		)
		if err != nil {
			return fmt.Errorf("link support %d to cost center %d: %w", supportID, ccID, err)
		}
	}
	return nil
}

func (s *PG) ListSupportCostCenterIDs(ctx context.Context, supportID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cost_center_id FROM support_cost_centers WHERE support_id = $1 ORDER BY cost_center_id`,
		supportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list support cost centers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan support cost center: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PG) CreateImportJob(ctx context.Context, job ImportJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, filename, source_uri, dry_run, status, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, now())`,
		job.ID, job.Filename, job.SourceURI, job.DryRun, job.Status,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (s *PG) UpdateImportJob(ctx context.Context, job ImportJob) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_jobs SET status = $2, message = NULLIF($3, ''), rows_created = $4, rows_updated = $5,
		 rows_skipped = $6, rows_errored = $7, finished_at = now() WHERE id = $1`,
		job.ID, job.Status, job.Message, job.RowsCreated, job.RowsUpdated, job.RowsSkipped, job.RowsErrored,
	)
	if err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	return nil
}

func (s *PG) ListImportJobs(ctx context.Context, limit, offset int32) ([]ImportJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, COALESCE(source_uri, ''), dry_run, status, COALESCE(message, ''),
		        rows_created, rows_updated, rows_skipped, rows_errored, created_at, COALESCE(finished_at, 'epoch'::timestamptz)
		 FROM import_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		var j ImportJob
		err := rows.Scan(&j.ID, &j.Filename, &j.SourceURI, &j.DryRun, &j.Status, &j.Message,
			&j.RowsCreated, &j.RowsUpdated, &j.RowsSkipped, &j.RowsErrored, &j.CreatedAt, &j.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PG) GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	var j ImportJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, COALESCE(source_uri, ''), dry_run, status, COALESCE(message, ''),
		        rows_created, rows_updated, rows_skipped, rows_errored, created_at, COALESCE(finished_at, 'epoch'::timestamptz)
		 FROM import_jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.Filename, &j.SourceURI, &j.DryRun, &j.Status, &j.Message,
		&j.RowsCreated, &j.RowsUpdated, &j.RowsSkipped, &j.RowsErrored, &j.CreatedAt, &j.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return &j, nil
}
