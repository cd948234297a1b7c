package repository

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence surface the import pipeline depends on. Every
// Find* method performs a case-insensitive exact match on the entity's
// natural key and returns (nil, nil) when no row matches.
type Store interface {
	FindManagementByName(ctx context.Context, name string) (*Management, error)
	CreateManagement(ctx context.Context, m Management) (*Management, error)

	FindAreaByName(ctx context.Context, name string) (*Area, error)
	CreateArea(ctx context.Context, a Area) (*Area, error)
	UpdateArea(ctx context.Context, a Area) error

	FindExpensePackageByName(ctx context.Context, name string) (*ExpensePackage, error)
	CreateExpensePackage(ctx context.Context, p ExpensePackage) (*ExpensePackage, error)

	FindExpenseConceptByName(ctx context.Context, packageID int64, name string) (*ExpenseConcept, error)
	CreateExpenseConcept(ctx context.Context, c ExpenseConcept) (*ExpenseConcept, error)

	FindCostCenterByCode(ctx context.Context, code string) (*CostCenter, error)
	CreateCostCenter(ctx context.Context, cc CostCenter) (*CostCenter, error)
	UpdateCostCenter(ctx context.Context, cc CostCenter) error

	FindArticuloByCode(ctx context.Context, code string) (*Articulo, error)
	CreateArticulo(ctx context.Context, a Articulo) (*Articulo, error)
	UpdateArticulo(ctx context.Context, a Articulo) error

	FindSupportByName(ctx context.Context, name string) (*Support, error)
	// CreateSupport inserts the support and its cost-center associations in a
	// single transaction.
	CreateSupport(ctx context.Context, s Support, costCenterIDs []int64) (*Support, error)
	// UpdateSupport rewrites the support's scalar fields. When replaceCostCenters
	// is true the full association set is replaced by costCenterIDs in the same
	// transaction; otherwise existing associations are left untouched.
	UpdateSupport(ctx context.Context, s Support, replaceCostCenters bool, costCenterIDs []int64) error
	ListSupportCostCenterIDs(ctx context.Context, supportID int64) ([]int64, error)
}

// JobStore persists the import-job audit trail.
type JobStore interface {
	CreateImportJob(ctx context.Context, job ImportJob) error
	UpdateImportJob(ctx context.Context, job ImportJob) error
	ListImportJobs(ctx context.Context, limit, offset int32) ([]ImportJob, error)
	GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error)
}
