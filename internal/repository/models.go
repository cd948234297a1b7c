package repository

import (
	"time"

	"github.com/google/uuid"
)

// ExpenseType classifies how a support's spend is attributed.
type ExpenseType string

const (
	ExpenseTypeAdministrativo ExpenseType = "ADMINISTRATIVO"
	ExpenseTypeProducto       ExpenseType = "PRODUCTO"
	ExpenseTypeDistribuible   ExpenseType = "DISTRIBUIBLE"
)

// Management is a top-level organizational unit ("gerencia").
type Management struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code,omitempty"`
	Active bool   `json:"active"`
}

// Area belongs to a Management.
type Area struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ManagementID int64  `json:"management_id"`
	Code         string `json:"code,omitempty"`
	Active       bool   `json:"active"`
}

// ExpensePackage groups expense concepts.
type ExpensePackage struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ExpenseConcept is unique by name within its package.
type ExpenseConcept struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PackageID int64  `json:"package_id"`
}

// CostCenter is keyed by code; the name is informational and may be empty.
type CostCenter struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Articulo is a purchasable item keyed by code.
type Articulo struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Support is the budget carrier entity. All references are optional; cost
// centers are attached through a many-to-many join.
type Support struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Code             string      `json:"code,omitempty"`
	ManagementID     *int64      `json:"management_id,omitempty"`
	AreaID           *int64      `json:"area_id,omitempty"`
	ExpensePackageID *int64      `json:"expense_package_id,omitempty"`
	ExpenseConceptID *int64      `json:"expense_concept_id,omitempty"`
	ExpenseType      ExpenseType `json:"expense_type"`
	Active           bool        `json:"active"`
}

// ImportJob is the audit record for one bulk upload.
type ImportJob struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	SourceURI   string    `json:"source_uri,omitempty"`
	DryRun      bool      `json:"dry_run"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	RowsCreated int       `json:"rows_created"`
	RowsUpdated int       `json:"rows_updated"`
	RowsSkipped int       `json:"rows_skipped"`
	RowsErrored int       `json:"rows_errored"`
	CreatedAt   time.Time `json:"created_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}
