package bulk

import "github.com/pptoapp/presupuesto/backend/internal/repository"

// Kind tags the seven catalog entity types a CSV row may declare.
type Kind string

const (
	KindManagement     Kind = "Management"
	KindArea           Kind = "Area"
	KindExpensePackage Kind = "ExpensePackage"
	KindExpenseConcept Kind = "ExpenseConcept"
	KindCostCenter     Kind = "CostCenter"
	KindArticulo       Kind = "Articulo"
	KindSupport        Kind = "Support"
)

// processingOrder is the fixed dependency order: every kind is processed
// after all kinds it may reference by name, so forward references within one
// file resolve in a single pass.
var processingOrder = []Kind{
	KindManagement,
	KindExpensePackage,
	KindCostCenter,
	KindArticulo,
	KindArea,
	KindExpenseConcept,
	KindSupport,
}

var kindPriority = func() map[Kind]int {
	m := make(map[Kind]int, len(processingOrder))
	for i, k := range processingOrder {
		m[k] = i
	}
	return m
}()

// Action is the per-row outcome of an import pass.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionError   Action = "error"
)

// Issue is a field-level problem, addressed by path for display against the
// offending column.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// RowResult is the outcome of exactly one input row. Row numbers are 2-based:
// row 1 is the CSV header, data starts at row 2.
type RowResult struct {
	Row     int     `json:"row"`
	Type    Kind    `json:"type"`
	Action  Action  `json:"action"`
	Message string  `json:"message"`
	Issues  []Issue `json:"issues,omitempty"`
}

// Summary holds the four outcome counters.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Report is the full response payload for one import request. Rows are in
// processing order, not original file order.
type Report struct {
	DryRun  bool              `json:"dryRun"`
	Summary Summary           `json:"summary"`
	ByType  map[Kind]*Summary `json:"byType"`
	Rows    []RowResult       `json:"rows"`
}

// Row is a validated, normalized input row. Kind selects which fields are
// meaningful; the validator guarantees the per-kind required fields before a
// Row is built.
type Row struct {
	Number int
	Kind   Kind

	Name string
	Code string

	ManagementName string
	AreaName       string
	PackageName    string
	ConceptName    string

	// CostCenterCode is the deprecated single-association column.
	CostCenterCode string
	// CostCenterCodes holds the ";"-separated multi-association column. The
	// distinction between "column absent" and "column present but empty"
	// drives the replace-vs-preserve association semantics, so presence is
	// tracked explicitly.
	CostCenterCodes    []string
	HasCostCenterCodes bool

	ExpenseType repository.ExpenseType
	Active      bool
}
