package bulk

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runImport(t *testing.T, store repository.Store, csv string, dryRun bool) (*Report, error) {
	t.Helper()
	svc := NewService(store, testLogger())
	return svc.Import(context.Background(), strings.NewReader(csv), dryRun)
}

func TestImportEmptyFile(t *testing.T) {
	store := repository.NewMem()

	_, err := runImport(t, store, "", false)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = runImport(t, store, "type,name\n", false)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestImportCreatesManagementAndArea(t *testing.T) {
	store := repository.NewMem()
	csv := "type,name,managementName\n" +
		"Management,Tech,\n" +
		"Area,Dev,Tech\n"

	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, ActionCreated, report.Rows[0].Action)
	assert.Equal(t, ActionCreated, report.Rows[1].Action)
	assert.Equal(t, Summary{Created: 2}, report.Summary)

	require.Len(t, store.Managements, 1)
	require.Len(t, store.Areas, 1)
	assert.Equal(t, "Tech", store.Managements[0].Name)
	assert.Equal(t, store.Managements[0].ID, store.Areas[0].ManagementID)
}

func TestImportForwardReferenceResolvedByOrdering(t *testing.T) {
	store := repository.NewMem()
	// Area appears before its Management in file order; the scheduler must
	// process the Management first.
	csv := "type,name,managementName\n" +
		"Area,Dev,Tech\n" +
		"Management,Tech,\n"

	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	assert.Equal(t, Summary{Created: 2}, report.Summary)
	assert.Equal(t, KindManagement, report.Rows[0].Type)
	assert.Equal(t, KindArea, report.Rows[1].Type)
	require.Len(t, store.Areas, 1)
	assert.Equal(t, store.Managements[0].ID, store.Areas[0].ManagementID)
}

func TestImportIdempotence(t *testing.T) {
	store := repository.NewMem()
	csv := "type,name,code,managementName,packageName\n" +
		"Management,Tech,GER-01,,\n" +
		"ExpensePackage,Servicios,,,\n" +
		"CostCenter,Santiago,CC-001,,\n" +
		"Articulo,Notebook,ART-01,,\n" +
		"Area,Dev,,Tech,\n" +
		"ExpenseConcept,Mantención,,,Servicios\n" +
		"Support,Soporte Web,SOP-01,Tech,\n"

	first, err := runImport(t, store, csv, false)
	require.NoError(t, err)
	assert.Equal(t, 7, first.Summary.Created)

	second, err := runImport(t, store, csv, false)
	require.NoError(t, err)
	assert.Zero(t, second.Summary.Created)
	assert.Zero(t, second.Summary.Errors)
	// Supports always take the update path for an existing name; everything
	// else is unchanged and skipped.
	assert.Equal(t, 1, second.Summary.Updated)
	assert.Equal(t, 6, second.Summary.Skipped)

	require.Len(t, store.Managements, 1)
	require.Len(t, store.Supports, 1)
}

func TestImportDryRunWritesNothing(t *testing.T) {
	store := repository.NewMem()
	csv := "type,name,managementName\n" +
		"Management,Tech,\n" +
		"Area,Dev,Tech\n"

	report, err := runImport(t, store, csv, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, Summary{Created: 2}, report.Summary)
	assert.Empty(t, store.Managements)
	assert.Empty(t, store.Areas)
}

func TestImportDryRunLiveParity(t *testing.T) {
	csv := "type,name,code,managementName,costCenterCodes\n" +
		"Management,Tech,,,\n" +
		"CostCenter,,CC-001,,\n" +
		"Area,Dev,,Tech,\n" +
		"Support,Soporte Web,,Tech,CC-001\n"

	store := repository.NewMem()
	dry, err := runImport(t, store, csv, true)
	require.NoError(t, err)
	live, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, dry.Rows, len(live.Rows))
	for i := range dry.Rows {
		assert.Equal(t, live.Rows[i].Action, dry.Rows[i].Action, "row %d", dry.Rows[i].Row)
		assert.Equal(t, live.Rows[i].Message, dry.Rows[i].Message, "row %d", dry.Rows[i].Row)
	}
}

func TestImportNaturalKeyCaseInsensitive(t *testing.T) {
	store := repository.NewMem()

	_, err := runImport(t, store, "type,code,name\nCostCenter,cc-001,\n", false)
	require.NoError(t, err)

	report, err := runImport(t, store, "type,code,name\nCostCenter,CC-001,Planta X\n", false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionUpdated, report.Rows[0].Action)
	require.Len(t, store.CostCenters, 1)
	assert.Equal(t, "cc-001", store.CostCenters[0].Code)
	assert.Equal(t, "Planta X", store.CostCenters[0].Name)
}

func TestImportBatchValidationShortCircuit(t *testing.T) {
	store := repository.NewMem()
	csv := "type,name\n" +
		"Management,Tech\n" +
		"Mystery,What\n" +
		"Management,Finanzas\n"

	report, err := runImport(t, store, csv, false)
	assert.ErrorIs(t, err, ErrValidation)

	require.Len(t, report.Rows, 3)
	for _, row := range report.Rows {
		assert.Equal(t, ActionError, row.Action)
	}
	// Only the failing row carries a meaningful issue.
	assert.Empty(t, report.Rows[0].Issues)
	require.Len(t, report.Rows[1].Issues, 1)
	assert.Equal(t, []string{"type"}, report.Rows[1].Issues[0].Path)
	assert.Empty(t, report.Rows[2].Issues)

	assert.Equal(t, 3, report.Summary.Errors)
	assert.Empty(t, store.Managements)
}

func TestImportRowErrorsAreIsolated(t *testing.T) {
	store := repository.NewMem()
	csv := "type,name,managementName\n" +
		"Area,Dev,Fantasma\n" +
		"Management,Tech,\n"

	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	// The Management row still processed despite the Area row's unresolved
	// reference.
	assert.Equal(t, 1, report.Summary.Created)
	assert.Equal(t, 1, report.Summary.Errors)
	require.Len(t, store.Managements, 1)

	var areaRow RowResult
	for _, r := range report.Rows {
		if r.Type == KindArea {
			areaRow = r
		}
	}
	assert.Equal(t, ActionError, areaRow.Action)
	require.Len(t, areaRow.Issues, 1)
	assert.Equal(t, []string{"managementName"}, areaRow.Issues[0].Path)
}

func TestImportAreaUpdateOnManagementChange(t *testing.T) {
	store := repository.NewMem()
	m1, _ := store.CreateManagement(context.Background(), repository.Management{Name: "Tech", Active: true})
	m2, _ := store.CreateManagement(context.Background(), repository.Management{Name: "Finanzas", Active: true})
	_, _ = store.CreateArea(context.Background(), repository.Area{Name: "Dev", ManagementID: m1.ID, Active: true})

	report, err := runImport(t, store, "type,name,managementName\nArea,Dev,Finanzas\n", false)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, report.Rows[0].Action)
	assert.Equal(t, m2.ID, store.Areas[0].ManagementID)

	// Same management again is a no-op.
	report, err = runImport(t, store, "type,name,managementName\nArea,Dev,Finanzas\n", false)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, report.Rows[0].Action)
}
