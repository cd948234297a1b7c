package bulk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

func seedCostCenters(t *testing.T, store *repository.Mem, codes ...string) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64, len(codes))
	for _, code := range codes {
		cc, err := store.CreateCostCenter(context.Background(), repository.CostCenter{Code: code})
		require.NoError(t, err)
		ids[code] = cc.ID
	}
	return ids
}

func TestSupportCreateLinksCostCenters(t *testing.T) {
	store := repository.NewMem()
	ids := seedCostCenters(t, store, "CC-001", "CC-002")

	csv := "type,name,costCenterCodes\n" +
		"Support,Soporte Web,CC-001;cc-002;CC-001\n"
	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionCreated, report.Rows[0].Action)
	assert.Equal(t, "Soporte creado (2 centros de costo vinculados)", report.Rows[0].Message)

	linked, err := store.ListSupportCostCenterIDs(context.Background(), store.Supports[0].ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{ids["CC-001"], ids["CC-002"]}, linked)
}

func TestSupportUpdatePreservesAssociationsWhenColumnAbsent(t *testing.T) {
	store := repository.NewMem()
	ids := seedCostCenters(t, store, "CC-001", "CC-002")
	sp, err := store.CreateSupport(context.Background(),
		repository.Support{Name: "Soporte Web", ExpenseType: repository.ExpenseTypeAdministrativo, Active: true},
		[]int64{ids["CC-001"], ids["CC-002"]})
	require.NoError(t, err)

	report, err := runImport(t, store, "type,name,code\nSupport,Soporte Web,SOP-02\n", false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionUpdated, report.Rows[0].Action)
	assert.Equal(t, "Soporte actualizado (2 centros de costo vinculados)", report.Rows[0].Message)
	assert.Equal(t, "SOP-02", store.Supports[0].Code)

	linked, err := store.ListSupportCostCenterIDs(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
}

func TestSupportUpdateEmptyColumnClearsAssociations(t *testing.T) {
	store := repository.NewMem()
	ids := seedCostCenters(t, store, "CC-001")
	sp, err := store.CreateSupport(context.Background(),
		repository.Support{Name: "Soporte Web", ExpenseType: repository.ExpenseTypeAdministrativo, Active: true},
		[]int64{ids["CC-001"]})
	require.NoError(t, err)

	report, err := runImport(t, store, "type,name,costCenterCodes\nSupport,Soporte Web,\n", false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionUpdated, report.Rows[0].Action)
	assert.Equal(t, "Soporte actualizado (0 centros de costo vinculados)", report.Rows[0].Message)

	linked, err := store.ListSupportCostCenterIDs(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestSupportUnresolvedCostCenterFailsRow(t *testing.T) {
	store := repository.NewMem()
	seedCostCenters(t, store, "CC-001")

	csv := "type,name,costCenterCodes\nSupport,Soporte Web,CC-001;CC-999\n"
	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionError, report.Rows[0].Action)
	require.Len(t, report.Rows[0].Issues, 1)
	assert.Equal(t, []string{"costCenterCodes"}, report.Rows[0].Issues[0].Path)
	assert.Empty(t, store.Supports)
}

func TestSupportConceptRequiresPackage(t *testing.T) {
	store := repository.NewMem()

	csv := "type,name,conceptName\nSupport,Soporte Web,Mantención\n"
	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, ActionError, report.Rows[0].Action)
	require.Len(t, report.Rows[0].Issues, 1)
	assert.Equal(t, []string{"conceptName"}, report.Rows[0].Issues[0].Path)
}

func TestSupportResolvesConceptWithinPackage(t *testing.T) {
	store := repository.NewMem()
	pkg, err := store.CreateExpensePackage(context.Background(), repository.ExpensePackage{Name: "Servicios"})
	require.NoError(t, err)
	_, err = store.CreateExpenseConcept(context.Background(), repository.ExpenseConcept{Name: "Mantención", PackageID: pkg.ID})
	require.NoError(t, err)
	_, err = store.CreateExpensePackage(context.Background(), repository.ExpensePackage{Name: "Otros"})
	require.NoError(t, err)

	report, err := runImport(t, store,
		"type,name,packageName,conceptName\nSupport,Soporte Web,Servicios,Mantención\n", false)
	require.NoError(t, err)
	require.Equal(t, ActionCreated, report.Rows[0].Action)
	require.NotNil(t, store.Supports[0].ExpenseConceptID)

	// A concept that exists, but under a different package, does not resolve.
	report, err = runImport(t, store,
		"type,name,packageName,conceptName\nSupport,Soporte Dos,Otros,Mantención\n", false)
	require.NoError(t, err)
	assert.Equal(t, ActionError, report.Rows[0].Action)
}

type panicStore struct {
	*repository.Mem
}

func (panicStore) FindArticuloByCode(ctx context.Context, code string) (*repository.Articulo, error) {
	panic("boom")
}

func TestImportRecoversFromRowPanic(t *testing.T) {
	store := panicStore{repository.NewMem()}
	csv := "type,name,code\n" +
		"Articulo,Notebook,ART-01\n" +
		"Management,Tech,\n"

	report, err := runImport(t, store, csv, false)
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	var articulo, management RowResult
	for _, r := range report.Rows {
		switch r.Type {
		case KindArticulo:
			articulo = r
		case KindManagement:
			management = r
		}
	}
	assert.Equal(t, ActionError, articulo.Action)
	assert.Equal(t, "Error inesperado al procesar la fila", articulo.Message)
	assert.Equal(t, ActionCreated, management.Action)
}
