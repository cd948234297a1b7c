package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

// Importer runs the ordered upsert pass of an import batch against a Store.
type Importer struct {
	store  repository.Store
	logger *slog.Logger
}

func NewImporter(store repository.Store, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger.With("component", "bulk_importer")}
}

// handler is the uniform processor signature: one validated row in, one
// RowResult out.
type handler func(ctx context.Context, row Row) RowResult

// batch carries the per-request processing state. Entities created earlier in
// the ordered pass are kept in an overlay keyed by folded natural key, so
// resolution behaves identically in dry-run and live mode: a live run also
// finds them in the store, a dry run only finds them here.
type batch struct {
	imp    *Importer
	dryRun bool

	managements map[string]*repository.Management
	areas       map[string]*repository.Area
	packages    map[string]*repository.ExpensePackage
	concepts    map[string]*repository.ExpenseConcept
	costCenters map[string]*repository.CostCenter
	supports    map[string]*repository.Support
	articulos   map[string]*repository.Articulo

	// supportLinks mirrors the association set written for supports touched in
	// this batch, keyed by folded name, so a later row that omits the
	// costCenterCodes column reports the same count in dry-run and live mode.
	supportLinks map[string][]int64

	// synthID hands out placeholder IDs for entities "created" during a
	// dry run, so that dependent rows in the same batch resolve them
	// distinctly.
	synthID int64
}

func fold(s string) string { return strings.ToLower(s) }

func (b *batch) nextID() int64 {
	b.synthID--
	return b.synthID
}

// Run processes rows strictly in order: later rows must observe the effects
// of earlier rows in the same batch. Rows should already be in dependency
// order (see Schedule).
func (imp *Importer) Run(ctx context.Context, rows []Row, dryRun bool) []RowResult {
	b := &batch{
		imp:          imp,
		dryRun:       dryRun,
		managements:  make(map[string]*repository.Management),
		areas:        make(map[string]*repository.Area),
		packages:     make(map[string]*repository.ExpensePackage),
		concepts:     make(map[string]*repository.ExpenseConcept),
		costCenters:  make(map[string]*repository.CostCenter),
		supports:     make(map[string]*repository.Support),
		articulos:    make(map[string]*repository.Articulo),
		supportLinks: make(map[string][]int64),
	}

	handlers := map[Kind]handler{
		KindManagement:     b.processManagement,
		KindArea:           b.processArea,
		KindExpensePackage: b.processExpensePackage,
		KindExpenseConcept: b.processExpenseConcept,
		KindCostCenter:     b.processCostCenter,
		KindArticulo:       b.processArticulo,
		KindSupport:        b.processSupport,
	}

	results := make([]RowResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, b.processOne(ctx, row, handlers[row.Kind]))
	}
	return results
}

// processOne isolates a single row: a panic or unexpected failure inside one
// handler must not abort the rest of the batch.
func (b *batch) processOne(ctx context.Context, row Row, h handler) (res RowResult) {
	defer func() {
		if r := recover(); r != nil {
			b.imp.logger.ErrorContext(ctx, "panic while processing import row",
				"row", row.Number, "type", row.Kind, "panic", fmt.Sprintf("%v", r))
			res = RowResult{
				Row:     row.Number,
				Type:    row.Kind,
				Action:  ActionError,
				Message: "Error inesperado al procesar la fila",
			}
		}
	}()
	if h == nil {
		return errorResult(row, "type", fmt.Sprintf("Tipo %q sin procesador", row.Kind))
	}
	return h(ctx, row)
}

func result(row Row, action Action, message string) RowResult {
	return RowResult{Row: row.Number, Type: row.Kind, Action: action, Message: message}
}

func errorResult(row Row, field, message string) RowResult {
	return RowResult{
		Row:     row.Number,
		Type:    row.Kind,
		Action:  ActionError,
		Message: message,
		Issues:  []Issue{{Path: []string{field}, Message: message}},
	}
}

func storeError(row Row, err error) RowResult {
	return result(row, ActionError, fmt.Sprintf("Error de base de datos: %v", err))
}

// --- overlay-aware resolution ---

func (b *batch) findManagement(ctx context.Context, name string) (*repository.Management, error) {
	if m, ok := b.managements[fold(name)]; ok {
		return m, nil
	}
	return b.imp.store.FindManagementByName(ctx, name)
}

func (b *batch) findArea(ctx context.Context, name string) (*repository.Area, error) {
	if a, ok := b.areas[fold(name)]; ok {
		return a, nil
	}
	return b.imp.store.FindAreaByName(ctx, name)
}

func (b *batch) findPackage(ctx context.Context, name string) (*repository.ExpensePackage, error) {
	if p, ok := b.packages[fold(name)]; ok {
		return p, nil
	}
	return b.imp.store.FindExpensePackageByName(ctx, name)
}

func conceptKey(packageID int64, name string) string {
	return fmt.Sprintf("%d|%s", packageID, fold(name))
}

func (b *batch) findConcept(ctx context.Context, packageID int64, name string) (*repository.ExpenseConcept, error) {
	if c, ok := b.concepts[conceptKey(packageID, name)]; ok {
		return c, nil
	}
	return b.imp.store.FindExpenseConceptByName(ctx, packageID, name)
}

func (b *batch) findCostCenter(ctx context.Context, code string) (*repository.CostCenter, error) {
	if cc, ok := b.costCenters[fold(code)]; ok {
		return cc, nil
	}
	return b.imp.store.FindCostCenterByCode(ctx, code)
}

func (b *batch) findArticulo(ctx context.Context, code string) (*repository.Articulo, error) {
	if a, ok := b.articulos[fold(code)]; ok {
		return a, nil
	}
	return b.imp.store.FindArticuloByCode(ctx, code)
}

func (b *batch) findSupport(ctx context.Context, name string) (*repository.Support, error) {
	if s, ok := b.supports[fold(name)]; ok {
		return s, nil
	}
	return b.imp.store.FindSupportByName(ctx, name)
}

// --- per-kind processors ---

func (b *batch) processManagement(ctx context.Context, row Row) RowResult {
	existing, err := b.findManagement(ctx, row.Name)
	if err != nil {
		return storeError(row, err)
	}
	if existing != nil {
		return result(row, ActionSkipped, "La gerencia ya existe, sin cambios")
	}

	m := repository.Management{ID: b.nextID(), Name: row.Name, Code: row.Code, Active: row.Active}
	if !b.dryRun {
		created, err := b.imp.store.CreateManagement(ctx, m)
		if err != nil {
			return storeError(row, err)
		}
		m = *created
	}
	b.managements[fold(row.Name)] = &m
	return result(row, ActionCreated, "Gerencia creada")
}

func (b *batch) processArea(ctx context.Context, row Row) RowResult {
	mgmt, err := b.findManagement(ctx, row.ManagementName)
	if err != nil {
		return storeError(row, err)
	}
	if mgmt == nil {
		return errorResult(row, "managementName", fmt.Sprintf("Gerencia %q no encontrada", row.ManagementName))
	}

	existing, err := b.findArea(ctx, row.Name)
	if err != nil {
		return storeError(row, err)
	}
	if existing == nil {
		a := repository.Area{ID: b.nextID(), Name: row.Name, ManagementID: mgmt.ID, Code: row.Code, Active: row.Active}
		if !b.dryRun {
			created, err := b.imp.store.CreateArea(ctx, a)
			if err != nil {
				return storeError(row, err)
			}
			a = *created
		}
		b.areas[fold(row.Name)] = &a
		return result(row, ActionCreated, "Área creada")
	}

	if existing.ManagementID == mgmt.ID {
		return result(row, ActionSkipped, "El área ya existe, sin cambios")
	}

	updated := *existing
	updated.ManagementID = mgmt.ID
	updated.Code = row.Code
	updated.Active = row.Active
	if !b.dryRun {
		if err := b.imp.store.UpdateArea(ctx, updated); err != nil {
			return storeError(row, err)
		}
	}
	b.areas[fold(row.Name)] = &updated
	return result(row, ActionUpdated, "Área actualizada")
}

func (b *batch) processExpensePackage(ctx context.Context, row Row) RowResult {
	existing, err := b.findPackage(ctx, row.Name)
	if err != nil {
		return storeError(row, err)
	}
	if existing != nil {
		return result(row, ActionSkipped, "El paquete de gasto ya existe, sin cambios")
	}

	p := repository.ExpensePackage{ID: b.nextID(), Name: row.Name}
	if !b.dryRun {
		created, err := b.imp.store.CreateExpensePackage(ctx, p)
		if err != nil {
			return storeError(row, err)
		}
		p = *created
	}
	b.packages[fold(row.Name)] = &p
	return result(row, ActionCreated, "Paquete de gasto creado")
}

func (b *batch) processExpenseConcept(ctx context.Context, row Row) RowResult {
	pkg, err := b.findPackage(ctx, row.PackageName)
	if err != nil {
		return storeError(row, err)
	}
	if pkg == nil {
		return errorResult(row, "packageName", fmt.Sprintf("Paquete de gasto %q no encontrado", row.PackageName))
	}

	existing, err := b.findConcept(ctx, pkg.ID, row.Name)
	if err != nil {
		return storeError(row, err)
	}
	if existing != nil {
		return result(row, ActionSkipped, "El concepto de gasto ya existe, sin cambios")
	}

	c := repository.ExpenseConcept{ID: b.nextID(), Name: row.Name, PackageID: pkg.ID}
	if !b.dryRun {
		created, err := b.imp.store.CreateExpenseConcept(ctx, c)
		if err != nil {
			return storeError(row, err)
		}
		c = *created
	}
	b.concepts[conceptKey(pkg.ID, row.Name)] = &c
	return result(row, ActionCreated, "Concepto de gasto creado")
}

func (b *batch) processCostCenter(ctx context.Context, row Row) RowResult {
	existing, err := b.findCostCenter(ctx, row.Code)
	if err != nil {
		return storeError(row, err)
	}
	if existing == nil {
		cc := repository.CostCenter{ID: b.nextID(), Code: row.Code, Name: row.Name}
		if !b.dryRun {
			created, err := b.imp.store.CreateCostCenter(ctx, cc)
			if err != nil {
				return storeError(row, err)
			}
			cc = *created
		}
		b.costCenters[fold(row.Code)] = &cc
		return result(row, ActionCreated, "Centro de costo creado")
	}

	if existing.Name == row.Name {
		return result(row, ActionSkipped, "El centro de costo ya existe, sin cambios")
	}

	updated := *existing
	updated.Name = row.Name
	if !b.dryRun {
		if err := b.imp.store.UpdateCostCenter(ctx, updated); err != nil {
			return storeError(row, err)
		}
	}
	b.costCenters[fold(row.Code)] = &updated
	return result(row, ActionUpdated, "Centro de costo actualizado")
}

func (b *batch) processArticulo(ctx context.Context, row Row) RowResult {
	existing, err := b.findArticulo(ctx, row.Code)
	if err != nil {
		return storeError(row, err)
	}
	if existing == nil {
		a := repository.Articulo{ID: b.nextID(), Code: row.Code, Name: row.Name}
		if !b.dryRun {
			created, err := b.imp.store.CreateArticulo(ctx, a)
			if err != nil {
				return storeError(row, err)
			}
			a = *created
		}
		b.articulos[fold(row.Code)] = &a
		return result(row, ActionCreated, "Artículo creado")
	}

	if existing.Name == row.Name {
		return result(row, ActionSkipped, "El artículo ya existe, sin cambios")
	}

	updated := *existing
	updated.Name = row.Name
	if !b.dryRun {
		if err := b.imp.store.UpdateArticulo(ctx, updated); err != nil {
			return storeError(row, err)
		}
	}
	b.articulos[fold(row.Code)] = &updated
	return result(row, ActionUpdated, "Artículo actualizado")
}

func (b *batch) processSupport(ctx context.Context, row Row) RowResult {
	var mgmtID, areaID, pkgID, conceptID *int64

	if row.ManagementName != "" {
		m, err := b.findManagement(ctx, row.ManagementName)
		if err != nil {
			return storeError(row, err)
		}
		if m == nil {
			return errorResult(row, "managementName", fmt.Sprintf("Gerencia %q no encontrada", row.ManagementName))
		}
		mgmtID = &m.ID
	}

	if row.AreaName != "" {
		a, err := b.findArea(ctx, row.AreaName)
		if err != nil {
			return storeError(row, err)
		}
		if a == nil {
			return errorResult(row, "areaName", fmt.Sprintf("Área %q no encontrada", row.AreaName))
		}
		areaID = &a.ID
	}

	if row.ConceptName != "" && row.PackageName == "" {
		return errorResult(row, "conceptName", "conceptName requiere que packageName también esté especificado")
	}
	if row.PackageName != "" {
		p, err := b.findPackage(ctx, row.PackageName)
		if err != nil {
			return storeError(row, err)
		}
		if p == nil {
			return errorResult(row, "packageName", fmt.Sprintf("Paquete de gasto %q no encontrado", row.PackageName))
		}
		pkgID = &p.ID
		if row.ConceptName != "" {
			c, err := b.findConcept(ctx, p.ID, row.ConceptName)
			if err != nil {
				return storeError(row, err)
			}
			if c == nil {
				return errorResult(row, "conceptName", fmt.Sprintf("Concepto de gasto %q no encontrado en el paquete %q", row.ConceptName, row.PackageName))
			}
			conceptID = &c.ID
		}
	}

	// Resolve the association set: the multi-code column plus the deprecated
	// single-code column, de-duplicated case-insensitively. Any unresolvable
	// code fails the whole row.
	var linkIDs []int64
	seen := make(map[string]bool)
	for _, code := range row.CostCenterCodes {
		if seen[fold(code)] {
			continue
		}
		seen[fold(code)] = true
		cc, err := b.findCostCenter(ctx, code)
		if err != nil {
			return storeError(row, err)
		}
		if cc == nil {
			return errorResult(row, "costCenterCodes", fmt.Sprintf("Centro de costo %q no encontrado", code))
		}
		linkIDs = append(linkIDs, cc.ID)
	}
	if row.CostCenterCode != "" && !seen[fold(row.CostCenterCode)] {
		cc, err := b.findCostCenter(ctx, row.CostCenterCode)
		if err != nil {
			return storeError(row, err)
		}
		if cc == nil {
			return errorResult(row, "costCenterCode", fmt.Sprintf("Centro de costo %q no encontrado", row.CostCenterCode))
		}
		linkIDs = append(linkIDs, cc.ID)
	}

	existing, err := b.findSupport(ctx, row.Name)
	if err != nil {
		return storeError(row, err)
	}

	if existing == nil {
		s := repository.Support{
			ID:               b.nextID(),
			Name:             row.Name,
			Code:             row.Code,
			ManagementID:     mgmtID,
			AreaID:           areaID,
			ExpensePackageID: pkgID,
			ExpenseConceptID: conceptID,
			ExpenseType:      row.ExpenseType,
			Active:           row.Active,
		}
		if !b.dryRun {
			created, err := b.imp.store.CreateSupport(ctx, s, linkIDs)
			if err != nil {
				return storeError(row, err)
			}
			s = *created
		}
		b.supports[fold(row.Name)] = &s
		b.supportLinks[fold(row.Name)] = linkIDs
		return result(row, ActionCreated, fmt.Sprintf("Soporte creado (%d centros de costo vinculados)", len(linkIDs)))
	}

	updated := *existing
	updated.Code = row.Code
	updated.ManagementID = mgmtID
	updated.AreaID = areaID
	updated.ExpensePackageID = pkgID
	updated.ExpenseConceptID = conceptID
	updated.ExpenseType = row.ExpenseType
	updated.Active = row.Active

	// The association set is replaced only when the costCenterCodes column is
	// present in the file, even if its value is empty; otherwise existing
	// associations are preserved.
	linked := len(linkIDs)
	if !row.HasCostCenterCodes {
		if prior, ok := b.supportLinks[fold(row.Name)]; ok {
			linked = len(prior)
		} else {
			current, err := b.imp.store.ListSupportCostCenterIDs(ctx, existing.ID)
			if err != nil {
				return storeError(row, err)
			}
			linked = len(current)
		}
	}
	if !b.dryRun {
		if err := b.imp.store.UpdateSupport(ctx, updated, row.HasCostCenterCodes, linkIDs); err != nil {
			return storeError(row, err)
		}
	}
	b.supports[fold(row.Name)] = &updated
	if row.HasCostCenterCodes {
		b.supportLinks[fold(row.Name)] = linkIDs
	}
	return result(row, ActionUpdated, fmt.Sprintf("Soporte actualizado (%d centros de costo vinculados)", linked))
}
