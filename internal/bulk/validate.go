package bulk

import (
	"fmt"
	"strings"

	"github.com/pptoapp/presupuesto/backend/internal/repository"
)

var kindTags = map[string]Kind{
	"Management":     KindManagement,
	"Area":           KindArea,
	"ExpensePackage": KindExpensePackage,
	"ExpenseConcept": KindExpenseConcept,
	"CostCenter":     KindCostCenter,
	"Articulo":       KindArticulo,
	"Support":        KindSupport,
}

// truthyValues is the textual truthy set for the "active" column.
var truthyValues = map[string]bool{
	"true": true, "1": true, "yes": true, "sí": true, "si": true,
}

var expenseTypes = map[repository.ExpenseType]bool{
	repository.ExpenseTypeAdministrativo: true,
	repository.ExpenseTypeProducto:       true,
	repository.ExpenseTypeDistribuible:   true,
}

func parseActive(row RawRow) bool {
	v, ok := row.Fields["active"]
	if !ok {
		return true
	}
	return truthyValues[strings.ToLower(v)]
}

func requireField(row RawRow, field string, issues *[]Issue) string {
	v := row.Get(field)
	if v == "" {
		*issues = append(*issues, Issue{
			Path:    []string{field},
			Message: fmt.Sprintf("El campo %s es obligatorio", field),
		})
	}
	return v
}

// ValidateRow checks a sanitized row against its declared type's rule set.
// An unrecognized type yields a single issue for path ["type"] and no further
// validation; otherwise all field problems for the row are collected in one
// pass.
func ValidateRow(raw RawRow) (Row, []Issue) {
	row := Row{Number: raw.Number}

	tag := raw.Get("type")
	kind, ok := kindTags[tag]
	if !ok {
		msg := "El campo type es obligatorio"
		if tag != "" {
			msg = fmt.Sprintf("Tipo %q no reconocido. Debe ser uno de: Management, Area, ExpensePackage, ExpenseConcept, CostCenter, Articulo, Support", tag)
		}
		return row, []Issue{{Path: []string{"type"}, Message: msg}}
	}
	row.Kind = kind

	var issues []Issue
	switch kind {
	case KindManagement:
		row.Name = requireField(raw, "name", &issues)
		row.Code = raw.Get("code")
		row.Active = parseActive(raw)

	case KindArea:
		row.Name = requireField(raw, "name", &issues)
		row.ManagementName = requireField(raw, "managementName", &issues)
		row.Code = raw.Get("code")
		row.Active = parseActive(raw)

	case KindExpensePackage:
		row.Name = requireField(raw, "name", &issues)

	case KindExpenseConcept:
		row.Name = requireField(raw, "name", &issues)
		row.PackageName = requireField(raw, "packageName", &issues)

	case KindCostCenter:
		row.Code = requireField(raw, "code", &issues)
		row.Name = raw.Get("name")

	case KindArticulo:
		row.Name = requireField(raw, "name", &issues)
		row.Code = requireField(raw, "code", &issues)

	case KindSupport:
		row.Name = requireField(raw, "name", &issues)
		row.Code = raw.Get("code")
		row.ManagementName = raw.Get("managementName")
		row.AreaName = raw.Get("areaName")
		row.PackageName = raw.Get("packageName")
		row.ConceptName = raw.Get("conceptName")
		row.CostCenterCode = raw.Get("costCenterCode")
		row.Active = parseActive(raw)

		row.HasCostCenterCodes = raw.Has("costCenterCodes")
		if row.HasCostCenterCodes {
			row.CostCenterCodes = splitCodes(raw.Get("costCenterCodes"))
		}

		row.ExpenseType = repository.ExpenseTypeAdministrativo
		if v := raw.Get("expenseType"); v != "" {
			et := repository.ExpenseType(strings.ToUpper(v))
			if !expenseTypes[et] {
				issues = append(issues, Issue{
					Path:    []string{"expenseType"},
					Message: fmt.Sprintf("expenseType %q no es válido. Debe ser ADMINISTRATIVO, PRODUCTO o DISTRIBUIBLE", v),
				})
			} else {
				row.ExpenseType = et
			}
		}
	}

	return row, issues
}

// splitCodes splits the ";"-joined cost-center column, dropping empty
// segments.
func splitCodes(v string) []string {
	codes := []string{}
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			codes = append(codes, part)
		}
	}
	return codes
}
