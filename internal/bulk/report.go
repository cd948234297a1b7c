package bulk

// NewReport folds an ordered list of row results into the response payload:
// overall counters, counters partitioned by entity type, and the rows
// themselves in processing order.
func NewReport(dryRun bool, rows []RowResult) *Report {
	r := &Report{
		DryRun: dryRun,
		ByType: make(map[Kind]*Summary),
		Rows:   rows,
	}
	if r.Rows == nil {
		r.Rows = []RowResult{}
	}

	for _, row := range rows {
		byType, ok := r.ByType[row.Type]
		if !ok {
			byType = &Summary{}
			r.ByType[row.Type] = byType
		}
		switch row.Action {
		case ActionCreated:
			r.Summary.Created++
			byType.Created++
		case ActionUpdated:
			r.Summary.Updated++
			byType.Updated++
		case ActionSkipped:
			r.Summary.Skipped++
			byType.Skipped++
		case ActionError:
			r.Summary.Errors++
			byType.Errors++
		}
	}
	return r
}
