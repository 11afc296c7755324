package spreadsheet

import "alkalytics/pkg/contracts/domain"

// isBlankRow reports whether every cell is empty after normalization.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if !NormalizeValue(c).IsNull() {
			return false
		}
	}
	return true
}

// FilterRows drops records whose values are all null or all the number 0.
// Columns are never removed.
func FilterRows(records []*domain.Record) []*domain.Record {
	out := records[:0:0]
	for _, r := range records {
		if keepRecord(r) {
			out = append(out, r)
		}
	}
	return out
}

func keepRecord(r *domain.Record) bool {
	allNull, allZero := true, true
	r.Range(func(_ string, v domain.Value) bool {
		if !v.IsNull() {
			allNull = false
		}
		if f, ok := v.Float(); !ok || f != 0 {
			allZero = false
		}
		return allZero || allNull
	})
	return !allNull && !allZero
}
