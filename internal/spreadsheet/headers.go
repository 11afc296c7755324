package spreadsheet

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Reserved column names. Any case or spacing variant of these collapses
// to the canonical spelling.
var reservedNames = map[string]string{
	"#":     "#",
	"date":  "Date",
	"time":  "Time",
	"notes": "Notes",
}

// fold lowercases s for caseless matching. A Caser is stateful, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// canonicalReserved returns the canonical spelling for a reserved name.
func canonicalReserved(name string) (string, bool) {
	key := fold(strings.TrimSpace(name))
	canon, ok := reservedNames[key]
	return canon, ok
}

// isPlaceholder reports whether a header cell carries no name. Pandas style
// exports write "Unnamed: 3" into blank header cells.
func isPlaceholder(cell string) bool {
	cell = strings.TrimSpace(cell)
	return cell == "" || strings.HasPrefix(cell, "Unnamed")
}

// MergeHeaderRows combines a two-row header into one name per column.
func MergeHeaderRows(top, bottom []string) []string {
	n := max(len(top), len(bottom))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		t := strings.TrimSpace(cellAt(top, i))
		b := strings.TrimSpace(cellAt(bottom, i))

		switch {
		case strings.Contains(fold(t), "notes") || strings.Contains(fold(b), "notes"):
			out[i] = "Notes"
		case isPlaceholder(b):
			if isPlaceholder(t) {
				out[i] = ""
			} else {
				out[i] = t
			}
		case isPlaceholder(t):
			out[i] = b
		default:
			out[i] = t + " " + b
		}
	}
	return out
}

// ResolveColumnNames makes every header name unique. Reserved names are
// canonicalized and may repeat; the normalizer folds repeats into one column.
func ResolveColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))

	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		if canon, ok := canonicalReserved(name); ok {
			out[i] = canon
			continue
		}
		if !seen[name] {
			seen[name] = true
			out[i] = name
			continue
		}
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s (%d)", name, n)
			if !seen[candidate] {
				seen[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
