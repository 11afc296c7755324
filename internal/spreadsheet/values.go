package spreadsheet

import (
	"strconv"
	"strings"
	"time"

	"alkalytics/pkg/contracts/domain"
)

// Cell texts that mean "no value".
var nullTokens = map[string]bool{
	"":        true,
	"NaN":     true,
	"nan":     true,
	"#N/A":    true,
	"N/A":     true,
	"NULL":    true,
	"None":    true,
	"#DIV/0!": true,
	"#VALUE!": true,
	"-":       true,
}

// Layouts tried, in order, when a cell looks like a date or timestamp.
var timeLayouts = []string{
	domain.TimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	domain.DateLayout,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/06 15:04",
	"01-02-2006",
}

// NormalizeValue converts a cell's text into a tagged value.
func NormalizeValue(cell string) domain.Value {
	cell = strings.TrimSpace(cell)
	if nullTokens[cell] {
		return domain.Null()
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return domain.Number(f)
	}
	if t, ok := ParseTime(cell); ok {
		return domain.Time(t)
	}
	return domain.Text(cell)
}

// ParseTime parses s with the known date and timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "-/:") {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
