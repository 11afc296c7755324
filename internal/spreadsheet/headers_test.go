package spreadsheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"alkalytics/pkg/contracts/domain"
)

func TestMergeHeaderRows(t *testing.T) {
	tests := []struct {
		name   string
		top    []string
		bottom []string
		want   []string
	}{
		{"bottom blank", []string{"Date"}, []string{""}, []string{"Date"}},
		{"bottom placeholder", []string{"Date"}, []string{"Unnamed: 1_level_1"}, []string{"Date"}},
		{"top placeholder", []string{"Unnamed: 2_level_0"}, []string{"pH"}, []string{"pH"}},
		{"both meaningful", []string{"Final volume (L)"}, []string{"HCL"}, []string{"Final volume (L) HCL"}},
		{"notes on top", []string{"Operator Notes"}, []string{"extra"}, []string{"Notes"}},
		{"notes on bottom", []string{"Misc"}, []string{"NOTES"}, []string{"Notes"}},
		{"both blank", []string{" "}, []string{""}, []string{""}},
		{"uneven lengths", []string{"a", "b"}, []string{"x"}, []string{"a x", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeHeaderRows(tt.top, tt.bottom))
		})
	}
}

func TestResolveColumnNames(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"unique names untouched", []string{"a", "b"}, []string{"a", "b"}},
		{"first occurrence verbatim", []string{"U Stac", "U Stac"}, []string{"U Stac", "U Stac (1)"}},
		{"smallest unused suffix", []string{"x", "x (1)", "x"}, []string{"x", "x (1)", "x (2)"}},
		{"reserved canonicalized", []string{" date ", "TIME", "notes", "#"}, []string{"Date", "Time", "Notes", "#"}},
		{"reserved repeats collapse", []string{"Notes", "notes"}, []string{"Notes", "Notes"}},
		{"blank named by position", []string{"a", "", "a"}, []string{"a", "Column 2", "a (1)"}},
		{"names are trimmed", []string{" C1 Cond ", "C1 Cond"}, []string{"C1 Cond", "C1 Cond (1)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveColumnNames(tt.input))
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		cell string
		want domain.Value
	}{
		{"", domain.Null()},
		{"  NaN ", domain.Null()},
		{"#N/A", domain.Null()},
		{"#DIV/0!", domain.Null()},
		{"-", domain.Null()},
		{"42", domain.Number(42)},
		{"-0.5", domain.Number(-0.5)},
		{"1e3", domain.Number(1000)},
		{"2024-05-01", domain.Time(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		{"2024-05-01 10:05:00", domain.Time(time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC))},
		{"05/01/2024 10:05", domain.Time(time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC))},
		{"stack A", domain.Text("stack A")},
		{"2024-13-45", domain.Text("2024-13-45")},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got := NormalizeValue(tt.cell)
			assert.True(t, tt.want.Equal(got), "got %v (%s)", got, got.Kind())
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestFilterRows(t *testing.T) {
	records := []*domain.Record{
		domain.NewRecord("a", nil, "b", nil),
		domain.NewRecord("a", 0, "b", 0.0),
		domain.NewRecord("a", 0, "b", nil),
		domain.NewRecord("a", "0", "b", 0),
		domain.NewRecord("a", 1, "b", 0),
	}

	kept := FilterRows(records)
	assert.Len(t, kept, 3)
	assert.Same(t, records[2], kept[0])
	assert.Len(t, records, 5)
}
