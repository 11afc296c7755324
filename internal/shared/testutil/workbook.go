package testutil

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes rows to the first sheet of a new xlsx file inside a
// test temp dir and returns its path.
func WriteWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

// WriteCSV writes rows as a comma separated file inside a test temp dir.
func WriteCSV(t *testing.T, name string, rows [][]string) string {
	t.Helper()

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

// Base64File returns the base64 encoding of a file's contents.
func Base64File(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}
