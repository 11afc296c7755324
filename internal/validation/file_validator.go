package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SpreadsheetKind identifies how a spreadsheet file is read.
type SpreadsheetKind string

const (
	KindWorkbook SpreadsheetKind = "xlsx"
	KindCSV      SpreadsheetKind = "csv"
)

// FileValidator checks uploaded and local files before they are parsed
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateSpreadsheetFile checks that path is a readable workbook or CSV
// file and reports which reader applies.
func (v *FileValidator) ValidateSpreadsheetFile(path string) (SpreadsheetKind, error) {
	if err := v.ValidateFile(path); err != nil {
		return "", err
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Skipping temporary Excel file",
			slog.String("file", path))
		return "", fmt.Errorf("file %s is a temporary Excel file", base)
	}

	kind, err := SpreadsheetKindOf(base)
	if err != nil {
		v.logger.Error("File is not a supported spreadsheet",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(base)))
		return "", err
	}
	return kind, nil
}

// SpreadsheetKindOf maps a filename extension to a reader.
func SpreadsheetKindOf(name string) (SpreadsheetKind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx", ".xlsm":
		return KindWorkbook, nil
	case ".csv":
		return KindCSV, nil
	case ".xls":
		return "", fmt.Errorf("file %s uses the legacy .xls format; save it as .xlsx", name)
	default:
		return "", fmt.Errorf("file %s is not a spreadsheet (extension: %q)", name, ext)
	}
}

// SanitizeFilename keeps letters, digits, spaces, dots and underscores and
// strips any directory part. An empty result becomes "upload".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_':
			b.WriteRune(r)
		}
	}

	out := strings.Trim(strings.TrimSpace(b.String()), ".")
	if out == "" {
		return "upload"
	}
	return out
}
