// Package spreadsheet turns uploaded workbook and CSV exports into ordered
// records sharing one canonical column set.
//
// Normalization is a pipeline of small pure transforms:
//
//	rows -> MergeHeaderRows -> ResolveColumnNames -> NormalizeValue -> FilterRows
//
// Each step can be exercised on its own. Normalizer wires them to the file
// readers (excelize for .xlsx/.xlsm, encoding/csv for .csv) and reports file
// level failures as PARSING errors without emitting partial record sets.
package spreadsheet
