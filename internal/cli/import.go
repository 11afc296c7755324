package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"alkalytics/internal/files"
	"alkalytics/internal/migration"
)

// importSummary is the text and JSON result of import
type importSummary struct {
	ImportedExperiments []string `json:"importedExperiments"`
	migration.BatchResult
}

func (s importSummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Experiments imported: %d\n", len(s.ImportedExperiments))
	for _, id := range s.ImportedExperiments {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "Duplicates skipped:   %d\n", s.DuplicatesSkipped)
	fmt.Fprintf(w, "Data sheets linked:   %d (%d records)\n", s.DataSheetsImported, s.DataRecordsImported)
	for _, a := range s.AmbiguousLinks {
		fmt.Fprintf(w, "Ambiguous: %s (%s) matches %v\n", a.SourceID, a.Date, a.CandidateExperimentIDs)
	}
	for _, u := range s.UnresolvedSheets {
		fmt.Fprintf(w, "Unresolved: %s\n", u)
	}
	for _, fe := range s.FileErrors {
		fmt.Fprintf(w, "Failed: %s: %s\n", fe.SourceID, fe.Message)
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var experiments, data []string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import experiment and data spreadsheets",
		Long: `Import experiment sheets, then link each data sheet to its experiment
by date. Directories are expanded to the spreadsheets they contain.

Data sheets whose date matches several experiments are reported as
ambiguous and can be linked with "alkactl link".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, experiments, data)
		},
	}

	cmd.Flags().StringSliceVarP(&experiments, "experiments", "e", nil, "experiment spreadsheets or directories")
	cmd.Flags().StringSliceVarP(&data, "data", "d", nil, "data spreadsheets or directories")
	return cmd
}

func runImport(cmd *cobra.Command, opts *RootOptions, experiments, data []string) error {
	if len(experiments) == 0 && len(data) == 0 {
		return NewExitError(ExitCommandError, "nothing to import: pass --experiments and/or --data")
	}

	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	discovery := files.NewDiscovery("")
	expPaths, err := discovery.Expand(experiments)
	if err != nil {
		return e.fail("failed to list experiment files", err)
	}
	dataPaths, err := discovery.Expand(data)
	if err != nil {
		return e.fail("failed to list data files", err)
	}
	e.out.VerboseLog("Importing %d experiment and %d data files", len(expPaths), len(dataPaths))

	engine := migration.NewEngine(e.db, e.logger)
	res, err := engine.ImportBatch(cmd.Context(), toSources(expPaths), toSources(dataPaths))
	if err != nil {
		return e.fail("import failed", err)
	}

	summary := importSummary{BatchResult: res, ImportedExperiments: make([]string, 0, len(res.ImportedExperiments))}
	for _, exp := range res.ImportedExperiments {
		summary.ImportedExperiments = append(summary.ImportedExperiments, exp.ID())
	}
	return e.out.Success(summary)
}

func toSources(paths []string) []migration.Source {
	out := make([]migration.Source, len(paths))
	for i, p := range paths {
		out[i] = migration.Source{Path: p}
	}
	return out
}
