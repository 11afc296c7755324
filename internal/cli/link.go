package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"alkalytics/internal/files"
	"alkalytics/internal/migration"
)

type linkSummary struct {
	ExperimentID    string                `json:"experimentId"`
	InsertedRecords int                   `json:"insertedRecords"`
	FileErrors      []migration.FileError `json:"fileErrors"`
}

func (s linkSummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Linked %d records to %s\n", s.InsertedRecords, s.ExperimentID)
	for _, fe := range s.FileErrors {
		fmt.Fprintf(w, "Failed: %s: %s\n", fe.SourceID, fe.Message)
	}
}

// NewLinkCommand creates the link command, which attaches data sheets to an
// experiment chosen by the caller.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	var experimentID string

	cmd := &cobra.Command{
		Use:   "link [files...]",
		Short: "Link data spreadsheets to an experiment",
		Example: `  alkactl link --experiment-id "#2 2024-08-02" run-2.csv
  alkactl link --experiment-id "#1 2024-08-02" ./ambiguous/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, rootOpts, experimentID, args)
		},
	}

	cmd.Flags().StringVar(&experimentID, "experiment-id", "", "experiment to link the data to")
	_ = cmd.MarkFlagRequired("experiment-id")
	return cmd
}

func runLink(cmd *cobra.Command, opts *RootOptions, experimentID string, args []string) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	paths, err := files.NewDiscovery("").Expand(args)
	if err != nil {
		return e.fail("failed to list data files", err)
	}

	engine := migration.NewEngine(e.db, e.logger)
	summary := linkSummary{ExperimentID: experimentID, FileErrors: []migration.FileError{}}
	for _, src := range toSources(paths) {
		n, err := engine.LinkExplicitFile(cmd.Context(), src, experimentID)
		if err != nil {
			if isFileLevel(err) {
				summary.FileErrors = append(summary.FileErrors, migration.FileError{SourceID: src.Path, Message: err.Error()})
				continue
			}
			return e.fail("link failed", err)
		}
		summary.InsertedRecords += n
	}
	return e.out.Success(summary)
}
