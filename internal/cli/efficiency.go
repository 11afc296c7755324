package cli

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"alkalytics/internal/efficiency"
	"alkalytics/pkg/contracts/domain"
)

type efficiencySummary struct {
	Status          string              `json:"status"`
	ID              string              `json:"id"`
	ExperimentID    string              `json:"experimentId"`
	IntervalMinutes int                 `json:"timeIntervalMinutes"`
	Metrics         map[string]*float64 `json:"metrics"`
	Failures        map[string]string   `json:"failures,omitempty"`
}

func (s efficiencySummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", s.ID, s.Status)
	for _, name := range domain.AllMetrics {
		v, ok := s.Metrics[name]
		if !ok {
			continue
		}
		if v == nil {
			fmt.Fprintf(w, "  %-32s n/a\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-32s %.4f\n", name, *v)
	}
	names := make([]string, 0, len(s.Failures))
	for name := range s.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, s.Failures[name])
	}
}

type efficiencyList []*domain.EfficiencyRecord

func (l efficiencyList) WriteText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No efficiency records")
		return
	}
	for _, rec := range l {
		fmt.Fprintf(w, "%s\n", rec.ID)
		for _, name := range domain.AllMetrics {
			if v, ok := rec.Metrics[name]; ok && v != nil {
				fmt.Fprintf(w, "  %-32s %.4f\n", name, *v)
			}
		}
	}
}

// NewEfficiencyCommand creates the efficiency command.
func NewEfficiencyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		experimentID string
		metrics      []string
		interval     int
		list         bool
	)

	cmd := &cobra.Command{
		Use:     "efficiency",
		Aliases: []string{"eff"},
		Short:   "Compute or list efficiency factors",
		Long: `Compute efficiency factors for an experiment over a time window, or list
every stored record with --list. Results are cached per experiment and
window; metrics already stored are not recomputed.`,
		Example: `  alkactl efficiency --experiment-id "#1 2024-08-02"
  alkactl efficiency --experiment-id "#1 2024-08-02" --metric "Reaction Efficiency" --interval 10
  alkactl efficiency --list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			cache := efficiency.NewCache(e.db, e.cfg.Efficiency, e.logger)

			if list {
				records, err := cache.List(cmd.Context())
				if err != nil {
					return e.fail("failed to list efficiencies", err)
				}
				return e.out.Success(efficiencyList(records))
			}

			if experimentID == "" {
				return NewExitError(ExitCommandError, "--experiment-id is required unless --list is set")
			}
			if !cmd.Flags().Changed("interval") {
				interval = e.cfg.Efficiency.DefaultIntervalMinutes
			}

			res, err := cache.Calculate(cmd.Context(), experimentID, metrics, interval)
			if err != nil {
				return e.fail("efficiency calculation failed", err)
			}
			summary := efficiencySummary{
				Status:          string(res.Status),
				ExperimentID:    experimentID,
				IntervalMinutes: interval,
				Failures:        res.Failures,
			}
			if res.Record != nil {
				summary.ID = res.Record.ID
				summary.Metrics = res.Record.Metrics
			}
			return e.out.Success(summary)
		},
	}

	cmd.Flags().StringVar(&experimentID, "experiment-id", "", "experiment to compute")
	cmd.Flags().StringSliceVarP(&metrics, "metric", "m", slices.Clone(domain.AllMetrics), "metrics to compute")
	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "minutes of data to use: 0 all, n the first n, -n the last n")
	cmd.Flags().BoolVar(&list, "list", false, "list stored efficiency records")
	return cmd
}
