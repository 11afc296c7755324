// Package cli implements alkactl, the command line front end of the
// migration engine and the efficiency cache. Commands talk to the document
// store directly; no server is needed.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigFile  string
	StoreDriver string
	StoreDSN    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for alkactl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "alkactl",
		Short: "Alkalytics experiment data tool",
		Long:  "Import experiment and sensor spreadsheets and compute electrodialysis efficiencies.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (defaults to config.yaml lookup)")
	flags.StringVar(&opts.StoreDriver, "store-driver", "", "document store driver (memory|sqlite|postgres)")
	flags.StringVar(&opts.StoreDSN, "store-dsn", "", "document store DSN or sqlite path")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewEfficiencyCommand(opts))

	return cmd
}
