// Command filterctl serves and inspects filter state.
package main

import (
	"os"

	"github.com/spf13/cobra"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configFile  string
	color       string
	errorFormat string
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filterctl",
		Short: "Keyed filter state for list screens",
		Long: `filterctl keeps staged and applied filters per list screen and turns
the applied filters into the query string of list requests.

  • serve exposes a filter store over HTTP and WebSocket
  • query prints the query string for a set of filters
  • list fetches a list endpoint with those filters applied`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.errorFormat {
			case "text", "json":
			default:
				return ferrors.New("X003").WithDetailf("--error-format %q: want text or json", opts.errorFormat)
			}
			return configureColor(opts.color, cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&opts.color, "color", "auto", "Color error output: auto, always or never")
	rootCmd.PersistentFlags().StringVar(&opts.errorFormat, "error-format", "text", "Error output format: text or json")

	rootCmd.AddCommand(
		serveCmd(opts),
		queryCmd(),
		listCmd(),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	opts := &rootOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		reportError(os.Stderr, err, opts.errorFormat)
		os.Exit(1)
	}
}
