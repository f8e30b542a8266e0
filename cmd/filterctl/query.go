package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// filterFlags are shared by query and list.
type filterFlags struct {
	sets []string
	file string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "Filter field as key=value (repeatable, applied in order)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "YAML mapping of filter fields")
}

// values reads the file first, then applies every --set on top.
func (f *filterFlags) values() (filters.Values, error) {
	var base filters.Values
	if f.file != "" {
		v, err := readFilterFile(f.file)
		if err != nil {
			return filters.Values{}, err
		}
		base = v
	}
	sets, err := parseSets(f.sets)
	if err != nil {
		return filters.Values{}, err
	}
	return base.Merge(sets), nil
}

func queryCmd() *cobra.Command {
	var (
		flags  filterFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the query string for a set of filters",
		Long: `Print the query string a list request would carry for the given filters.

Fields keep the order they are given in. Null fields are left out.

Examples:
  filterctl query --set page=0 --set limit=10 --set name="ana maria"
  filterctl query -f admin-users.yaml --set page=2
  filterctl query --set status=[CREATED,APPROVED] --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := flags.values()
			if err != nil {
				return err
			}

			query := filters.Encode(values)
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), query)
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Filters filters.Values `json:"filters"`
				Query   string         `json:"query"`
			}{values, query})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print filters and query as JSON")

	return cmd
}
