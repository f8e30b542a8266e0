package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/listing"
)

func listCmd() *cobra.Command {
	var (
		flags   filterFlags
		baseURL string
		token   string
	)

	cmd := &cobra.Command{
		Use:   "list <path>",
		Short: "Fetch a list endpoint with filters applied",
		Long: `Fetch a paginated list endpoint with the given filters applied and print
the response as JSON.

Examples:
  filterctl list /user --base-url=https://api.example.org --set page=0 --set limit=10
  filterctl list /request -f requests.yaml --token=$TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := flags.values()
			if err != nil {
				return err
			}

			store := filters.NewStore()
			binding := filters.NewBinding(store, filters.WithInitialFilters(values))
			binding.Attach()
			defer binding.Detach()

			client := listing.New(baseURL, listing.WithToken(token))
			page, err := client.ListBinding(cmd.Context(), args[0], binding)
			if err != nil {
				return err
			}

			out := map[string]any{"items": page.Items}
			for k, v := range page.Meta {
				out[k] = v
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d items for ?%s\n", len(page.Items), binding.Query())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:3000", "Backend base URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")

	return cmd
}
