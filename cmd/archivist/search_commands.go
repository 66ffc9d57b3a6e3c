package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var page int
	var rows int
	var sortOrder string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Search(cmd.Context(), query, page, rows, sortOrder)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				if len(resp.Results) == 0 {
					fmt.Fprintln(out, "No results")
					return nil
				}
				tableRows := make([][]string, 0, len(resp.Results))
				for _, result := range resp.Results {
					tableRows = append(tableRows, []string{
						result.Identifier,
						truncate(result.Title, 48),
						result.MediaType,
						result.Date,
						strconv.FormatInt(result.Downloads, 10),
					})
				}
				fmt.Fprintln(out, renderTable(
					tableView{
						headers: []string{"Identifier", "Title", "Type", "Date", "Downloads"},
						numeric: []int{4},
					},
					tableRows,
				))
				fmt.Fprintf(out, "Page %d of %d results\n", resp.Page, resp.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVar(&rows, "rows", 20, "Results per page")
	cmd.Flags().StringVar(&sortOrder, "sort", "", "Sort order (e.g. downloads desc)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSearchesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "searches",
		Short: "List recent search queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				queries, err := client.RecentSearches(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(queries) == 0 {
					fmt.Fprintln(out, "No recent searches")
					return nil
				}
				for _, query := range queries {
					fmt.Fprintln(out, query)
				}
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <identifier>",
		Short: "Show item metadata and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Item(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				item := resp.Item
				fmt.Fprintf(out, "Identifier: %s\n", item.Identifier)
				if title := metadataString(item.Metadata, "title"); title != "" {
					fmt.Fprintf(out, "Title:      %s\n", title)
				}
				if mediaType := metadataString(item.Metadata, "mediatype"); mediaType != "" {
					fmt.Fprintf(out, "Type:       %s\n", mediaType)
				}
				if creator := metadataString(item.Metadata, "creator"); creator != "" {
					fmt.Fprintf(out, "Creator:    %s\n", creator)
				}
				if date := metadataString(item.Metadata, "date"); date != "" {
					fmt.Fprintf(out, "Date:       %s\n", date)
				}

				if len(item.Files) == 0 {
					fmt.Fprintln(out, "\nNo files listed")
					return nil
				}
				var total int64
				rows := make([][]string, 0, len(item.Files))
				for _, file := range item.Files {
					size := "-"
					if file.Size != nil {
						size = formatBytes(*file.Size)
						total += *file.Size
					}
					rows = append(rows, []string{
						truncate(file.Name, 56),
						file.Format,
						file.Source,
						size,
					})
				}
				fmt.Fprintln(out, renderTable(
					tableView{
						headers: []string{"File", "Format", "Source", "Size"},
						numeric: []int{3},
					},
					rows,
				))
				fmt.Fprintf(out, "%d files, %s total\n", len(item.Files), formatBytes(total))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
