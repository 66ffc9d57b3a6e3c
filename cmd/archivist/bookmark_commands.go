package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

func newBookmarksCommand(ctx *commandContext) *cobra.Command {
	bookmarksCmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage saved items",
	}

	bookmarksCmd.AddCommand(newBookmarksListCommand(ctx))
	bookmarksCmd.AddCommand(newBookmarksAddCommand(ctx))
	bookmarksCmd.AddCommand(newBookmarksRemoveCommand(ctx))

	return bookmarksCmd
}

func newBookmarksListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				marks, err := client.Bookmarks(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(marks) == 0 {
					fmt.Fprintln(out, "No bookmarks")
					return nil
				}
				rows := make([][]string, 0, len(marks))
				for _, mark := range marks {
					rows = append(rows, []string{
						mark.Identifier,
						truncate(mark.Title, 48),
						mark.MediaType,
						truncate(mark.Note, 32),
					})
				}
				fmt.Fprintln(out, renderTable(
					tableView{headers: []string{"Identifier", "Title", "Type", "Note"}},
					rows,
				))
				return nil
			})
		},
	}
}

func newBookmarksAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var mediaType string
	var note string

	cmd := &cobra.Command{
		Use:   "add <identifier>",
		Short: "Save an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				err := client.AddBookmark(cmd.Context(), api.BookmarkRequest{
					Identifier: args[0],
					Title:      title,
					MediaType:  mediaType,
					Note:       note,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Item title")
	cmd.Flags().StringVar(&mediaType, "mediatype", "", "Item media type")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	return cmd
}

func newBookmarksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <identifier>",
		Short: "Remove a saved item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.RemoveBookmark(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %s\n", args[0])
				return nil
			})
		},
	}
}
