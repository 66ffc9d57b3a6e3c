package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"archivist/internal/api"
	"archivist/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change persisted settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				keys := settings.Keys()
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					value, ok := resp.Settings[key]
					display := "(default)"
					if ok {
						display = string(value)
					}
					rows = append(rows, []string{key, display})
				}
				fmt.Fprintln(out, renderTable(
					tableView{headers: []string{"Key", "Value"}},
					rows,
				))
				return nil
			})
		},
	}
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one persisted setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				value, ok := resp.Settings[args[0]]
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is unset (built-in default applies)\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", value)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			encoded, err := encodeSettingValue(args[1])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.UpdateSettings(cmd.Context(), map[string]json.RawMessage{key: encoded})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, resp.Settings[key])
				return nil
			})
		},
	}
}

// encodeSettingValue turns a CLI argument into JSON: booleans and numbers
// keep their type, everything else becomes a string.
func encodeSettingValue(value string) (json.RawMessage, error) {
	if value == "true" || value == "false" {
		return json.RawMessage(value), nil
	}
	if _, err := strconv.Atoi(value); err == nil {
		return json.RawMessage(value), nil
	}
	return json.Marshal(value)
}
