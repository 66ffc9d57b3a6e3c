package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon:     running (pid %d)\n", status.PID)
				fmt.Fprintf(out, "Capacity:   %d concurrent transfers\n", status.Capacity)
				fmt.Fprintf(out, "Active:     %d jobs\n", status.ActiveJobs)
				fmt.Fprintf(out, "Database:   %s\n", status.DatabasePath)
				fmt.Fprintf(out, "Data dir:   %s\n", status.DataDir)

				if len(status.JobCounts) > 0 {
					statuses := make([]string, 0, len(status.JobCounts))
					for name := range status.JobCounts {
						statuses = append(statuses, name)
					}
					sort.Strings(statuses)
					fmt.Fprintln(out)
					for _, name := range statuses {
						fmt.Fprintf(out, "  %-12s %d\n", name+":", status.JobCounts[name])
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
