package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var files []string
	var glob string
	var format string
	var destDir string
	var skipExisting bool
	var verifyChecksum bool
	var retries int
	var timeoutSeconds int
	var flatten bool
	var preserveTimestamps bool
	var includeDerivatives bool
	var sources []string
	var excludeSources []string
	var excludeGlob string

	cmd := &cobra.Command{
		Use:   "get <identifier>",
		Short: "Queue a transfer job for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateJobRequest{
				Identifier:     args[0],
				Files:          files,
				Glob:           glob,
				Format:         format,
				DestDir:        destDir,
				Sources:        sources,
				ExcludeSources: excludeSources,
				ExcludeGlob:    excludeGlob,
			}
			// Only flags the user set become overrides; everything else
			// falls through to persisted and configured defaults.
			flags := cmd.Flags()
			if flags.Changed("skip-existing") {
				req.SkipExisting = &skipExisting
			}
			if flags.Changed("verify") {
				req.VerifyChecksum = &verifyChecksum
			}
			if flags.Changed("retries") {
				req.Retries = &retries
			}
			if flags.Changed("timeout") {
				req.TimeoutSeconds = &timeoutSeconds
			}
			if flags.Changed("flatten") {
				req.Flatten = &flatten
			}
			if flags.Changed("preserve-timestamps") {
				req.PreserveTimestamps = &preserveTimestamps
			}
			if flags.Changed("derivatives") {
				req.IncludeDerivatives = &includeDerivatives
			}

			return ctx.withClient(func(client *api.Client) error {
				job, err := client.CreateJob(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job %s for %s\n", job.ID, job.Identifier)
				fmt.Fprintf(out, "Destination: %s\n", job.DestDir)
				fmt.Fprintf(out, "Follow it with `archivist watch` or `archivist jobs`\n")
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Exact file to transfer (repeatable)")
	cmd.Flags().StringVar(&glob, "glob", "", "Only transfer files matching this pattern")
	cmd.Flags().StringVar(&format, "format", "", "Only transfer files of this format")
	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Destination directory")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Skip files already present at the destination")
	cmd.Flags().BoolVar(&verifyChecksum, "verify", false, "Verify MD5 checksums after download")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry attempts per file")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Per-file timeout in seconds")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "Place files directly in the destination")
	cmd.Flags().BoolVar(&preserveTimestamps, "preserve-timestamps", false, "Restore remote modification times")
	cmd.Flags().BoolVar(&includeDerivatives, "derivatives", false, "Include derivative files")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Only transfer files from this source (repeatable)")
	cmd.Flags().StringSliceVar(&excludeSources, "exclude-source", nil, "Skip files from this source (repeatable)")
	cmd.Flags().StringVar(&excludeGlob, "exclude-glob", "", "Skip files matching this pattern")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List active transfer jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.ActiveJobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No active jobs")
					return nil
				}
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderTable(jobTable, buildJobRows(jobs, colorize)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished transfer jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No finished jobs")
					return nil
				}
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderTable(jobTable, buildJobRows(jobs, colorize)))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				cancelled, err := client.CancelJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !cancelled {
					return fmt.Errorf("job %s not found or already finished", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.ClearHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished jobs\n", removed)
				return nil
			})
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live job updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, "Watching for job updates (ctrl-c to stop)")
				return client.Watch(cmd.Context(), func(event api.Event) {
					job := event.Job
					line := fmt.Sprintf("%s  %-20s %-10s %s",
						job.ID,
						truncate(job.Identifier, 20),
						paintStatus(job.Status, colorize),
						formatProgress(job))
					if job.RateBPS > 0 {
						line += "  " + formatRate(job.RateBPS)
					}
					if job.Error != "" {
						line += "  " + truncate(job.Error, 60)
					}
					fmt.Fprintln(out, line)
				})
			})
		},
	}
}
