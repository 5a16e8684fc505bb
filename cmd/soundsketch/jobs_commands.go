package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"soundsketch/internal/api"
	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/queue"
	"soundsketch/internal/workflow"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage transcription jobs",
	}

	jobsCmd.AddCommand(newJobsAddCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsPruneCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				jobs, err := api.NewJobService(cfg, store).List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "File", "Stem", "Notes", "Created"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultListLimit, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func buildJobRows(jobs []api.JobStatus) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.JobID,
			job.Status,
			job.Filename,
			job.Stem,
			strconv.Itoa(job.NoteCount),
			job.CreatedAt,
		})
	}
	return rows
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(cfg, store).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				printJob(cmd, *job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func printJob(cmd *cobra.Command, job api.JobStatus) {
	w := cmd.OutOrStdout()
	colorize := shouldColorize(w)
	for _, line := range renderSectionHeader("Job "+job.JobID, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Status", jobStatusKind(queue.Status(job.Status)), job.Status, colorize))
	fmt.Fprintln(w, renderStatusLine("File", statusInfo, job.Filename, colorize))
	fmt.Fprintln(w, renderStatusLine("Stem", statusInfo, job.Stem, colorize))
	if job.Stage != "" {
		fmt.Fprintln(w, renderStatusLine("Stage", statusInfo, job.Stage, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Notes", statusInfo, strconv.Itoa(job.NoteCount), colorize))
	fmt.Fprintln(w, renderStatusLine("Created", statusInfo, job.CreatedAt, colorize))
	if job.StartedAt != "" {
		fmt.Fprintln(w, renderStatusLine("Started", statusInfo, job.StartedAt, colorize))
	}
	if job.CompletedAt != nil {
		fmt.Fprintln(w, renderStatusLine("Completed", statusInfo, *job.CompletedAt, colorize))
	}
	for _, f := range job.MIDI {
		fmt.Fprintln(w, artifactLine("MIDI ("+f.Instrument+")", f.Path, colorize))
	}
	for _, f := range job.MusicXML {
		fmt.Fprintln(w, artifactLine("MusicXML ("+f.Instrument+")", f.Path, colorize))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(w, renderStatusLine("Failure", statusError, job.ErrorMessage, colorize))
	}
	for _, msg := range job.Errors {
		fmt.Fprintln(w, renderStatusLine("Error", statusWarn, msg, colorize))
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>...",
		Short: "Delete jobs together with their uploads, artifacts and logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc := api.NewJobService(cfg, store)
				out := cmd.OutOrStdout()
				var errs []error
				for _, id := range args {
					id = strings.TrimSpace(id)
					removed, err := svc.Remove(cmd.Context(), id)
					switch {
					case errors.Is(err, api.ErrJobBusy):
						errs = append(errs, fmt.Errorf("job %s is processing; stop the daemon or wait for it to finish", id))
					case err != nil:
						errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
					case !removed:
						fmt.Fprintf(out, "Job %s not found\n", id)
					default:
						fmt.Fprintf(out, "Deleted job %s\n", id)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := api.NewJobService(cfg, store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					rows = append(rows, []string{string(status), strconv.Itoa(stats[string(status)])})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				runCfg := *cfg
				if cmd.Flags().Changed("older-than-hours") {
					if hours <= 0 {
						return errors.New("--older-than-hours must be positive")
					}
					runCfg.Workflow.RetentionHours = hours
				}
				if runCfg.Retention() <= 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Retention disabled; nothing pruned")
					return nil
				}
				logger, err := logging.NewFromConfig(&runCfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				removed := workflow.NewRetentionSweeper(&runCfg, store, logger).Sweep(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d job(s) finished more than %s ago\n", removed, runCfg.Retention())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&hours, "older-than-hours", 0, "Override workflow.retention_hours for this run")
	return cmd
}

func parseStatusFilters(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
