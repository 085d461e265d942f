package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/store"
)

// JobSummary is one row of jobs list.
type JobSummary struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Items      int       `json:"items"`
	OutputPath string    `json:"output_path"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Error      string    `json:"error,omitempty"`
}

// JobList is the result of jobs list.
type JobList struct {
	Jobs []JobSummary `json:"jobs"`
}

// RenderText implements TextRenderer.
func (l JobList) RenderText(w io.Writer) error {
	if len(l.Jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tITEMS\tCREATED\tOUTPUT")
	for _, j := range l.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			j.ID, j.Status, j.Items, j.CreatedAt.Local().Format(time.DateTime), j.OutputPath)
	}
	return tw.Flush()
}

// PruneResult is the result of jobs prune.
type PruneResult struct {
	Pruned []string `json:"pruned"`
}

// RenderText implements TextRenderer.
func (r PruneResult) RenderText(w io.Writer) error {
	for _, id := range r.Pruned {
		fmt.Fprintf(w, "pruned %s\n", id)
	}
	_, err := fmt.Fprintf(w, "✓ Pruned %d stale job(s)\n", len(r.Pruned))
	return err
}

// NewJobsCommand creates the jobs command group.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and prune compile jobs",
	}
	cmd.AddCommand(newJobsListCommand(rootOpts))
	cmd.AddCommand(newJobsPruneCommand(rootOpts))
	return cmd
}

func newJobsListCommand(rootOpts *RootOptions) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List compile jobs, oldest first",
		Long: `List compile jobs, oldest first.

Example:
  udonmeta jobs list --status pending --status stale`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(rootOpts, statuses, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only jobs with this status (pending|compiling|completed|failed|stale)")
	return cmd
}

func runJobsList(opts *RootOptions, statuses []string, cmd *cobra.Command) error {
	sess, err := startSession(opts, cmd)
	if err != nil {
		return err
	}

	filter := make([]store.JobStatus, 0, len(statuses))
	for _, s := range statuses {
		st := store.JobStatus(s)
		if !validStatus(st) {
			return sess.formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("unknown job status %q", s), nil)
		}
		filter = append(filter, st)
	}

	st, err := sess.openStore()
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	jobs, err := st.ListJobs(cmd.Context(), filter...)
	if err != nil {
		return sess.formatter.Fail(ExitCommandError, ErrCodeStore, "cannot list jobs", err)
	}

	list := JobList{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		list.Jobs = append(list.Jobs, JobSummary{
			ID:         j.ID,
			Status:     string(j.Status),
			Items:      len(j.Items),
			OutputPath: j.OutputPath,
			CreatedAt:  j.CreatedAt,
			UpdatedAt:  j.UpdatedAt,
			Error:      j.Error,
		})
	}
	return sess.formatter.Success(list)
}

func validStatus(s store.JobStatus) bool {
	switch s {
	case store.StatusPending, store.StatusCompiling, store.StatusCompleted, store.StatusFailed, store.StatusStale:
		return true
	}
	return false
}

func newJobsPruneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Mark old pending jobs stale and remove their work directories",
		Long: `Mark jobs still pending after jobs.stale_after as stale and remove their
work directories. Completed, failed and stale jobs are kept in the store.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsPrune(rootOpts, cmd)
		},
	}
}

func runJobsPrune(opts *RootOptions, cmd *cobra.Command) error {
	sess, err := startSession(opts, cmd)
	if err != nil {
		return err
	}

	st, err := sess.openStore()
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	pruned, err := sess.orchestrator(st).Prune(cmd.Context())
	if err != nil {
		return sess.formatter.Fail(ExitCommandError, ErrCodeStore, "prune failed", err)
	}
	if pruned == nil {
		pruned = []string{}
	}
	return sess.formatter.Success(PruneResult{Pruned: pruned})
}
