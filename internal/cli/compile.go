package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/batch"
)

// SubmitOptions holds flags for compile submit.
type SubmitOptions struct {
	*RootOptions
	Input  string
	Output string
}

// SubmitResult is the result of compile submit.
type SubmitResult struct {
	JobID   string `json:"job_id"`
	Sources int    `json:"sources"`
	Workdir string `json:"workdir"`
	Output  string `json:"output"`
}

// RenderText implements TextRenderer.
func (r SubmitResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "✓ Submitted job %s (%d source(s))\n", r.JobID, r.Sources)
	fmt.Fprintf(w, "  sources: %s\n", r.Workdir)
	fmt.Fprintf(w, "  output:  %s\n", r.Output)
	_, err := fmt.Fprintf(w, "Compile the sources in the host, then run: udonmeta compile resume %s\n", r.JobID)
	return err
}

// JobOutcome is the result of resuming one job.
type JobOutcome struct {
	JobID    string `json:"job_id"`
	Output   string `json:"output,omitempty"`
	Results  int    `json:"results"`
	Failed   int    `json:"failed"` // results carrying the compile failure placeholder
	Error    string `json:"error,omitempty"`
	Complete bool   `json:"complete"`
}

// ResumeResult is the result of compile resume.
type ResumeResult struct {
	Jobs []JobOutcome `json:"jobs"`
}

// RenderText implements TextRenderer.
func (r ResumeResult) RenderText(w io.Writer) error {
	if len(r.Jobs) == 0 {
		_, err := fmt.Fprintln(w, "No pending jobs")
		return err
	}
	for _, j := range r.Jobs {
		if !j.Complete {
			fmt.Fprintf(w, "✗ job %s: %s\n", j.JobID, j.Error)
			continue
		}
		fmt.Fprintf(w, "✓ job %s: %d result(s), %d failed compile(s) -> %s\n", j.JobID, j.Results, j.Failed, j.Output)
	}
	return nil
}

// NewCompileCommand creates the compile command group.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Run source batches through the host compiler",
		Long: `Compile a batch of sources in two phases around the host's reload.

submit writes the sources into a job work directory and records a pending
job. After the host has compiled them, resume reads each compiled program
and writes {"results": [...], "error": null} to the job's output file, one
program document (or "ERROR: Compile Failed") per source in input order.`,
	}

	cmd.AddCommand(newSubmitCommand(rootOpts))
	cmd.AddCommand(newResumeCommand(rootOpts))
	return cmd
}

func newSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Write sources and record a pending compile job",
		Long: `Read a JSON batch of {"sourceCode", "className"} requests (a bare array or
{"requests": [...]}) and start a compile job.

Example:
  udonmeta compile submit --input batch.json --output results.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "batch input file (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "results output file (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	sess, err := startSessionWith(opts.RootOptions, cmd, batchPolicy(opts.Output))
	if err != nil {
		return err
	}
	formatter := sess.formatter

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return batchFailure(sess, opts.Output, fmt.Errorf("read input: %w", err))
	}
	reqs, err := batch.ParseRequests(data)
	if err != nil {
		return batchFailure(sess, opts.Output, err)
	}

	st, err := sess.openStore()
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	orch := sess.orchestrator(st)
	job, err := orch.Submit(cmd.Context(), reqs, opts.Output)
	if err != nil {
		return batchFailure(sess, opts.Output, err)
	}

	return formatter.Success(SubmitResult{
		JobID:   job.ID,
		Sources: len(job.Items),
		Workdir: orch.JobDir(job.ID),
		Output:  job.OutputPath,
	})
}

// batchFailure records a fatal batch failure in the output file when it can
// and returns the command error.
func batchFailure(sess *session, outputPath string, err error) error {
	if outputPath != "" {
		if werr := batch.WriteFailure(outputPath, err.Error()); werr != nil {
			sess.logger.Warn("write failure output", "path", outputPath, "error", werr)
		}
	}
	return sess.formatter.Fail(ExitFailure, ErrCodeBatch, "batch failed", err)
}

func newResumeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [job-id]",
		Short: "Collect compiled programs for a pending job",
		Long: `Resume a pending compile job after the host has compiled its sources.
Without a job id every pending job is resumed, oldest first.

Jobs left pending longer than jobs.stale_after are refused and marked stale.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runResume(opts *RootOptions, args []string, cmd *cobra.Command) error {
	// The output path lives in the job; setup failures only set the exit code.
	sess, err := startSessionWith(opts, cmd, batchPolicy(""))
	if err != nil {
		return err
	}
	formatter := sess.formatter

	st, err := sess.openStore()
	if err != nil {
		return err
	}
	defer sess.closeStore(st)

	orch := sess.orchestrator(st)
	outputs := make(map[string]string)
	orch.OnComplete(func(c batch.Completion) {
		outputs[c.JobID] = c.OutputPath
		formatter.VerboseLog("Job %s wrote %d result(s) to %s", c.JobID, len(c.Results), c.OutputPath)
	})

	var result ResumeResult
	if len(args) == 1 {
		out, err := orch.Resume(cmd.Context(), args[0])
		result.Jobs = append(result.Jobs, outcome(args[0], out, err))
	} else {
		resumed, err := orch.ResumePending(cmd.Context())
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "cannot list pending jobs", err)
		}
		for _, r := range resumed {
			result.Jobs = append(result.Jobs, outcome(r.JobID, r.Output, r.Err))
		}
	}

	failed := 0
	for i, j := range result.Jobs {
		result.Jobs[i].Output = outputs[j.JobID]
		if !j.Complete {
			failed++
		}
	}

	if failed > 0 && len(result.Jobs) == 1 {
		return formatter.Fail(ExitFailure, ErrCodeBatch, result.Jobs[0].Error, nil)
	}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d job(s) failed", ErrCodeBatch, failed))
	}
	return nil
}

func outcome(jobID string, out *batch.Output, err error) JobOutcome {
	o := JobOutcome{JobID: jobID}
	if err != nil {
		o.Error = err.Error()
		var berr *batch.Error
		if errors.As(err, &berr) {
			o.Error = fmt.Sprintf("%s (%s)", berr.Message, berr.Code)
		}
		return o
	}
	o.Complete = true
	o.Results = len(out.Results)
	for _, r := range out.Results {
		if r == batch.CompileFailed {
			o.Failed++
		}
	}
	return o
}
