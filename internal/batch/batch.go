// Package batch runs source batches through the host compiler across the
// host's restart.
//
// Phase 1 (Submit) writes the sources into a job work directory, persists a
// pending job descriptor and returns; the host then reloads and compiles.
// Phase 2 (Resume) is a separate entry point: it claims the job, reads each
// compiled program, encodes it and writes the output file. A job that is
// never resumed goes stale after a configurable age.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/udonmeta/internal/codec"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/store"
)

// DefaultStaleAfter is used when Options.StaleAfter is zero.
const DefaultStaleAfter = 24 * time.Hour

// Completion is emitted after a job's output has been written.
type Completion struct {
	JobID      string
	OutputPath string
	Results    []string
}

// Single returns the only result of a one-item job.
func (c Completion) Single() (string, bool) {
	if len(c.Results) != 1 {
		return "", false
	}
	return c.Results[0], true
}

// Listener receives completion events.
type Listener func(Completion)

// Options configures an Orchestrator.
type Options struct {
	Workdir    string // job work directories live under here
	Compiler   Compiler
	IDs        IDGenerator
	Clock      Clock
	StaleAfter time.Duration
	Logger     *slog.Logger
}

// Orchestrator runs both phases against a job store.
type Orchestrator struct {
	store      *store.Store
	workdir    string
	compiler   Compiler
	ids        IDGenerator
	clock      Clock
	staleAfter time.Duration
	logger     *slog.Logger
	listeners  []Listener
}

// New creates an orchestrator. Nil options select the UUIDv7 generator, the
// system clock, an AssetCompiler over Workdir and slog.Default().
func New(st *store.Store, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		workdir:    opts.Workdir,
		compiler:   opts.Compiler,
		ids:        opts.IDs,
		clock:      opts.Clock,
		staleAfter: opts.StaleAfter,
		logger:     opts.Logger,
	}
	if o.compiler == nil {
		o.compiler = AssetCompiler{Workdir: o.workdir}
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.staleAfter <= 0 {
		o.staleAfter = DefaultStaleAfter
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// OnComplete registers a completion listener.
func (o *Orchestrator) OnComplete(l Listener) {
	o.listeners = append(o.listeners, l)
}

// JobDir is the work directory of a job.
func (o *Orchestrator) JobDir(jobID string) string {
	return filepath.Join(o.workdir, jobID)
}

// Submit is phase 1: write sources, persist a pending job and return it.
func (o *Orchestrator) Submit(ctx context.Context, reqs []Request, outputPath string) (store.Job, error) {
	if err := ValidateRequests(reqs); err != nil {
		return store.Job{}, err
	}
	if outputPath == "" {
		return store.Job{}, invalidInput("output path is required")
	}
	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return store.Job{}, invalidInput("output path %q: %v", outputPath, err)
	}

	job := store.Job{
		ID:         o.ids.Generate(),
		Status:     store.StatusPending,
		OutputPath: absOutput,
		CreatedAt:  o.clock.Now(),
	}
	job.UpdatedAt = job.CreatedAt

	dir := o.JobDir(job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.Job{}, &Error{Code: ErrCodeWorkdir, JobID: job.ID, Message: "create work directory", Err: err}
	}
	for i, r := range reqs {
		path := SourcePath(o.workdir, job.ID, r.ClassName)
		if err := os.WriteFile(path, []byte(r.SourceCode), 0o644); err != nil {
			os.RemoveAll(dir)
			return store.Job{}, &Error{Code: ErrCodeWorkdir, JobID: job.ID, Message: "write source " + r.ClassName, Err: err}
		}
		job.Items = append(job.Items, store.JobItem{Seq: i, ClassName: r.ClassName, SourcePath: path})
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		os.RemoveAll(dir)
		return store.Job{}, fmt.Errorf("submit: %w", err)
	}

	o.logger.Info("job submitted; waiting for host compile",
		"job", job.ID,
		"items", len(job.Items),
		"workdir", dir,
	)
	return job, nil
}

// Resume is phase 2 for one job.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (*Output, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		return nil, &Error{Code: ErrCodeJobNotFound, JobID: jobID, Message: "no such job"}
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	if job.Status == store.StatusPending && o.isStale(job) {
		msg := fmt.Sprintf("job is older than %s and was never resumed", o.staleAfter)
		if err := o.store.TransitionJob(ctx, jobID, store.StatusPending, store.StatusStale, o.clock.Now(), msg); err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		o.writeFailure(job.OutputPath, msg)
		return nil, &Error{Code: ErrCodeStale, JobID: jobID, Message: msg}
	}

	if err := o.store.TransitionJob(ctx, jobID, store.StatusPending, store.StatusCompiling, o.clock.Now(), ""); err != nil {
		var conflict *store.StatusConflictError
		if errors.As(err, &conflict) {
			return nil, &Error{Code: ErrCodeNotPending, JobID: jobID, Message: fmt.Sprintf("job is %s", conflict.Actual)}
		}
		return nil, fmt.Errorf("resume: %w", err)
	}

	results, itemResults := o.compileItems(ctx, job)
	out := &Output{Results: results}

	data, err := MarshalOutput(*out)
	if err == nil {
		err = os.WriteFile(job.OutputPath, data, 0o644)
	}
	if err != nil {
		o.fail(ctx, jobID, "write output: "+err.Error())
		return nil, &Error{Code: ErrCodeOutput, JobID: jobID, Message: "write " + job.OutputPath, Err: err}
	}

	if err := o.store.CompleteJob(ctx, jobID, itemResults, o.clock.Now()); err != nil {
		msg := "record results: " + err.Error()
		o.fail(ctx, jobID, msg)
		o.writeFailure(job.OutputPath, msg)
		return nil, fmt.Errorf("resume: %w", err)
	}

	o.logger.Info("job completed", "job", jobID, "items", len(results), "output", job.OutputPath)
	completion := Completion{JobID: jobID, OutputPath: job.OutputPath, Results: results}
	for _, l := range o.listeners {
		l(completion)
	}
	return out, nil
}

// compileItems compiles and encodes each item in order. Item failures
// produce the CompileFailed placeholder.
func (o *Orchestrator) compileItems(ctx context.Context, job store.Job) ([]string, []store.ItemResult) {
	results := make([]string, 0, len(job.Items))
	itemResults := make([]store.ItemResult, 0, len(job.Items))

	for _, item := range job.Items {
		r := store.ItemResult{Seq: item.Seq, Result: CompileFailed}

		data, doc, err := o.compileOne(ctx, job.ID, item)
		if err != nil {
			o.logger.Error("compile failed", "job", job.ID, "class", item.ClassName, "error", err)
		} else {
			r.Result = string(data)
			if id, err := ir.ProgramID(doc); err == nil {
				r.ProgramID = id
			}
		}
		results = append(results, r.Result)
		itemResults = append(itemResults, r)
	}
	return results, itemResults
}

func (o *Orchestrator) compileOne(ctx context.Context, jobID string, item store.JobItem) ([]byte, *ir.ProgramDocument, error) {
	p, err := o.compiler.Compile(ctx, jobID, item)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, codec.ErrNoProgram
	}
	return codec.EncodeJSON(p)
}

// ResumeResult is the outcome of one job in ResumePending.
type ResumeResult struct {
	JobID  string
	Output *Output
	Err    error
}

// ResumePending resumes every pending job, oldest first. A failing job does
// not stop the others.
func (o *Orchestrator) ResumePending(ctx context.Context) ([]ResumeResult, error) {
	jobs, err := o.store.ListJobs(ctx, store.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("resume pending: %w", err)
	}

	results := make([]ResumeResult, 0, len(jobs))
	for _, job := range jobs {
		out, err := o.Resume(ctx, job.ID)
		results = append(results, ResumeResult{JobID: job.ID, Output: out, Err: err})
	}
	return results, nil
}

// Prune marks pending jobs older than the stale age as stale, and compiling
// jobs not updated within it as failed, then removes their work directories.
// Returns the ids it marked.
func (o *Orchestrator) Prune(ctx context.Context) ([]string, error) {
	now := o.clock.Now()
	jobs, err := o.store.PendingBefore(ctx, now.Add(-o.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}

	var pruned []string
	for _, job := range jobs {
		err := o.store.TransitionJob(ctx, job.ID, store.StatusPending, store.StatusStale, now, "pruned: never resumed")
		var conflict *store.StatusConflictError
		if errors.As(err, &conflict) {
			// Resumed concurrently.
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("prune: %w", err)
		}
		if err := os.RemoveAll(o.JobDir(job.ID)); err != nil {
			o.logger.Warn("remove work directory", "job", job.ID, "error", err)
		}
		pruned = append(pruned, job.ID)
	}

	abandoned, err := o.store.CompilingBefore(ctx, now.Add(-o.staleAfter))
	if err != nil {
		return pruned, fmt.Errorf("prune: %w", err)
	}
	for _, job := range abandoned {
		const msg = "pruned: abandoned while compiling"
		err := o.store.TransitionJob(ctx, job.ID, store.StatusCompiling, store.StatusFailed, now, msg)
		var conflict *store.StatusConflictError
		if errors.As(err, &conflict) {
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("prune: %w", err)
		}
		o.writeFailure(job.OutputPath, msg)
		if err := os.RemoveAll(o.JobDir(job.ID)); err != nil {
			o.logger.Warn("remove work directory", "job", job.ID, "error", err)
		}
		pruned = append(pruned, job.ID)
	}

	if len(pruned) > 0 {
		o.logger.Info("pruned stale jobs", "count", len(pruned))
	}
	return pruned, nil
}

func (o *Orchestrator) isStale(job store.Job) bool {
	return o.clock.Now().Sub(job.CreatedAt) > o.staleAfter
}

// fail marks a compiling job failed; errors are logged only. It still runs
// when ctx is already cancelled.
func (o *Orchestrator) fail(ctx context.Context, jobID, msg string) {
	if err := o.store.TransitionJob(context.WithoutCancel(ctx), jobID, store.StatusCompiling, store.StatusFailed, o.clock.Now(), msg); err != nil {
		o.logger.Error("mark job failed", "job", jobID, "error", err)
	}
}

// writeFailure records a fatal failure in the output file; errors are
// logged only.
func (o *Orchestrator) writeFailure(path, msg string) {
	if err := WriteFailure(path, msg); err != nil {
		o.logger.Warn("write failure output", "path", path, "error", err)
	}
}
