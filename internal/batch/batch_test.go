package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/udonmeta/internal/asset"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/program"
	"github.com/roach88/udonmeta/internal/store"
	"github.com/roach88/udonmeta/internal/testutil"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	orch    *Orchestrator
	store   *store.Store
	clock   *testutil.ManualClock
	workdir string
	outDir  string
}

func newFixture(t *testing.T, ids ...string) *fixture {
	return newFixtureWith(t, nil, ids...)
}

func newFixtureWith(t *testing.T, compiler Compiler, ids ...string) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:   st,
		clock:   testutil.NewManualClock(testEpoch),
		workdir: t.TempDir(),
		outDir:  t.TempDir(),
	}
	f.orch = New(st, Options{
		Workdir:    f.workdir,
		Compiler:   compiler,
		IDs:        testutil.NewFixedIDs(ids...),
		Clock:      f.clock,
		StaleAfter: time.Hour,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) output(name string) string {
	return filepath.Join(f.outDir, name)
}

// hostCompile plays the host: it leaves a compiled asset for className.
func (f *fixture) hostCompile(t *testing.T, jobID, className string, img *program.Image) {
	t.Helper()
	data, err := program.MarshalImage(img)
	require.NoError(t, err)
	digits, err := asset.EncodeBlob(data)
	require.NoError(t, err)
	text := "MonoBehaviour:\n  " + asset.FormatLine("", digits) + "\n"
	require.NoError(t, os.WriteFile(AssetPath(f.workdir, jobID, className), []byte(text), 0o644))
}

func haltImage() *program.Image {
	return &program.Image{
		ByteCode:    []byte{0x00, 0x00, 0x00, 0x05, 0xFF, 0xFF, 0xFF, 0xFF},
		Symbols:     []program.ImageSymbol{{Name: "__const_SystemUInt32_0", Type: "System.UInt32", Address: 0}},
		EntryPoints: []program.ImageSymbol{{Name: "_start", Address: 0}},
		Heap:        []program.ImageSlot{{Address: 0, Type: "System.UInt32", Value: uint64(0xFFFFFFFF)}},
	}
}

func requests(names ...string) []Request {
	reqs := make([]Request, len(names))
	for i, n := range names {
		reqs[i] = Request{ClassName: n, SourceCode: "public class " + n + " : UdonSharpBehaviour {}"}
	}
	return reqs
}

func readOutput(t *testing.T, path string) Output {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out Output
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	var berr *Error
	require.True(t, errors.As(err, &berr), "want *batch.Error, got %v", err)
	return berr.Code
}

func TestSubmitWritesSourcesAndPendingJob(t *testing.T) {
	f := newFixture(t, "job-1")
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, requests("Spinner", "Door"), f.output("out.json"))
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	src, err := os.ReadFile(SourcePath(f.workdir, "job-1", "Door"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "class Door")

	stored, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, stored.Status)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Spinner", stored.Items[0].ClassName)
	assert.Equal(t, "Door", stored.Items[1].ClassName)
	assert.Nil(t, stored.Items[0].Result)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, nil, f.output("out.json"))
	assert.Equal(t, ErrCodeInvalidInput, codeOf(t, err))

	_, err = f.orch.Submit(ctx, requests("A"), "")
	assert.Equal(t, ErrCodeInvalidInput, codeOf(t, err))

	jobs, err := f.store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestResumeProducesOrderedResults(t *testing.T) {
	f := newFixture(t, "job-1")
	ctx := context.Background()
	outPath := f.output("out.json")

	_, err := f.orch.Submit(ctx, requests("Spinner", "Broken", "Door"), outPath)
	require.NoError(t, err)
	f.hostCompile(t, "job-1", "Spinner", haltImage())
	f.hostCompile(t, "job-1", "Door", haltImage())

	var events []Completion
	f.orch.OnComplete(func(c Completion) { events = append(events, c) })

	f.clock.Advance(time.Minute)
	out, err := f.orch.Resume(ctx, "job-1")
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	assert.Equal(t, CompileFailed, out.Results[1])
	doc, err := ir.UnmarshalProgram([]byte(out.Results[0]))
	require.NoError(t, err)
	assert.Equal(t, 8, doc.ByteCodeLength)
	assert.Equal(t, out.Results[0], out.Results[2])

	written := readOutput(t, outPath)
	assert.Equal(t, out.Results, written.Results)
	assert.Nil(t, written.Error)

	stored, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, stored.Status)
	assert.Equal(t, ir.MustProgramID(doc), stored.Items[0].ProgramID)
	assert.Empty(t, stored.Items[1].ProgramID)
	require.NotNil(t, stored.Items[1].Result)
	assert.Equal(t, CompileFailed, *stored.Items[1].Result)

	require.Len(t, events, 1)
	assert.Equal(t, "job-1", events[0].JobID)
	_, single := events[0].Single()
	assert.False(t, single)
}

func TestResumeTwiceFails(t *testing.T) {
	f := newFixture(t, "job-1")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("Only"), f.output("out.json"))
	require.NoError(t, err)
	f.hostCompile(t, "job-1", "Only", haltImage())

	_, err = f.orch.Resume(ctx, "job-1")
	require.NoError(t, err)

	_, err = f.orch.Resume(ctx, "job-1")
	assert.Equal(t, ErrCodeNotPending, codeOf(t, err))
	assert.Contains(t, err.Error(), "completed")
}

func TestResumeUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Resume(context.Background(), "nope")
	assert.Equal(t, ErrCodeJobNotFound, codeOf(t, err))
}

func TestResumeRefusesStaleJob(t *testing.T) {
	f := newFixture(t, "job-1")
	ctx := context.Background()
	outPath := f.output("out.json")

	_, err := f.orch.Submit(ctx, requests("Late"), outPath)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.orch.Resume(ctx, "job-1")
	assert.Equal(t, ErrCodeStale, codeOf(t, err))

	written := readOutput(t, outPath)
	assert.Empty(t, written.Results)
	require.NotNil(t, written.Error)
	assert.Contains(t, *written.Error, "never resumed")

	stored, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusStale, stored.Status)
}

func TestResumeOutputNotWritable(t *testing.T) {
	f := newFixture(t, "job-1")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("Only"), filepath.Join(f.outDir, "missing", "out.json"))
	require.NoError(t, err)

	_, err = f.orch.Resume(ctx, "job-1")
	assert.Equal(t, ErrCodeOutput, codeOf(t, err))

	stored, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "write output")
}

func TestResumeSingleItemCompletion(t *testing.T) {
	compiler := CompilerFunc(func(context.Context, string, store.JobItem) (program.Program, error) {
		return haltImage().Program()
	})
	f := newFixtureWith(t, compiler, "job-1")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("Only"), f.output("out.json"))
	require.NoError(t, err)

	var got string
	f.orch.OnComplete(func(c Completion) {
		got, _ = c.Single()
	})
	_, err = f.orch.Resume(ctx, "job-1")
	require.NoError(t, err)
	assert.Contains(t, got, `"byteCodeHex": "00000005FFFFFFFF"`)
}

func TestResumePendingOldestFirst(t *testing.T) {
	f := newFixture(t, "job-b", "job-a")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("X"), f.output("b.json"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.orch.Submit(ctx, requests("X"), f.output("a.json"))
	require.NoError(t, err)

	results, err := f.orch.ResumePending(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "job-b", results[0].JobID)
	assert.Equal(t, "job-a", results[1].JobID)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, []string{CompileFailed}, r.Output.Results)
	}
}

func TestPruneMarksStaleJobs(t *testing.T) {
	f := newFixture(t, "old", "fresh")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("A"), f.output("old.json"))
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	_, err = f.orch.Submit(ctx, requests("A"), f.output("fresh.json"))
	require.NoError(t, err)

	pruned, err := f.orch.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, pruned)

	_, err = os.Stat(f.orch.JobDir("old"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.orch.JobDir("fresh"))
	assert.NoError(t, err)

	stale, err := f.store.ListJobs(ctx, store.StatusStale)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func TestPruneReclaimsAbandonedCompilingJob(t *testing.T) {
	f := newFixture(t, "crashed", "running")
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, requests("A"), f.output("crashed.json"))
	require.NoError(t, err)
	require.NoError(t, f.store.TransitionJob(ctx, "crashed", store.StatusPending, store.StatusCompiling, f.clock.Now(), ""))
	f.clock.Advance(90 * time.Minute)
	_, err = f.orch.Submit(ctx, requests("A"), f.output("running.json"))
	require.NoError(t, err)
	require.NoError(t, f.store.TransitionJob(ctx, "running", store.StatusPending, store.StatusCompiling, f.clock.Now(), ""))

	pruned, err := f.orch.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"crashed"}, pruned)

	job, err := f.store.GetJob(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "abandoned")
	_, err = os.Stat(f.orch.JobDir("crashed"))
	assert.True(t, os.IsNotExist(err))

	out := readOutput(t, f.output("crashed.json"))
	assert.Empty(t, out.Results)
	require.NotNil(t, out.Error)
	assert.Contains(t, *out.Error, "abandoned")

	job, err = f.store.GetJob(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompiling, job.Status)
}

func TestResumeRecordFailureMarksJobFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancelling mid-compile makes recording the results fail after the
	// output file is written.
	compiler := CompilerFunc(func(context.Context, string, store.JobItem) (program.Program, error) {
		cancel()
		return haltImage().Program()
	})
	f := newFixtureWith(t, compiler, "job-1")

	_, err := f.orch.Submit(ctx, requests("A"), f.output("out.json"))
	require.NoError(t, err)

	_, err = f.orch.Resume(ctx, "job-1")
	require.Error(t, err)

	job, err := f.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "record results")

	out := readOutput(t, f.output("out.json"))
	assert.Empty(t, out.Results)
	require.NotNil(t, out.Error)
	assert.Contains(t, *out.Error, "record results")
}
