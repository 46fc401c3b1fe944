package watch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmudsudo/cargomon/internal/runner"
	"github.com/mahmudsudo/cargomon/internal/term"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type runnerCall struct {
	dir  string
	name string
	args []string
}

// fakeRunner answers "cargo" invocations with the build outcome and
// anything else with the run outcome.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall

	buildRes *runner.Result
	buildErr error
	runRes   *runner.Result
	runErr   error
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (*runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, runnerCall{dir: dir, name: name, args: args})

	if name == "cargo" {
		return f.buildRes, f.buildErr
	}

	return f.runRes, f.runErr
}

func (f *fakeRunner) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.name == "cargo" {
			n++
		}
	}

	return n
}

func (f *fakeRunner) runCalls() []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []runnerCall
	for _, c := range f.calls {
		if c.name != "cargo" {
			out = append(out, c)
		}
	}

	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPipeline sets up a project dir with a manifest and a pipeline
// wired to the fake runner, capturing user output in the buffer.
func newTestPipeline(t *testing.T, fr *fakeRunner, packageName string) (*pipeline, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	p := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(p, []byte("[package]\nname = \""+packageName+"\"\n"), 0o644))

	buf := new(bytes.Buffer)

	return &pipeline{
		root:     dir,
		manifest: p,
		runner:   fr,
		printer:  term.NewPrinter(buf, true),
		logger:   quietLogger(),
	}, buf
}

func ok(stdout, stderr string) *runner.Result {
	return &runner.Result{ExitSuccess: true, Stdout: []byte(stdout), Stderr: []byte(stderr)}
}

func failed(code int, stderr string) *runner.Result {
	return &runner.Result{ExitCode: code, Stderr: []byte(stderr)}
}

// ---------------------------------------------------------------------------
// pipeline
// ---------------------------------------------------------------------------

func TestPipeline_BuildFailureShortCircuitsRun(t *testing.T) {
	fr := &fakeRunner{buildRes: failed(101, "error[E0001]")}
	pipe, buf := newTestPipeline(t, fr, "demo")

	pipe.run(context.Background())

	assert.Equal(t, 1, fr.buildCount())
	assert.Empty(t, fr.runCalls(), "a failed build must never trigger a run")
	assert.Contains(t, buf.String(), "build failed")
	assert.Contains(t, buf.String(), "error[E0001]")
}

func TestPipeline_BuildSuccessRunsLocatedBinary(t *testing.T) {
	fr := &fakeRunner{
		buildRes: ok("", ""),
		runRes:   ok("hello from demo\n", ""),
	}
	pipe, buf := newTestPipeline(t, fr, "demo")

	pipe.run(context.Background())

	runs := fr.runCalls()
	require.Len(t, runs, 1)
	assert.Equal(t, filepath.Join("target", "debug", "demo"), strings.TrimSuffix(runs[0].name, ".exe"))
	assert.Equal(t, pipe.root, runs[0].dir)
	assert.Contains(t, buf.String(), "hello from demo")
	assert.Contains(t, buf.String(), "program executed successfully")
}

func TestPipeline_RunFailureRelaysStderr(t *testing.T) {
	fr := &fakeRunner{
		buildRes: ok("", ""),
		runRes:   failed(1, "panic: boom\n"),
	}
	pipe, buf := newTestPipeline(t, fr, "demo")

	pipe.run(context.Background())

	assert.Contains(t, buf.String(), "panic: boom")
	assert.Contains(t, buf.String(), "program execution failed")
}

func TestPipeline_LocatorFailureAfterSuccessfulBuild(t *testing.T) {
	fr := &fakeRunner{buildRes: ok("", "")}
	pipe, buf := newTestPipeline(t, fr, "demo")

	// Remove the manifest after setup: build succeeds, locate fails.
	require.NoError(t, os.Remove(pipe.manifest))

	pipe.run(context.Background())

	assert.Empty(t, fr.runCalls(), "locator failure must prevent the run stage")
	assert.Contains(t, buf.String(), "cannot locate build output")
}

func TestPipeline_LocatesFreshEachCycle(t *testing.T) {
	fr := &fakeRunner{
		buildRes: ok("", ""),
		runRes:   ok("", ""),
	}
	pipe, _ := newTestPipeline(t, fr, "before")

	pipe.run(context.Background())

	// Rename the package between cycles; the next run must use the new
	// name, not a cached path.
	require.NoError(t, os.WriteFile(pipe.manifest, []byte("[package]\nname = \"after\"\n"), 0o644))

	pipe.run(context.Background())

	runs := fr.runCalls()
	require.Len(t, runs, 2)
	assert.Contains(t, runs[0].name, "before")
	assert.Contains(t, runs[1].name, "after")
}

func TestPipeline_BuildSpawnFailureIsEnvironmentError(t *testing.T) {
	fr := &fakeRunner{buildErr: os.ErrNotExist}
	pipe, buf := newTestPipeline(t, fr, "demo")

	pipe.run(context.Background())

	assert.Empty(t, fr.runCalls())
	assert.Contains(t, buf.String(), "environment error")
}

func TestPipeline_DiffBetweenRuns(t *testing.T) {
	fr := &fakeRunner{
		buildRes: ok("", ""),
		runRes:   ok("count: 1\n", ""),
	}
	pipe, buf := newTestPipeline(t, fr, "demo")
	pipe.diff = true

	pipe.run(context.Background())
	assert.NotContains(t, buf.String(), "output changed", "first run has nothing to diff against")

	fr.mu.Lock()
	fr.runRes = ok("count: 2\n", "")
	fr.mu.Unlock()

	pipe.run(context.Background())

	out := buf.String()
	assert.Contains(t, out, "output changed since last run")
	assert.Contains(t, out, "-count: 1")
	assert.Contains(t, out, "+count: 2")
}

// ---------------------------------------------------------------------------
// runLoop
// ---------------------------------------------------------------------------

// drive pushes the given event times through runLoop with a scripted
// clock and returns once the loop exits.
func drive(t *testing.T, pipe *pipeline, interval time.Duration, at ...time.Time) {
	t.Helper()

	events := make(chan Event, len(at))
	for range at {
		events <- Event{Path: "src/main.rs"}
	}
	close(events)

	// Never fires; the loop exits via the closed events channel.
	errs := make(chan error)

	clock := at
	now := func() time.Time {
		next := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}

		return next
	}

	printer := term.NewPrinter(io.Discard, true)

	err := runLoop(context.Background(), events, errs, NewGate(interval), pipe, printer, quietLogger(), now)
	require.NoError(t, err)
}

func TestRunLoop_CloseGapTriggersOneBuild(t *testing.T) {
	fr := &fakeRunner{buildRes: failed(1, "")}
	pipe, _ := newTestPipeline(t, fr, "demo")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	drive(t, pipe, time.Second, base, base.Add(100*time.Millisecond))

	assert.Equal(t, 1, fr.buildCount())
}

func TestRunLoop_WideGapTriggersTwoBuilds(t *testing.T) {
	fr := &fakeRunner{buildRes: failed(1, "")}
	pipe, _ := newTestPipeline(t, fr, "demo")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	drive(t, pipe, time.Second, base, base.Add(2*time.Second))

	assert.Equal(t, 2, fr.buildCount())
}

func TestRunLoop_ClosedEventsChannelExits(t *testing.T) {
	fr := &fakeRunner{}
	pipe, _ := newTestPipeline(t, fr, "demo")

	drive(t, pipe, time.Second)

	assert.Equal(t, 0, fr.buildCount())
}

func TestRunLoop_WatchErrorDoesNotStopLoop(t *testing.T) {
	fr := &fakeRunner{buildRes: failed(1, "")}
	pipe, _ := newTestPipeline(t, fr, "demo")

	events := make(chan Event, 1)
	errs := make(chan error, 1)

	errs <- assert.AnError
	events <- Event{Path: "src/main.rs"}
	close(events)

	err := runLoop(context.Background(), events, errs, NewGate(time.Second), pipe,
		term.NewPrinter(io.Discard, true), quietLogger(), time.Now)
	require.NoError(t, err)

	assert.Equal(t, 1, fr.buildCount(), "loop must keep receiving after a watch error")
}

func TestRunLoop_ContextCancel(t *testing.T) {
	fr := &fakeRunner{}
	pipe, _ := newTestPipeline(t, fr, "demo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runLoop(ctx, make(chan Event), make(chan error), NewGate(time.Second), pipe,
		term.NewPrinter(io.Discard, true), quietLogger(), time.Now)
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Run (integration)
// ---------------------------------------------------------------------------

func TestRun_InvalidRootFailsSetup(t *testing.T) {
	opts := DefaultOptions()
	opts.Root = "/nonexistent/dir/12345"
	opts.Out = io.Discard
	opts.Logger = quietLogger()

	err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching")
}

func TestRun_FileChangeTriggersPipeline(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"),
		[]byte("[package]\nname = \"demo\"\n"), 0o644))
	source := filepath.Join(dir, "main.rs")
	require.NoError(t, os.WriteFile(source, []byte("fn main() {}"), 0o644))

	fr := &fakeRunner{buildRes: failed(1, "not a real project")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultOptions()
	opts.Root = dir
	opts.Debounce = 10 * time.Millisecond
	opts.Runner = fr
	opts.Out = io.Discard
	opts.Logger = quietLogger()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts)
	}()

	// Let the watch establish, then touch a source file.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(source, []byte("fn main() { println!(); }"), 0o644))

	require.Eventually(t, func() bool {
		return fr.buildCount() >= 1
	}, 5*time.Second, 20*time.Millisecond, "file change should trigger a build")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not shut down")
	}
}

func TestRun_InitialRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"),
		[]byte("[package]\nname = \"demo\"\n"), 0o644))

	fr := &fakeRunner{buildRes: failed(1, "")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultOptions()
	opts.Root = dir
	opts.InitialRun = true
	opts.Runner = fr
	opts.Out = io.Discard
	opts.Logger = quietLogger()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts)
	}()

	require.Eventually(t, func() bool {
		return fr.buildCount() >= 1
	}, 5*time.Second, 20*time.Millisecond, "initial run should build before any change event")

	cancel()
	<-done
}
