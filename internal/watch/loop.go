package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mahmudsudo/cargomon/internal/manifest"
	"github.com/mahmudsudo/cargomon/internal/runner"
	"github.com/mahmudsudo/cargomon/internal/term"
)

// Options configures the watch loop.
type Options struct {
	// Root is the directory tree to watch and the working directory for
	// the build tool and the built executable.
	Root string

	// Manifest is the path to the project manifest. Empty means
	// Cargo.toml under Root.
	Manifest string

	// Debounce is the minimum interval between accepted change events.
	Debounce time.Duration

	// InitialRun triggers one build-and-run on startup, before the
	// first change event.
	InitialRun bool

	// DiffOutput prints a unified diff when the program's stdout
	// differs from the previous successful run.
	DiffOutput bool

	// Runner executes the build tool and the built program.
	Runner runner.Runner

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing output.
	Out io.Writer

	// NoColor disables colorized output.
	NoColor bool
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Root:     ".",
		Debounce: 2 * time.Second,
		Runner:   runner.New(),
		Logger:   slog.Default(),
		Out:      os.Stdout,
	}
}

// Run establishes the file watch and drives the control loop until the
// context is cancelled, a SIGINT/SIGTERM arrives, or the event channel
// closes. Watch setup failure aborts before the loop starts.
func Run(ctx context.Context, opts Options) error {
	if opts.Root == "" {
		opts.Root = "."
	}

	if opts.Manifest == "" {
		opts.Manifest = filepath.Join(opts.Root, manifest.DefaultName)
	}

	if opts.Runner == nil {
		opts.Runner = runner.New()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	w, err := NewWatcher(opts.Root)
	if err != nil {
		return err
	}
	defer w.Close()

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := term.NewPrinter(opts.Out, opts.NoColor)
	printer.Watching(opts.Root, opts.Debounce)

	pipe := &pipeline{
		root:     opts.Root,
		manifest: opts.Manifest,
		runner:   opts.Runner,
		printer:  printer,
		logger:   opts.Logger,
		diff:     opts.DiffOutput,
	}

	if opts.InitialRun {
		pipe.run(sigCtx)
		printer.Waiting()
	}

	return runLoop(sigCtx, w.Events(), w.Errors(), NewGate(opts.Debounce), pipe, printer, opts.Logger, time.Now)
}

// runLoop is the single-threaded control loop. It alternates between a
// blocking receive for the next change event and blocking execution of
// the pipeline; events arriving mid-pipeline are observed only after
// the loop cycles back and are gated at the then-current clock time.
func runLoop(
	ctx context.Context,
	events <-chan Event,
	errs <-chan error,
	gate *Gate,
	pipe *pipeline,
	printer *term.Printer,
	logger *slog.Logger,
	now func() time.Time,
) error {
	for {
		select {
		case <-ctx.Done():
			logger.Debug("shutting down watch loop")
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if !gate.Accept(now()) {
				logger.Debug("event debounced", slog.String("path", ev.Path))
				continue
			}

			printer.ChangeDetected(ev.Path)
			pipe.run(ctx)
			printer.Waiting()

		case watchErr, ok := <-errs:
			if !ok {
				return nil
			}

			logger.Error("watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// pipeline executes one build-then-run cycle per accepted event. At
// most one cycle is in flight at a time.
type pipeline struct {
	root     string
	manifest string
	runner   runner.Runner
	printer  *term.Printer
	logger   *slog.Logger
	diff     bool

	// prevStdout is the stdout of the last successful run, kept only
	// when output diffing is enabled.
	prevStdout []byte
	havePrev   bool
}

// run performs the build stage and, on success, locates and runs the
// built executable. Every per-cycle error is converted to user-visible
// output here; nothing propagates out of the loop.
func (p *pipeline) run(ctx context.Context) {
	build, err := p.runner.Run(ctx, p.root, "cargo", "build")
	if err != nil {
		p.printer.SpawnFailed(err)
		p.logger.Error("cannot launch build tool", slog.String("error", err.Error()))

		return
	}

	if !build.ExitSuccess {
		p.printer.BuildFailed(build.Stderr)
		return
	}

	// Resolved fresh each cycle so manifest edits take effect without
	// restarting the loop.
	bin, err := manifest.Locate(p.manifest)
	if err != nil {
		p.printer.LocateFailed(err)
		p.logger.Error("build succeeded but output could not be located",
			slog.String("manifest", p.manifest),
			slog.String("error", err.Error()),
		)

		return
	}

	// The path is relative to the project root; the runner executes
	// with the root as working directory.
	run, err := p.runner.Run(ctx, p.root, bin)
	if err != nil {
		p.printer.SpawnFailed(err)
		p.logger.Error("cannot launch built executable",
			slog.String("path", bin),
			slog.String("error", err.Error()),
		)

		return
	}

	if !run.ExitSuccess {
		p.printer.RunFailed(run.Stderr)
		return
	}

	p.printer.RunSucceeded(run.Stdout)
	p.reportDiff(run.Stdout)
}

// reportDiff prints a unified diff against the previous successful
// run's stdout when output diffing is enabled.
func (p *pipeline) reportDiff(stdout []byte) {
	if !p.diff {
		return
	}

	if p.havePrev {
		diff, err := OutputDiff(p.prevStdout, stdout)
		if err != nil {
			p.logger.Warn("output diff failed", slog.String("error", err.Error()))
		} else if diff != "" {
			p.printer.Diff(diff)
		}
	}

	p.prevStdout = append([]byte(nil), stdout...)
	p.havePrev = true
}
