package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahmudsudo/cargomon/internal/config"
	"github.com/mahmudsudo/cargomon/internal/logging"
	"github.com/mahmudsudo/cargomon/internal/watch"
)

type watchOptions struct {
	debounce   time.Duration
	manifest   string
	initialRun bool
	diffOutput bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a project for changes and rebuild-and-run it",
		Long: `Watch monitors a Rust project directory for file changes and, after
a debounce window, rebuilds the project with "cargo build". When the
build succeeds the resulting executable is located via the Cargo.toml
package name and run, with its output relayed to the terminal.

File changes are debounced to avoid rapid rebuilds: a single save often
produces several closely spaced notifications. A failed build prints
the compiler's error output and the loop returns to waiting.

The executable path is re-derived from the manifest on every cycle, so
renaming the package takes effect without restarting the watcher.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			return runWatch(cmd.Context(), cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.debounce, "debounce", 2*time.Second, "minimum interval between accepted change events")
	f.StringVar(&opts.manifest, "manifest", "", "path to Cargo.toml (default: <path>/Cargo.toml)")
	f.BoolVar(&opts.initialRun, "initial-run", false, "build and run once on startup, before the first change")
	f.BoolVar(&opts.diffOutput, "diff", false, "show a unified diff when the program output changes between runs")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, root string, opts *watchOptions) error {
	cfg := config.FromContext(ctx)

	watchOpts := watch.DefaultOptions()
	watchOpts.Root = root
	watchOpts.Manifest = opts.manifest
	watchOpts.Debounce = opts.debounce
	watchOpts.InitialRun = opts.initialRun
	watchOpts.DiffOutput = opts.diffOutput
	watchOpts.Logger = logging.FromContext(ctx)
	watchOpts.Out = cmd.OutOrStdout()
	watchOpts.NoColor = cfg.NoColor

	return watch.Run(ctx, watchOpts)
}
