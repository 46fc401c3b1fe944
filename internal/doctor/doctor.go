// Package doctor runs environment checks for cargomon: the build tool
// must be on PATH and recent enough, and the project manifest must be
// readable and well-formed. It diagnoses the environment/configuration
// class of failures before the watch loop ever hits them.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mahmudsudo/cargomon/internal/manifest"
	"github.com/mahmudsudo/cargomon/internal/runner"
)

// MinBuildToolVersion is the oldest cargo release cargomon is tested
// against (2021 edition support).
const MinBuildToolVersion = "1.56.0"

// Status classifies a check outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Failed reports whether the result indicates a hard failure.
func (r Result) Failed() bool { return r.Status == StatusError }

// Doctor runs the check suite against a project root.
type Doctor struct {
	root     string
	runner   runner.Runner
	lookPath func(string) (string, error)
}

// New creates a Doctor for the project at root.
func New(root string) *Doctor {
	return &Doctor{
		root:     root,
		runner:   runner.New(),
		lookPath: exec.LookPath,
	}
}

// Run executes all checks and returns their results in a fixed order.
func (d *Doctor) Run(ctx context.Context) []Result {
	return []Result{
		d.checkBuildTool(ctx),
		d.checkBuildToolVersion(ctx),
		d.checkManifest(),
	}
}

// AnyFailed reports whether any result is a hard failure.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if r.Failed() {
			return true
		}
	}

	return false
}

// checkBuildTool verifies cargo is on PATH.
func (d *Doctor) checkBuildTool(_ context.Context) Result {
	path, err := d.lookPath("cargo")
	if err != nil {
		return Result{
			Name:    "build-tool",
			Status:  StatusError,
			Message: "cargo not found on PATH",
		}
	}

	return Result{
		Name:    "build-tool",
		Status:  StatusOK,
		Message: fmt.Sprintf("cargo found at %s", path),
	}
}

// checkBuildToolVersion runs `cargo --version` and compares the
// reported version against MinBuildToolVersion.
func (d *Doctor) checkBuildToolVersion(ctx context.Context) Result {
	res, err := d.runner.Run(ctx, d.root, "cargo", "--version")
	if err != nil || !res.ExitSuccess {
		return Result{
			Name:    "build-tool-version",
			Status:  StatusWarning,
			Message: "could not determine cargo version",
		}
	}

	version, err := parseToolVersion(string(res.Stdout))
	if err != nil {
		return Result{
			Name:    "build-tool-version",
			Status:  StatusWarning,
			Message: fmt.Sprintf("unrecognized cargo version output: %v", err),
		}
	}

	constraint, err := semver.NewConstraint(">= " + MinBuildToolVersion)
	if err != nil {
		return Result{
			Name:    "build-tool-version",
			Status:  StatusWarning,
			Message: fmt.Sprintf("invalid version constraint: %v", err),
		}
	}

	if !constraint.Check(version) {
		return Result{
			Name:    "build-tool-version",
			Status:  StatusError,
			Message: fmt.Sprintf("cargo %s is older than required %s", version, MinBuildToolVersion),
		}
	}

	return Result{
		Name:    "build-tool-version",
		Status:  StatusOK,
		Message: fmt.Sprintf("cargo %s (>= %s)", version, MinBuildToolVersion),
	}
}

// checkManifest verifies the manifest is readable and declares a
// package name.
func (d *Doctor) checkManifest() Result {
	path := filepath.Join(d.root, manifest.DefaultName)

	name, err := manifest.PackageName(path)
	if err != nil {
		return Result{
			Name:    "manifest",
			Status:  StatusError,
			Message: err.Error(),
		}
	}

	return Result{
		Name:    "manifest",
		Status:  StatusOK,
		Message: fmt.Sprintf("package %q declared in %s", name, manifest.DefaultName),
	}
}

// parseToolVersion extracts the semantic version from `cargo --version`
// output, e.g. "cargo 1.75.0 (1d8b05cdd 2023-11-20)".
func parseToolVersion(output string) (*semver.Version, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return nil, fmt.Errorf("unexpected output %q", strings.TrimSpace(output))
	}

	version, err := semver.NewVersion(fields[1])
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", fields[1], err)
	}

	return version, nil
}
