// Package manifest resolves the build output binary for a Rust project
// by reading its Cargo.toml. The manifest is scanned line by line for
// the package name declaration rather than parsed as TOML; the first
// `name = ...` line wins, with no awareness of sections or comments.
// This keeps the lookup dependency-free but means unconventionally
// formatted manifests can be mis-parsed.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Sentinel errors for the locator failure taxonomy.
var (
	// ErrNotFound indicates the manifest file could not be read.
	ErrNotFound = errors.New("manifest not found")

	// ErrMalformed indicates the manifest has no usable name declaration.
	ErrMalformed = errors.New("manifest malformed")
)

// DefaultName is the conventional manifest file name in a project root.
const DefaultName = "Cargo.toml"

// Locate reads the manifest at manifestPath and returns the path of the
// debug build output, relative to the project root (e.g.
// "target/debug/foo", with ".exe" appended on Windows).
//
// The lookup is performed fresh on every call so that a renamed package
// is picked up without restarting the watcher.
func Locate(manifestPath string) (string, error) {
	name, err := PackageName(manifestPath)
	if err != nil {
		return "", err
	}

	return binaryPath(name, runtime.GOOS), nil
}

// PackageName extracts the declared package name from the manifest at
// manifestPath. Errors wrap ErrNotFound when the file cannot be read and
// ErrMalformed when no name declaration is present or its value is empty.
func PackageName(manifestPath string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading %q: %v", ErrNotFound, manifestPath, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)

		rest, ok := strings.CutPrefix(trimmed, "name")
		if !ok {
			continue
		}

		rest = strings.TrimSpace(rest)

		value, ok := strings.CutPrefix(rest, "=")
		if !ok {
			continue
		}

		name := strings.Trim(strings.TrimSpace(value), `"'`)
		if name == "" {
			return "", fmt.Errorf("%w: empty name value in %q", ErrMalformed, manifestPath)
		}

		return name, nil
	}

	return "", fmt.Errorf("%w: no name declaration in %q", ErrMalformed, manifestPath)
}

// binaryPath composes the debug build output path for a package name.
// The goos parameter selects the platform suffix behaviour.
func binaryPath(name, goos string) string {
	p := filepath.Join("target", "debug", name)

	if goos == "windows" {
		p += ".exe"
	}

	return p
}
