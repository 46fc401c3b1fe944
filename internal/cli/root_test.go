package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand is a test helper that runs the CLI with the given args and
// captures both stdout and stderr.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()

	return outBuf.String(), errBuf.String(), err
}

// ---------------------------------------------------------------------------
// Help output
// ---------------------------------------------------------------------------

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)

	// Must list every subcommand.
	for _, sub := range []string{"watch", "doctor", "config", "version", "completion"} {
		assert.Contains(t, stdout, sub, "help should mention %q subcommand", sub)
	}

	// Must list global flags.
	for _, flag := range []string{"--config", "--log-level", "--log-format", "--no-color", "--quiet"} {
		assert.Contains(t, stdout, flag, "help should mention %q flag", flag)
	}
}

func TestWatchCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("watch", "--help")
	require.NoError(t, err)

	for _, flag := range []string{"--debounce", "--manifest", "--initial-run", "--diff"} {
		assert.Contains(t, stdout, flag)
	}
}

// ---------------------------------------------------------------------------
// Unknown flags → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_UnknownFlag(t *testing.T) {
	_, _, err := executeCommand("--nonexistent")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

// ---------------------------------------------------------------------------
// SilenceErrors – cobra must not print errors itself
// ---------------------------------------------------------------------------

func TestRootCommand_SilenceErrors(t *testing.T) {
	_, stderr, err := executeCommand("--nonexistent")
	require.Error(t, err)
	assert.Empty(t, stderr, "cobra should not print errors to stderr (SilenceErrors)")
}

// ---------------------------------------------------------------------------
// Invalid --config → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, _, err := executeCommand("--config", "/nonexistent/path.yaml", "doctor", ".")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

// ---------------------------------------------------------------------------
// Invalid log settings → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := executeCommand("--log-level", "trace", "doctor", ".")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, _, err := executeCommand("--log-format", "xml", "doctor", ".")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

// ---------------------------------------------------------------------------
// Watch setup failure → exit code 1
// ---------------------------------------------------------------------------

func TestWatchCommand_InvalidRoot(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"watch", "/nonexistent/dir/12345"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching")
}

// ---------------------------------------------------------------------------
// ExitError
// ---------------------------------------------------------------------------

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 3, Err: assert.AnError}
	assert.Equal(t, assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)

	bare := &ExitError{Code: 3}
	assert.Equal(t, "exit code 3", bare.Error())
}
