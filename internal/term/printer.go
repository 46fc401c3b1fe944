// Package term is the user-facing presentation layer for the watch
// loop. It relays captured process output verbatim and renders status
// lines, optionally colorized via lipgloss.
package term

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Printer writes status lines and relayed process output to a single
// writer. It is not safe for concurrent use; the control loop is the
// only caller.
type Printer struct {
	out     io.Writer
	noColor bool
}

// NewPrinter creates a Printer writing to out. When noColor is true all
// styling is suppressed and lines are printed plain.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	return &Printer{out: out, noColor: noColor}
}

// render applies style unless colors are disabled.
func (p *Printer) render(style lipgloss.Style, s string) string {
	if p.noColor {
		return s
	}

	return style.Render(s)
}

// statusf prints a timestamped status line.
func (p *Printer) statusf(style lipgloss.Style, format string, args ...any) {
	stamp := p.render(dimStyle, time.Now().Format("15:04:05"))
	fmt.Fprintf(p.out, "[%s] %s\n", stamp, p.render(style, fmt.Sprintf(format, args...)))
}

// Watching prints the startup banner.
func (p *Printer) Watching(root string, debounce time.Duration) {
	p.statusf(infoStyle, "watching %s (debounce=%s), press Ctrl+C to exit", root, debounce)
}

// ChangeDetected announces an accepted change event.
func (p *Printer) ChangeDetected(path string) {
	if path == "" {
		p.statusf(infoStyle, "change detected, rebuilding...")
		return
	}

	p.statusf(infoStyle, "change detected (%s), rebuilding...", path)
}

// BuildFailed relays the build tool's stderr and reports the failure.
func (p *Printer) BuildFailed(stderr []byte) {
	p.statusf(errorStyle, "build failed")
	p.Relay(stderr)
}

// RunSucceeded relays the program's stdout, then confirms success.
func (p *Printer) RunSucceeded(stdout []byte) {
	p.Relay(stdout)
	p.statusf(successStyle, "program executed successfully")
}

// RunFailed relays the program's stderr, then reports the failure.
// Output precedes the status line.
func (p *Printer) RunFailed(stderr []byte) {
	p.Relay(stderr)
	p.statusf(errorStyle, "program execution failed")
}

// LocateFailed reports a locator error. The build just succeeded, so
// this points at a mismatch between the declared package name and the
// actual build output rather than broken user code.
func (p *Printer) LocateFailed(err error) {
	p.statusf(errorStyle, "cannot locate build output: %v", err)
}

// SpawnFailed reports that a process could not be launched at all.
// This is an environment problem, not a failure of the user's code.
func (p *Printer) SpawnFailed(err error) {
	p.statusf(errorStyle, "environment error: %v", err)
}

// Diff prints a unified diff of the program output between runs.
func (p *Printer) Diff(diff string) {
	fmt.Fprintln(p.out, p.render(warnStyle, "output changed since last run:"))
	fmt.Fprint(p.out, diff)
}

// Waiting announces the return to the idle state.
func (p *Printer) Waiting() {
	p.statusf(dimStyle, "continuing to watch for changes...")
}

// Relay writes captured process output verbatim, ensuring a trailing
// newline so the following status line starts at column zero.
func (p *Printer) Relay(b []byte) {
	if len(b) == 0 {
		return
	}

	p.out.Write(b)

	if b[len(b)-1] != '\n' {
		fmt.Fprintln(p.out)
	}
}
