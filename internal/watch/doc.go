// Package watch implements cargomon's change-watch build loop. It
// monitors a project tree for file changes, coalesces bursts of events
// through a debounce gate, and on each accepted change rebuilds the
// project and runs the resulting executable, relaying its output.
package watch
