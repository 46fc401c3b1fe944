package watch

import "time"

// Accept reports whether an event observed at now should trigger a
// pipeline run, given the time of the last accepted event. The first
// event is always accepted: a zero lastAccepted means no prior event.
//
// Pure function of its inputs; the caller owns and threads the state.
func Accept(now, lastAccepted time.Time, interval time.Duration) bool {
	if lastAccepted.IsZero() {
		return true
	}

	return now.Sub(lastAccepted) >= interval
}

// Gate threads the debounce timestamp for the control loop. A single
// file save typically produces several closely spaced notifications
// (temp file creation, rename, content write); the gate collapses such
// a burst into one accepted trigger.
type Gate struct {
	interval     time.Duration
	lastAccepted time.Time
}

// NewGate creates a Gate with the given minimum interval between
// accepted events.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Accept evaluates an event at now and, exactly when it is accepted,
// records now as the new last-accepted timestamp.
func (g *Gate) Accept(now time.Time) bool {
	if !Accept(now, g.lastAccepted, g.interval) {
		return false
	}

	g.lastAccepted = now

	return true
}
