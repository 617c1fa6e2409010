package probe

import "context"

// Result classifies the outcome of a single health probe.
type Result int

const (
	// Down means the probe actively failed (connection refused, timeout).
	Down Result = iota
	// Inconclusive means the probe reached something but could not prove
	// the server is up (e.g. an unexpected HTTP status). The chain moves on.
	Inconclusive
	// Up means the server answered in a way that proves it is running.
	Up
)

func (r Result) String() string {
	switch r {
	case Up:
		return "up"
	case Inconclusive:
		return "inconclusive"
	default:
		return "down"
	}
}

// Probe is a strategy that determines whether the automation server is
// accepting requests. Implementations must bound their own timeouts and
// must not propagate transport errors; they fold them into a Result.
// It must be safe for concurrent use.
type Probe interface {
	// Check runs the probe once and classifies the outcome.
	Check(ctx context.Context) Result
	// Describe returns a human-readable description of the probe.
	Describe() string
}

// Chain folds an ordered probe list into a single running/not-running
// answer. The first Up wins and its probe description is returned. A Down
// or Inconclusive result is never final on its own; it only means the next
// probe in the list gets a chance.
func Chain(ctx context.Context, probes []Probe) (bool, string) {
	for _, p := range probes {
		if p.Check(ctx) == Up {
			return true, p.Describe()
		}
	}
	return false, ""
}
