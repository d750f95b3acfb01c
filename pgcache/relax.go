package pgcache

import "runtime"

// relaxer is a cooperative-yield helper that, every iterations calls to
// Relax, yields to the Go scheduler so a long-running row-decode loop
// doesn't starve co-resident goroutines on a busy GOMAXPROCS=1 deployment.
// When iterations is 0, Relax is a no-op.
//
// Go's goroutines are preemptible, so this is not load-bearing for
// correctness the way it is for a cooperative coroutine scheduler; it is
// kept so the relax-interval adaptation formula below has an effect
// regardless of scheduling model.
type relaxer struct {
	iterations int
	count      int
}

// newRelaxer constructs a relaxer bound to iterations.
func newRelaxer(iterations int) *relaxer {
	return &relaxer{iterations: iterations}
}

// Relax increments the internal counter and yields once it reaches
// iterations, then resets.
func (r *relaxer) Relax() {
	if r.iterations <= 0 {
		return
	}
	r.count++
	if r.count >= r.iterations {
		r.count = 0
		runtime.Gosched()
	}
}

const (
	// cpuRelaxThresholdMS is the cumulative parse-phase duration, in
	// milliseconds, above which the next update's relax interval is
	// recomputed.
	cpuRelaxThresholdMS = 10.0
	// cpuRelaxIntervalMS is the divisor in the adaptation formula:
	// relax_iterations = changes / (parse_elapsed_ms / cpuRelaxIntervalMS).
	cpuRelaxIntervalMS = 2.0
)

// adaptRelaxIterations implements the relax-interval adaptation formula:
// after a parse phase of duration d > 10ms with n changes, relax_iterations
// = floor(n / (d_ms / 2)). If the threshold isn't exceeded, the previous
// value is returned unchanged.
func adaptRelaxIterations(previous int, changes int, parseElapsedMS float64) int {
	if changes == 0 || parseElapsedMS <= cpuRelaxThresholdMS {
		return previous
	}
	return int(float64(changes) / (parseElapsedMS / cpuRelaxIntervalMS))
}
