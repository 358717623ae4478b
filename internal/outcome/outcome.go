// Package outcome carries tagged stage results between pipeline components,
// so callers can tell "skip this model" from "abort this batch" from
// "abort the run" without inspecting error types.
package outcome

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags the result of one unit of work.
type Kind int

const (
	// Success means the unit completed with every expected input.
	Success Kind = iota
	// Partial means the unit produced output but something was skipped.
	Partial
	// Failed means the unit produced no output; sibling units continue.
	Failed
	// Fatal means the whole run must stop.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of processing one batch or artifact.
type Outcome struct {
	Batch    string
	Kind     Kind
	Reasons  []string
	Duration time.Duration

	// Loader statistics, filled by the mean stage.
	ModelsUsed   []string
	ModelsAbsent []string
	Rows         int
	Dropped      int
	Recovered    int
	Groups       int
}

// OK reports whether the unit produced output.
func (o Outcome) OK() bool {
	return o.Kind == Success || o.Kind == Partial
}

// Reason joins the recorded reasons.
func (o Outcome) Reason() string {
	return strings.Join(o.Reasons, "; ")
}

// Note records a non-fatal problem and downgrades Success to Partial.
func (o *Outcome) Note(format string, args ...any) {
	o.Reasons = append(o.Reasons, fmt.Sprintf(format, args...))
	if o.Kind == Success {
		o.Kind = Partial
	}
}

// Fail marks the unit failed with a reason.
func (o *Outcome) Fail(format string, args ...any) {
	o.Reasons = append(o.Reasons, fmt.Sprintf(format, args...))
	if o.Kind != Fatal {
		o.Kind = Failed
	}
}

// Report aggregates outcomes in submission order.
type Report struct {
	Outcomes []Outcome
}

// Succeeded counts units that produced output.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// FailedCount counts units that produced no output.
func (r Report) FailedCount() int {
	return len(r.Outcomes) - r.Succeeded()
}

// AnySucceeded reports whether at least one unit produced output.
func (r Report) AnySucceeded() bool {
	return r.Succeeded() > 0
}
