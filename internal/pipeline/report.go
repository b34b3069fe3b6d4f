package pipeline

import (
	"fmt"
	"time"

	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/scout"
)

// Result is the outcome of one candidate row.
type Result struct {
	Index      int
	URL        string
	Evaluation *ai.Evaluation
	Decision   ai.Decision
	Status     string
	Submission *scout.Submission
	// Opened is true once the detail view appeared.
	Opened bool
	// Closed is true when the close control was clicked.
	Closed bool
	// RankC is true when the rank-C control was clicked on the row.
	RankC bool
	Err   error
}

// Failed reports a candidate-level error or a failed submission.
func (r Result) Failed() bool {
	if r.Err != nil {
		return true
	}
	return r.Submission != nil && r.Submission.State == scout.StateFailed
}

// ModeReport summarizes one mode run.
type ModeReport struct {
	Mode      bizreach.Mode
	ListFound bool
	Total     int
	Results   []Result
	Duration  time.Duration
	// Err is the run-level error that stopped the mode early.
	Err error
}

func (m *ModeReport) Processed() int { return len(m.Results) }

func (m *ModeReport) Errors() int {
	n := 0
	for _, r := range m.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Count returns how many candidates got decision d.
func (m *ModeReport) Count(d ai.Decision) int {
	n := 0
	for _, r := range m.Results {
		if r.Decision == d {
			n++
		}
	}
	return n
}

func (m *ModeReport) Summary() string {
	return fmt.Sprintf("processed %d of %d, %d errors", m.Processed(), m.Total, m.Errors())
}

// Report collects the mode reports of one Run call in execution order.
type Report struct {
	Modes []*ModeReport
}

// Mode returns the report of mode m, or nil when it did not run.
func (r *Report) Mode(m bizreach.Mode) *ModeReport {
	for _, mr := range r.Modes {
		if mr.Mode == m {
			return mr
		}
	}
	return nil
}

func (r *Report) Errors() int {
	n := 0
	for _, mr := range r.Modes {
		n += mr.Errors()
	}
	return n
}

// Failed reports whether any mode stopped on a run-level error.
func (r *Report) Failed() bool {
	for _, mr := range r.Modes {
		if mr.Err != nil {
			return true
		}
	}
	return false
}
