package scout

import "fmt"

// State is a step of the submission flow.
type State string

const (
	StateIdle           State = "idle"
	StateTriggered      State = "triggered"
	StateJobSelecting   State = "job_selecting"
	StateFormReady      State = "form_ready"
	StateFilled         State = "filled"
	StateConfirmed      State = "confirmed"
	StateSent           State = "sent"
	StateDrafted        State = "drafted"
	StateFailed         State = "failed"
	StateAlreadyScouted State = "already_scouted"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateSent, StateDrafted, StateFailed, StateAlreadyScouted:
		return true
	default:
		return false
	}
}

// Status labels written to the ledger.
const (
	StatusSent           = "送信完了"
	StatusDrafted        = "下書き(DryRun)"
	StatusAlreadyScouted = "送信済"
	StatusFailed         = "未送信"
	StatusSkipped        = "対象外"
	StatusError          = "エラー"
)

// Status is the ledger label of a terminal state.
func (s State) Status() string {
	switch s {
	case StateSent:
		return StatusSent
	case StateDrafted:
		return StatusDrafted
	case StateAlreadyScouted:
		return StatusAlreadyScouted
	default:
		return StatusFailed
	}
}

var transitions = map[State][]State{
	StateIdle:         {StateTriggered, StateAlreadyScouted, StateFailed},
	StateTriggered:    {StateJobSelecting, StateFormReady, StateFailed},
	StateJobSelecting: {StateFormReady, StateFailed},
	StateFormReady:    {StateFilled, StateFailed},
	StateFilled:       {StateConfirmed, StateFailed},
	StateConfirmed:    {StateSent, StateDrafted, StateFailed},
}

// CanTransition reports whether to directly follows from.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Draft is the composed message to submit.
type Draft struct {
	Title string
	Body  string
}

// Submission is the outcome of one run of the state machine.
type Submission struct {
	State   State
	History []State
	// Job is the strategy that matched the target job row, if any.
	Job string
	// Dump is the diagnostics path written on failure.
	Dump string
	Err  error
}

func newSubmission() *Submission {
	return &Submission{State: StateIdle, History: []State{StateIdle}}
}

func (s *Submission) advance(next State) {
	if !CanTransition(s.State, next) {
		s.Err = fmt.Errorf("invalid transition %s -> %s", s.State, next)
		next = StateFailed
	}
	s.State = next
	s.History = append(s.History, next)
}

func (s *Submission) fail(err error) {
	s.Err = err
	s.advance(StateFailed)
}
