package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEvaluation is returned when an oracle response violates the
// evaluation contract.
var ErrInvalidEvaluation = errors.New("invalid evaluation")

type Level string

const (
	LevelJunior  Level = "Junior"
	LevelMiddle  Level = "Middle"
	LevelUnknown Level = "Unknown"
)

// Rank is the S-D scout grade. S is best.
type Rank string

const (
	RankS Rank = "S"
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
)

var ranks = map[Rank]struct{}{RankS: {}, RankA: {}, RankB: {}, RankC: {}, RankD: {}}

// Valid reports whether r is one of S, A, B, C or D.
func (r Rank) Valid() bool {
	_, ok := ranks[r]
	return ok
}

// Interest is the candidate's estimated appetite for a job change.
type Interest string

const (
	InterestA Interest = "A"
	InterestB Interest = "B"
	InterestC Interest = "C"
)

type Decision string

const (
	DecisionScout Decision = "SCOUT"
	DecisionSkip  Decision = "SKIP"
	DecisionError Decision = "ERROR"
)

// Decide maps a rank onto the scout decision.
func Decide(r Rank) Decision {
	switch r {
	case RankS, RankA, RankB:
		return DecisionScout
	default:
		return DecisionSkip
	}
}

// Evaluation is the oracle verdict for one candidate.
type Evaluation struct {
	Level          Level    `json:"level" mapstructure:"level"`
	Rank           Rank     `json:"evaluation" mapstructure:"evaluation"`
	Reason         string   `json:"reason" mapstructure:"reason"`
	InterestLevel  Interest `json:"interestLevel" mapstructure:"interestLevel"`
	InterestReason string   `json:"interestReason" mapstructure:"interestReason"`
	Strengths      string   `json:"strengths,omitempty" mapstructure:"strengths"`
	Aspirations    string   `json:"aspirations,omitempty" mapstructure:"aspirations"`
	ScoutTitle     string   `json:"scoutTitle,omitempty" mapstructure:"scoutTitle"`
	TitleKeyword   string   `json:"titleKeyword,omitempty" mapstructure:"titleKeyword"`
	ScoutMessage   string   `json:"scoutMessage,omitempty" mapstructure:"scoutMessage"`

	Raw string `json:"-" mapstructure:"-"`
}

func (e *Evaluation) Decision() Decision {
	if e == nil {
		return DecisionError
	}
	return Decide(e.Rank)
}

// Normalize trims text fields and enforces that scout fields exist only for
// scouting ranks. Scout fields of C and D evaluations are dropped.
func (e *Evaluation) Normalize() error {
	if e == nil {
		return fmt.Errorf("%w: empty evaluation", ErrInvalidEvaluation)
	}

	e.Rank = Rank(strings.ToUpper(strings.TrimSpace(string(e.Rank))))
	if !e.Rank.Valid() {
		return fmt.Errorf("%w: unknown rank %q", ErrInvalidEvaluation, e.Rank)
	}

	switch Level(strings.TrimSpace(string(e.Level))) {
	case LevelJunior, LevelMiddle:
		e.Level = Level(strings.TrimSpace(string(e.Level)))
	default:
		e.Level = LevelUnknown
	}

	e.Reason = strings.TrimSpace(e.Reason)
	e.InterestReason = strings.TrimSpace(e.InterestReason)
	e.Strengths = strings.TrimSpace(e.Strengths)
	e.Aspirations = strings.TrimSpace(e.Aspirations)
	e.ScoutTitle = strings.TrimSpace(e.ScoutTitle)
	e.TitleKeyword = strings.TrimSpace(e.TitleKeyword)
	e.ScoutMessage = strings.TrimSpace(e.ScoutMessage)

	if Decide(e.Rank) == DecisionSkip {
		e.ScoutTitle, e.TitleKeyword, e.ScoutMessage = "", "", ""
		return nil
	}

	var missing []string
	if e.ScoutTitle == "" {
		missing = append(missing, "scoutTitle")
	}
	if e.TitleKeyword == "" {
		missing = append(missing, "titleKeyword")
	}
	if e.ScoutMessage == "" {
		missing = append(missing, "scoutMessage")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: rank %s requires %s", ErrInvalidEvaluation, e.Rank, strings.Join(missing, ", "))
	}
	return nil
}

// ClassLabel is the hiring class shown in the ledger.
func (e *Evaluation) ClassLabel() string {
	if e != nil && e.Level == LevelJunior {
		return "PdM（メンバー）"
	}
	return "PdM（ミドル）"
}

// Oracle scores a candidate profile.
type Oracle interface {
	Evaluate(ctx context.Context, profile string) (*Evaluation, error)
}

// OracleError wraps any failure of the evaluation oracle.
type OracleError struct {
	Provider string
	Err      error
}

func (e *OracleError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("evaluation oracle: %v", e.Err)
	}
	return fmt.Sprintf("evaluation oracle %s: %v", e.Provider, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }
