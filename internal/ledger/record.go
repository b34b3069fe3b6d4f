package ledger

import (
	"fmt"
	"time"

	"github.com/spigell/scout-responder/internal/ai"
)

// JST is the fixed offset used for every timestamp in the ledger.
var JST = time.FixedZone("JST", 9*60*60)

const (
	timestampLayout = "2006/1/2 15:04:05"
	dateLayout      = "2006/01/02"

	eventScoutSent = "scout_sent"
	DefaultMedia   = "ビズリーチ"
	DefaultSender  = "ゆーや"
)

// Record is the primary event: one per processed candidate.
type Record struct {
	URL         string `json:"url"`
	Rank        string `json:"evaluation"`
	Decision    string `json:"decision"`
	Class       string `json:"class"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Timestamp   string `json:"timestamp"`
	Profile     string `json:"profile"`
	Strengths   string `json:"strengths"`
	Aspirations string `json:"aspirations"`
}

// NewRecord fills a record from an evaluation.
func NewRecord(url string, ev *ai.Evaluation, status, title, body, profile string, at time.Time) Record {
	rec := Record{
		URL:       url,
		Status:    status,
		Title:     title,
		Body:      body,
		Profile:   profile,
		Timestamp: Timestamp(at),
	}
	if ev != nil {
		rec.Rank = string(ev.Rank)
		rec.Decision = DecisionReason(ev)
		rec.Class = ev.ClassLabel()
		rec.Strengths = ev.Strengths
		rec.Aspirations = ev.Aspirations
	}
	return rec
}

// DecisionReason renders "[rank] (Interest:X) reason".
func DecisionReason(ev *ai.Evaluation) string {
	return fmt.Sprintf("[%s] (Interest:%s) %s", ev.Rank, ev.InterestLevel, ev.Reason)
}

// ScoutSent is the secondary event emitted after a live submission.
type ScoutSent struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Media    string `json:"media"`
	Position string `json:"position"`
	Sender   string `json:"sender"`
	Date     string `json:"date"`
	Week     string `json:"week"`
}

func Timestamp(t time.Time) string {
	return t.In(JST).Format(timestampLayout)
}

func Date(t time.Time) string {
	return t.In(JST).Format(dateLayout)
}

// WeekLabel renders "M月N週" where N counts 7-day blocks of the JST month.
func WeekLabel(t time.Time) string {
	jst := t.In(JST)
	week := (jst.Day() + 6) / 7
	return fmt.Sprintf("%d月%d週", int(jst.Month()), week)
}
