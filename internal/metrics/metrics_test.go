package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunCounters(t *testing.T) {
	r := NewRun()
	r.Candidate("pickup", "scout")
	r.Candidate("pickup", "scout")
	r.Candidate("unrated", "error")
	r.Submission("pickup", "sent")
	r.LedgerFailure("webapp")

	if got := testutil.ToFloat64(r.candidates.WithLabelValues("pickup", "scout")); got != 2 {
		t.Fatalf("expected 2 pickup scouts, got %v", got)
	}
	if got := testutil.ToFloat64(r.candidates.WithLabelValues("unrated", "error")); got != 1 {
		t.Fatalf("expected 1 unrated error, got %v", got)
	}
	if got := testutil.ToFloat64(r.submissions.WithLabelValues("pickup", "sent")); got != 1 {
		t.Fatalf("expected 1 sent submission, got %v", got)
	}
	if got := testutil.ToFloat64(r.ledgerFailures.WithLabelValues("webapp")); got != 1 {
		t.Fatalf("expected 1 ledger failure, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRun()
	r.Candidate("pickup", "skip")
	r.ModeDuration("pickup", 1500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "scout.prom")
	if err := r.WriteTextfile(path, time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`scout_responder_candidates_total{mode="pickup",outcome="skip"} 1`,
		`scout_responder_mode_duration_seconds{mode="pickup"} 1.5`,
		`scout_responder_last_run_timestamp_seconds 1.7e+09`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in textfile:\n%s", want, text)
		}
	}
}

func TestNilRunIsNoop(t *testing.T) {
	var r *Run
	r.Candidate("pickup", "scout")
	r.Submission("pickup", "sent")
	r.LedgerFailure("csv")
	r.ModeDuration("pickup", time.Second)
	if err := r.WriteTextfile("ignored", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
