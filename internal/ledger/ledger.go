// Package ledger records every candidate decision. Delivery is best-effort:
// failures are logged and counted, never returned to the pipeline.
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink receives JSON events.
type Sink interface {
	Post(ctx context.Context, event any) error
}

// FailureCounter observes delivery failures per destination.
type FailureCounter interface {
	LedgerFailure(destination string)
}

type Ledger struct {
	sink     Sink
	csv      *CSVFile
	failures FailureCounter
	logger   *zap.Logger

	Media  string
	Sender string
}

// New builds a ledger. sink may be nil when no endpoint is configured; the
// CSV fallback is always written when csv is not nil.
func New(sink Sink, csv *CSVFile, failures FailureCounter, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		sink:     sink,
		csv:      csv,
		failures: failures,
		logger:   logger,
		Media:    DefaultMedia,
		Sender:   DefaultSender,
	}
}

func (l *Ledger) Record(ctx context.Context, rec Record) {
	if l.sink != nil {
		if err := l.sink.Post(ctx, rec); err != nil {
			l.fail("webapp", "failed to post result", err, zap.String("url", rec.URL))
		} else {
			l.logger.Debug("posted result", zap.String("url", rec.URL), zap.String("status", rec.Status))
		}
	}

	if l.csv != nil {
		if err := l.csv.Append(rec); err != nil {
			l.fail("csv", "failed to append result", err, zap.String("url", rec.URL))
		}
	}
}

// ScoutSent posts the secondary event for a live submission. Nothing is
// written when no sink is configured.
func (l *Ledger) ScoutSent(ctx context.Context, url, position string, at time.Time) {
	if l.sink == nil {
		return
	}

	event := ScoutSent{
		Type:     eventScoutSent,
		URL:      url,
		Media:    l.Media,
		Position: position,
		Sender:   l.Sender,
		Date:     Date(at),
		Week:     WeekLabel(at),
	}
	if err := l.sink.Post(ctx, event); err != nil {
		l.fail("webapp", "failed to post scout sent event", err, zap.String("url", url))
		return
	}
	l.logger.Info("logged scout send", zap.String("url", url), zap.String("week", event.Week))
}

func (l *Ledger) fail(destination, msg string, err error, fields ...zap.Field) {
	l.logger.Error(msg, append(fields, zap.String("destination", destination), zap.Error(err))...)
	if l.failures != nil {
		l.failures.LedgerFailure(destination)
	}
}
