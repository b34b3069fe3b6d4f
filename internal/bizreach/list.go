package bizreach

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/scout-responder/internal/surface"
	"go.uber.org/zap"
)

// List enumerates candidate rows. Row handles are never cached: callers ask
// for row i right before using it.
type List struct {
	timing Timing
	logger *zap.Logger
}

func NewList(timing Timing, logger *zap.Logger) *List {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &List{timing: timing, logger: logger}
}

// Locate waits for the list container. A timeout is reported as false, not
// as an error.
func (l *List) Locate(ctx context.Context, page surface.Page, mode Mode) (bool, error) {
	timeout := l.timing.listTimeout(mode)
	_, err := page.WaitVisible(ctx, surface.Ref{}, ResumeList, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, surface.ErrTimeout):
		l.logger.Info("candidate list did not appear",
			zap.String("mode", string(mode)),
			zap.Duration("timeout", timeout),
		)
		return false, nil
	default:
		return false, fmt.Errorf("waiting for candidate list: %w", err)
	}
}

// Rows returns the current row handles, using the looser selector when the
// primary one matches nothing.
func (l *List) Rows(ctx context.Context, page surface.Page) ([]surface.Ref, error) {
	rows, err := page.LocateAll(ctx, surface.Ref{}, ResumeRows)
	if err != nil {
		return nil, fmt.Errorf("listing candidate rows: %w", err)
	}
	return rows, nil
}

// Row re-resolves the i-th row. ok is false when the list has shrunk below i.
func (l *List) Row(ctx context.Context, page surface.Page, i int) (surface.Ref, bool, error) {
	rows, err := l.Rows(ctx, page)
	if err != nil {
		return surface.Ref{}, false, err
	}
	if i < 0 || i >= len(rows) {
		return surface.Ref{}, false, nil
	}
	return rows[i], true, nil
}
