package bizreach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

var (
	// ErrNoLink means the row has no visible link to its detail view.
	ErrNoLink = errors.New("no clickable candidate link")
	// ErrDetailTimeout means the detail view did not open in time.
	ErrDetailTimeout = errors.New("candidate detail did not open")
)

// Extractor opens candidate detail views and reads them.
type Extractor struct {
	timing Timing
	logger *zap.Logger
}

func NewExtractor(timing Timing, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{timing: timing, logger: logger}
}

// Open clicks the row's link and waits for the detail view.
func (e *Extractor) Open(ctx context.Context, page surface.Page, row surface.Ref, mode Mode) error {
	link, ok := surface.FindVisible(ctx, page, row, candidateLink(mode), 0)
	if !ok && mode == ModeUnrated {
		link, ok = row, page.Visible(ctx, row, 0)
	}
	if !ok {
		return ErrNoLink
	}

	if err := page.Click(ctx, link); err != nil {
		return fmt.Errorf("clicking candidate link: %w", err)
	}

	if _, err := page.WaitVisible(ctx, surface.Ref{}, ResumeDetail, e.timing.DetailTimeout); err != nil {
		if errors.Is(err, surface.ErrTimeout) {
			return fmt.Errorf("%w within %s", ErrDetailTimeout, e.timing.DetailTimeout)
		}
		return fmt.Errorf("waiting for candidate detail: %w", err)
	}
	return nil
}

// Identity returns the candidate URL from the copy-URL control, falling back
// to the current page URL.
func (e *Extractor) Identity(ctx context.Context, page surface.Page) string {
	if ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, CopyURL, e.timing.CopyURLTimeout); ok {
		value, err := page.Attribute(ctx, ref, clipboardAttr)
		if err != nil {
			e.logger.Debug("reading clipboard attribute", zap.Error(err))
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}

	current, err := page.URL(ctx)
	if err != nil {
		e.logger.Warn("reading current url", zap.Error(err))
		return ""
	}
	return current
}

// Profile returns the raw visible text of the detail view.
func (e *Extractor) Profile(ctx context.Context, page surface.Page) (string, error) {
	ref, err := page.Locate(ctx, surface.Ref{}, ResumeDetail)
	if err != nil {
		return "", fmt.Errorf("locating candidate detail: %w", err)
	}
	text, err := page.Text(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("reading candidate detail: %w", err)
	}
	return text, nil
}

// Close clicks the close control when it is visible and reports whether it
// did.
func (e *Extractor) Close(ctx context.Context, page surface.Page) bool {
	ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, CloseDetail, 0)
	if !ok {
		return false
	}
	if err := page.Click(ctx, ref); err != nil {
		e.logger.Warn("closing candidate detail", zap.Error(err))
		return false
	}
	if err := utils.WaitFor(ctx, e.timing.CloseSettle); err != nil {
		e.logger.Debug("close settle interrupted", zap.Error(err))
	}
	return true
}

// RankC locates the rank-C rejection control on a row.
func (e *Extractor) RankC(ctx context.Context, page surface.Page, row surface.Ref) (surface.Ref, bool) {
	return surface.FindVisible(ctx, page, row, RankCLabel, 0)
}
