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

// ErrSessionInvalid means the platform redirected to its login page. The run
// cannot continue without refreshing the saved session.
var ErrSessionInvalid = errors.New("session invalid: redirected to login page")

const groupSelectionMarker = "selectGroup"

// Gate verifies the page is authenticated and resolves the group-selection
// interstitial.
type Gate struct {
	site   Site
	timing Timing
	logger *zap.Logger
}

func NewGate(site Site, timing Timing, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{site: site, timing: timing, logger: logger}
}

// Ensure returns ErrSessionInvalid on a login redirect. A group-selection
// screen is resolved by exact label, then partial label; when neither is
// present a warning is logged and Ensure returns nil.
func (g *Gate) Ensure(ctx context.Context, page surface.Page) error {
	current, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("reading current url: %w", err)
	}

	onGroupSelection := strings.Contains(current, groupSelectionMarker)
	if strings.Contains(current, g.site.LoginPath) && !onGroupSelection {
		g.logger.Error("redirected to login page, run the auth command to refresh the session", zap.String("url", current))
		return ErrSessionInvalid
	}

	if !onGroupSelection {
		return nil
	}

	g.logger.Info("group selection screen detected")
	if err := g.selectGroup(ctx, page); err != nil {
		return err
	}

	return utils.WaitFor(ctx, g.timing.GroupSettle)
}

func (g *Gate) selectGroup(ctx context.Context, page surface.Page) error {
	loc := groupLink(g.site)
	for _, strategy := range loc.Strategies {
		single := surface.Locator{Name: loc.Name, Strategies: []surface.Strategy{strategy}}
		ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, single, 0)
		if !ok {
			g.logger.Info("group link not found", zap.String("strategy", strategy.String()))
			continue
		}

		g.logger.Info("selecting group", zap.String("strategy", strategy.String()))
		if err := page.Click(ctx, ref); err != nil {
			return fmt.Errorf("clicking group link: %w", err)
		}
		return nil
	}

	g.logger.Warn("failed to select group, check the screen",
		zap.String("label", g.site.GroupLabel),
		zap.String("partial", g.site.GroupPartial),
	)
	return nil
}
