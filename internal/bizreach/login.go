package bizreach

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

// ErrLoginTimeout means the login form was submitted but the dashboard never
// appeared.
var ErrLoginTimeout = errors.New("login did not reach the dashboard")

var loggedInURL = regexp.MustCompile(`mypage|selectGroup`)

// Credentials is the operator account used for automated login.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// Login fills and submits the login form on page, which must already show the
// login screen, then waits for a dashboard or group-selection URL.
func Login(ctx context.Context, page surface.Page, creds Credentials, timeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !creds.Complete() {
		return errors.New("email and password are required for automated login")
	}

	fields := []struct {
		loc   surface.Locator
		value string
	}{
		{LoginEmail, creds.Email},
		{LoginPassword, creds.Password},
	}
	for _, f := range fields {
		ref, err := page.WaitVisible(ctx, surface.Ref{}, f.loc, timeout)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", f.loc.Name, err)
		}
		if err := page.Fill(ctx, ref, f.value); err != nil {
			return fmt.Errorf("filling %s: %w", f.loc.Name, err)
		}
	}

	submit, err := page.Locate(ctx, surface.Ref{}, LoginSubmit)
	if err != nil {
		return fmt.Errorf("locating login button: %w", err)
	}
	if err := page.Click(ctx, submit); err != nil {
		return fmt.Errorf("clicking login button: %w", err)
	}
	logger.Info("submitted login form, waiting for navigation")

	var current string
	err = utils.Poll(ctx, timeout, 500*time.Millisecond, func() (bool, error) {
		u, err := page.URL(ctx)
		if err != nil {
			return false, err
		}
		current = u
		return loggedInURL.MatchString(u), nil
	})
	if errors.Is(err, utils.ErrRetriesExhausted) {
		return fmt.Errorf("%w (current url %s)", ErrLoginTimeout, current)
	}
	if err != nil {
		return err
	}

	logger.Info("login succeeded", zap.String("url", current))
	return nil
}
