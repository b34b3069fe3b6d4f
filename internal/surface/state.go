package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ErrNoState is returned when the session file does not exist.
var ErrNoState = errors.New("session state file not found")

// State is the persisted authenticated session.
type State struct {
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

// Cookie is the stored form of a browser cookie. Expires is in seconds since
// the epoch and is -1 for session cookies.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

func cookieFromBrowser(c *network.Cookie) Cookie {
	cookie := Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite.String(),
	}
	if c.Session || c.Expires <= 0 {
		cookie.Expires = -1
	}
	return cookie
}

// ReadState loads a session file written by SaveState.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoState, path)
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state %s: %w", path, err)
	}
	return &state, nil
}

// WriteState persists a session file.
func WriteState(path string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// CookieParams converts stored cookies into parameters accepted by the
// browser. Session cookies keep no expiry.
func (s *State) CookieParams() []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}

func loadState(ctx context.Context, path string) (int, error) {
	state, err := ReadState(path)
	if err != nil {
		return 0, err
	}

	params := state.CookieParams()
	if len(params) == 0 {
		return 0, nil
	}

	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return 0, fmt.Errorf("restoring session cookies: %w", err)
	}
	return len(params), nil
}

func saveState(ctx context.Context, path string) (int, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return 0, fmt.Errorf("reading browser cookies: %w", err)
	}

	state := &State{SavedAt: time.Now().UTC(), Cookies: make([]Cookie, 0, len(cookies))}
	for _, c := range cookies {
		if c != nil {
			state.Cookies = append(state.Cookies, cookieFromBrowser(c))
		}
	}
	if err := WriteState(path, state); err != nil {
		return 0, err
	}
	return len(cookies), nil
}
