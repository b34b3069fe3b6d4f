// Package surface abstracts the controllable browser page the pipeline drives.
//
// Callers address logical controls through a Locator: a named, ranked list of
// strategies tried in order until one resolves. Selector syntax never leaks
// past this package and its adapters.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/scout-responder/internal/utils"
)

var (
	// ErrNotFound means no strategy of a locator matched any element.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout means an element did not reach the awaited state in time.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrStale means the referenced element is no longer attached to the page.
	ErrStale = errors.New("stale element reference")
)

// Strategy is one way to find a logical control.
type Strategy struct {
	// CSS selects candidate elements relative to the scope.
	CSS string
	// Text keeps only candidates whose visible text contains it.
	Text string
	// ExactText requires the trimmed visible text to equal Text.
	ExactText bool
	// Self resolves to the scope element itself.
	Self bool
}

func (s Strategy) String() string {
	switch {
	case s.Self:
		return "(self)"
	case s.Text == "":
		return s.CSS
	case s.ExactText:
		return fmt.Sprintf("%s[text=%q]", s.CSS, s.Text)
	default:
		return fmt.Sprintf("%s[text~=%q]", s.CSS, s.Text)
	}
}

// Locator is a logical control with its ranked strategies.
type Locator struct {
	Name       string
	Strategies []Strategy
}

// CSS builds a locator trying the selectors in the given order.
func CSS(name string, selectors ...string) Locator {
	loc := Locator{Name: name}
	for _, sel := range selectors {
		loc.Strategies = append(loc.Strategies, Strategy{CSS: sel})
	}
	return loc
}

// Or returns a copy of the locator with extra lower-priority strategies.
func (l Locator) Or(strategies ...Strategy) Locator {
	out := Locator{Name: l.Name, Strategies: make([]Strategy, 0, len(l.Strategies)+len(strategies))}
	out.Strategies = append(out.Strategies, l.Strategies...)
	out.Strategies = append(out.Strategies, strategies...)
	return out
}

// OrSelf falls back to the scope element when nothing else matches.
func (l Locator) OrSelf() Locator {
	return l.Or(Strategy{Self: true})
}

func (l Locator) String() string {
	parts := make([]string, 0, len(l.Strategies))
	for _, s := range l.Strategies {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf("%s <%s>", l.Name, strings.Join(parts, " | "))
}

// Ref is an adapter-issued handle to a located element. The zero Ref is the
// document root. Refs may go stale when the page re-renders.
type Ref struct {
	ID   string
	Name string
}

// IsRoot reports whether r addresses the whole document.
func (r Ref) IsRoot() bool { return r.ID == "" }

// Page is a single controllable browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	// Locate returns the first element matched by the first strategy that
	// matches anything inside scope.
	Locate(ctx context.Context, scope Ref, loc Locator) (Ref, error)
	// LocateAll returns every element matched by the first strategy that
	// matches anything inside scope. An empty result is not an error.
	LocateAll(ctx context.Context, scope Ref, loc Locator) ([]Ref, error)

	// Visible reports whether ref becomes visible within timeout.
	Visible(ctx context.Context, ref Ref, timeout time.Duration) bool
	// WaitVisible waits for loc to resolve to a visible element.
	WaitVisible(ctx context.Context, scope Ref, loc Locator, timeout time.Duration) (Ref, error)

	Click(ctx context.Context, ref Ref) error
	// ClickScript dispatches a programmatic click, bypassing overlays.
	ClickScript(ctx context.Context, ref Ref) error
	Fill(ctx context.Context, ref Ref, value string) error
	SelectOption(ctx context.Context, ref Ref, value string) error

	Text(ctx context.Context, ref Ref) (string, error)
	// Attribute returns the attribute value, or "" when it is absent.
	Attribute(ctx context.Context, ref Ref, name string) (string, error)

	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Browser hands out pages sharing one authenticated session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// FindVisible walks the strategies of loc in rank order and returns the first
// visible element any of them matches, so a hidden match never shadows a
// visible lower-ranked one. The walk is repeated until timeout elapses.
func FindVisible(ctx context.Context, p Page, scope Ref, loc Locator, timeout time.Duration) (Ref, bool) {
	var found Ref
	err := utils.Poll(ctx, timeout, pollInterval, func() (bool, error) {
		for _, strategy := range loc.Strategies {
			single := Locator{Name: loc.Name, Strategies: []Strategy{strategy}}
			refs, err := p.LocateAll(ctx, scope, single)
			if err != nil {
				continue
			}
			for _, ref := range refs {
				if p.Visible(ctx, ref, 0) {
					found = ref
					return true, nil
				}
			}
		}
		return false, nil
	})
	return found, err == nil
}
