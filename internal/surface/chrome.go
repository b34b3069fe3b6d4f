package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/scout-responder/internal/utils"
)

const (
	refAttribute         = "data-scout-ref"
	defaultActionTimeout = 15 * time.Second
	pollInterval         = 250 * time.Millisecond
)

// ChromeOptions configures the chromedp-backed browser.
type ChromeOptions struct {
	Headless      bool
	UserAgent     string
	ExecPath      string
	StateFile     string
	ActionTimeout time.Duration
}

// ChromeBrowser drives a local Chrome through the DevTools protocol. All
// pages are tabs of the same browser context and therefore share cookies.
type ChromeBrowser struct {
	opts   ChromeOptions
	logger *zap.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewChromeBrowser starts Chrome and restores the saved session, if any.
func NewChromeBrowser(ctx context.Context, opts ChromeOptions, logger *zap.Logger) (*ChromeBrowser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b := &ChromeBrowser{
		opts:          opts,
		logger:        logger,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}

	if opts.StateFile != "" {
		count, err := loadState(browserCtx, opts.StateFile)
		if err != nil {
			b.Close()
			return nil, err
		}
		logger.Debug("restored session cookies", zap.String("file", opts.StateFile), zap.Int("count", count))
	}

	return b, nil
}

// NewPage opens a fresh tab in the shared browser context.
func (b *ChromeBrowser) NewPage(_ context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	return &ChromePage{
		ctx:     tabCtx,
		cancel:  cancel,
		timeout: b.opts.ActionTimeout,
		token:   uuid.NewString(),
		logger:  b.logger,
	}, nil
}

// SaveState writes the session cookies of the browser to path.
func (b *ChromeBrowser) SaveState(path string) (int, error) {
	return saveState(b.browserCtx, path)
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

// ChromePage is one tab. Element refs are attribute selectors stamped onto
// matched nodes, so they survive between calls but not a re-render.
type ChromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	token   string
	seq     int
	logger  *zap.Logger
}

func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = p.timeout
	}

	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, 0, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, 0, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

type locateResult struct {
	Stale bool     `json:"stale"`
	Refs  []string `json:"refs"`
}

const locateScript = `(() => {
	const scope = %s, css = %s, text = %s, exact = %t, prefix = %s, attr = %s;
	const root = scope ? document.querySelector(scope) : document;
	if (!root) return {stale: true, refs: []};
	let found = Array.from(root.querySelectorAll(css));
	if (text) {
		found = found.filter(el => {
			const t = (el.innerText || el.textContent || "").trim();
			return exact ? t === text : t.includes(text);
		});
	}
	return {stale: false, refs: found.map((el, i) => {
		let id = el.getAttribute(attr);
		if (!id) { id = prefix + "-" + i; el.setAttribute(attr, id); }
		return id;
	})};
})()`

func (p *ChromePage) locate(ctx context.Context, scope Ref, loc Locator, all bool) ([]Ref, error) {
	for _, strategy := range loc.Strategies {
		if strategy.Self {
			if scope.IsRoot() {
				continue
			}
			return []Ref{{ID: scope.ID, Name: loc.Name}}, nil
		}

		p.seq++
		prefix := fmt.Sprintf("%s-%d", p.token, p.seq)

		var res locateResult
		script := fmt.Sprintf(locateScript,
			jsString(scope.ID), jsString(strategy.CSS), jsString(strategy.Text),
			strategy.ExactText, jsString(prefix), jsString(refAttribute),
		)
		if err := p.run(ctx, 0, chromedp.Evaluate(script, &res)); err != nil {
			return nil, fmt.Errorf("locate %s: %w", loc.Name, err)
		}
		if res.Stale {
			return nil, fmt.Errorf("locate %s: scope %s: %w", loc.Name, scope.Name, ErrStale)
		}
		if len(res.Refs) == 0 {
			continue
		}

		if !all {
			res.Refs = res.Refs[:1]
		}
		refs := make([]Ref, 0, len(res.Refs))
		for _, id := range res.Refs {
			refs = append(refs, Ref{ID: fmt.Sprintf("[%s=%q]", refAttribute, id), Name: loc.Name})
		}
		return refs, nil
	}

	return nil, nil
}

func (p *ChromePage) Locate(ctx context.Context, scope Ref, loc Locator) (Ref, error) {
	refs, err := p.locate(ctx, scope, loc, false)
	if err != nil {
		return Ref{}, err
	}
	if len(refs) == 0 {
		return Ref{}, fmt.Errorf("%s: %w", loc.Name, ErrNotFound)
	}
	return refs[0], nil
}

func (p *ChromePage) LocateAll(ctx context.Context, scope Ref, loc Locator) ([]Ref, error) {
	return p.locate(ctx, scope, loc, true)
}

const visibleScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = getComputedStyle(el);
	if (style.visibility === "hidden" || style.display === "none") return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})()`

func (p *ChromePage) visible(ctx context.Context, ref Ref) (bool, error) {
	if ref.IsRoot() {
		return true, nil
	}
	var ok bool
	err := p.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(visibleScript, jsString(ref.ID)), &ok))
	return ok, err
}

func (p *ChromePage) Visible(ctx context.Context, ref Ref, timeout time.Duration) bool {
	err := utils.Poll(ctx, timeout, pollInterval, func() (bool, error) {
		ok, err := p.visible(ctx, ref)
		if err != nil {
			p.logger.Debug("visibility check failed", zap.String("element", ref.Name), zap.Error(err))
			return false, nil
		}
		return ok, nil
	})
	return err == nil
}

func (p *ChromePage) WaitVisible(ctx context.Context, scope Ref, loc Locator, timeout time.Duration) (Ref, error) {
	var found Ref
	err := utils.Poll(ctx, timeout, pollInterval, func() (bool, error) {
		refs, err := p.locate(ctx, scope, loc, true)
		if err != nil {
			if errors.Is(err, ErrStale) {
				return false, err
			}
			return false, nil
		}
		for _, ref := range refs {
			if ok, _ := p.visible(ctx, ref); ok {
				found = ref
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrStale) {
			return Ref{}, err
		}
		return Ref{}, fmt.Errorf("%s within %s: %w", loc.Name, timeout, ErrTimeout)
	}
	return found, nil
}

func (p *ChromePage) exists(ctx context.Context, ref Ref) error {
	var ok bool
	script := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(ref.ID))
	if err := p.run(ctx, 0, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", ref.Name, ErrStale)
	}
	return nil
}

func (p *ChromePage) Click(ctx context.Context, ref Ref) error {
	if err := p.exists(ctx, ref); err != nil {
		return err
	}
	if err := p.run(ctx, 0, chromedp.Click(ref.ID, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", ref.Name, err)
	}
	return nil
}

func (p *ChromePage) ClickScript(ctx context.Context, ref Ref) error {
	var ok bool
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`, jsString(ref.ID))
	if err := p.run(ctx, 0, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("script click %s: %w", ref.Name, err)
	}
	if !ok {
		return fmt.Errorf("script click %s: %w", ref.Name, ErrStale)
	}
	return nil
}

const notifyScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
})()`

func (p *ChromePage) setValue(ctx context.Context, ref Ref, value string) error {
	if err := p.exists(ctx, ref); err != nil {
		return err
	}
	var ok bool
	return p.run(ctx, 0,
		chromedp.SetValue(ref.ID, value, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(notifyScript, jsString(ref.ID)), &ok),
	)
}

func (p *ChromePage) Fill(ctx context.Context, ref Ref, value string) error {
	if err := p.setValue(ctx, ref, value); err != nil {
		return fmt.Errorf("fill %s: %w", ref.Name, err)
	}
	return nil
}

func (p *ChromePage) SelectOption(ctx context.Context, ref Ref, value string) error {
	if err := p.setValue(ctx, ref, value); err != nil {
		return fmt.Errorf("select %q in %s: %w", value, ref.Name, err)
	}
	return nil
}

func (p *ChromePage) Text(ctx context.Context, ref Ref) (string, error) {
	sel := ref.ID
	if ref.IsRoot() {
		sel = "body"
	}
	var text string
	if err := p.run(ctx, 0, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text of %s: %w", ref.Name, err)
	}
	return text, nil
}

func (p *ChromePage) Attribute(ctx context.Context, ref Ref, name string) (string, error) {
	if err := p.exists(ctx, ref); err != nil {
		return "", err
	}
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, 0, chromedp.AttributeValue(ref.ID, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read attribute %s of %s: %w", name, ref.Name, err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (p *ChromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (p *ChromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 0, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("take screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromePage) Close(_ context.Context) error {
	p.cancel()
	return nil
}

// jsString quotes s as a JavaScript string literal, or null when empty.
func jsString(s string) string {
	if strings.TrimSpace(s) == "" {
		return "null"
	}
	b, _ := json.Marshal(s)
	return string(b)
}
