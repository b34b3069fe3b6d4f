package surface_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/surface/fake"
	"go.uber.org/zap"
)

func TestLocatorString(t *testing.T) {
	loc := surface.CSS("send", "a.primary").
		Or(surface.Strategy{CSS: "button", Text: "Send", ExactText: true}, surface.Strategy{CSS: "a", Text: "Send"}).
		OrSelf()

	want := `send <a.primary | button[text="Send"] | a[text~="Send"] | (self)>`
	if got := loc.String(); got != want {
		t.Fatalf("unexpected locator string:\n got: %s\nwant: %s", got, want)
	}
}

func TestOrDoesNotAliasBase(t *testing.T) {
	base := surface.CSS("link", "a.one")
	first := base.Or(surface.Strategy{CSS: "a.two"})
	second := base.Or(surface.Strategy{CSS: "a.three"})

	if len(base.Strategies) != 1 {
		t.Fatalf("base locator modified: %v", base)
	}
	if first.Strategies[1].CSS != "a.two" || second.Strategies[1].CSS != "a.three" {
		t.Fatalf("derived locators share storage: %v / %v", first, second)
	}
}

func TestStrategiesTriedInOrder(t *testing.T) {
	ctx := context.Background()
	page := fake.NewPage("https://example.test/")
	page.Root.Add(
		fake.NewNode("fallback", "a"),
		fake.NewNode("preferred", "a.name"),
	)

	ref, err := page.Locate(ctx, surface.Ref{}, surface.CSS("link", "a.name", "a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := page.Click(ctx, ref); err != nil {
		t.Fatalf("click: %v", err)
	}
	if page.Count("click", "preferred") != 1 {
		t.Fatalf("expected the first strategy to win, actions: %+v", page.Actions)
	}
}

func TestFindReportsVisibility(t *testing.T) {
	ctx := context.Background()
	page := fake.NewPage("https://example.test/")
	page.Root.Add(fake.NewNode("hidden", "#close").Hide())

	if _, ok := surface.FindVisible(ctx, page, surface.Ref{}, surface.CSS("close", "#close"), 0); ok {
		t.Fatalf("expected hidden element to be reported invisible")
	}
	if _, ok := surface.FindVisible(ctx, page, surface.Ref{}, surface.CSS("missing", "#nope"), 0); ok {
		t.Fatalf("expected missing element to be reported invisible")
	}

	page.Find("hidden").Hidden = false
	if _, ok := surface.FindVisible(ctx, page, surface.Ref{}, surface.CSS("close", "#close"), 0); !ok {
		t.Fatalf("expected element to be visible")
	}
}

func TestFindVisibleSkipsHiddenHigherRankedMatch(t *testing.T) {
	ctx := context.Background()
	page := fake.NewPage("https://example.test/")
	page.Root.Add(
		fake.NewNode("hidden preferred", "a.name").Hide(),
		fake.NewNode("hidden sibling", "a").Hide(),
		fake.NewNode("visible fallback", "a"),
	)

	ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, surface.CSS("link", "a.name", "a"), 0)
	if !ok {
		t.Fatalf("expected the visible fallback to be found")
	}
	if err := page.Click(ctx, ref); err != nil {
		t.Fatalf("click: %v", err)
	}
	if page.Count("click", "visible fallback") != 1 {
		t.Fatalf("expected the visible fallback to be clicked, actions: %+v", page.Actions)
	}
}

func TestRerenderMakesRefsStale(t *testing.T) {
	ctx := context.Background()
	page := fake.NewPage("https://example.test/")
	page.Root.Add(fake.NewNode("row", "li"))

	ref, err := page.Locate(ctx, surface.Ref{}, surface.CSS("row", "li"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page.Rerender()

	if err := page.Click(ctx, ref); !errors.Is(err, surface.ErrStale) {
		t.Fatalf("expected stale error, got %v", err)
	}
}

func TestWaitVisibleTimeout(t *testing.T) {
	page := fake.NewPage("https://example.test/")
	_, err := page.WaitVisible(context.Background(), surface.Ref{}, surface.CSS("list", "#list"), 0)
	if !errors.Is(err, surface.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDumperWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	page := fake.NewPage("https://example.test/")
	page.HTML = "<html><body>snapshot</body></html>"

	path := surface.NewDumper(dir, zap.NewNop()).Dump(context.Background(), page, "error_candidate_3")
	if path != filepath.Join(dir, "error_candidate_3.html") {
		t.Fatalf("unexpected dump path %q", path)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading dump: %v", err)
	}
	if string(html) != page.HTML {
		t.Fatalf("unexpected dump content %q", html)
	}
	if _, err := os.Stat(filepath.Join(dir, "error_candidate_3.png")); err != nil {
		t.Fatalf("expected screenshot: %v", err)
	}
}

func TestNilDumperIsNoop(t *testing.T) {
	var d *surface.Dumper
	if got := d.Dump(context.Background(), fake.NewPage(""), "x"); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}
