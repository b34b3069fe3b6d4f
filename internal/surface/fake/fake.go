// Package fake provides an in-memory surface.Page for tests. Pages hold a
// tree of nodes matched by literal selector strings, track visibility, run
// click handlers and can re-render to invalidate every issued Ref.
package fake

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spigell/scout-responder/internal/surface"
)

var nextID atomic.Int64

// Node is an element of the fake document.
type Node struct {
	Name      string
	Selectors []string
	Text      string
	Attrs     map[string]string
	Value     string
	Hidden    bool
	// Options restricts SelectOption values when non-nil.
	Options []string
	// ClickErr is returned by direct clicks; script clicks ignore it.
	ClickErr error
	OnClick  func(p *Page) error

	id       int64
	parent   *Node
	children []*Node
}

// NewNode creates a detached node answering to the given selectors.
func NewNode(name string, selectors ...string) *Node {
	return &Node{Name: name, Selectors: selectors, id: nextID.Add(1)}
}

// WithText sets the node text.
func (n *Node) WithText(text string) *Node {
	n.Text = text
	return n
}

// WithAttr sets an attribute.
func (n *Node) WithAttr(name, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = map[string]string{}
	}
	n.Attrs[name] = value
	return n
}

// Hide marks the node hidden.
func (n *Node) Hide() *Node {
	n.Hidden = true
	return n
}

// OnClickDo sets the click handler.
func (n *Node) OnClickDo(fn func(p *Page) error) *Node {
	n.OnClick = fn
	return n
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		c.Remove()
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Remove detaches the node from its parent.
func (n *Node) Remove() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Clear detaches every child.
func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// Children returns the attached children.
func (n *Node) Children() []*Node { return n.children }

func (n *Node) matches(s surface.Strategy) bool {
	found := false
	for _, sel := range n.Selectors {
		if sel == s.CSS {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if s.Text == "" {
		return true
	}
	text := strings.TrimSpace(n.innerText())
	if s.ExactText {
		return text == s.Text
	}
	return strings.Contains(text, s.Text)
}

func (n *Node) innerText() string {
	parts := make([]string, 0, len(n.children)+1)
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, c := range n.children {
		if t := c.innerText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		fn(c)
		c.walk(fn)
	}
}

// Action is one recorded interaction.
type Action struct {
	Op    string
	Node  string
	Value string
}

// Page is an in-memory surface.Page.
type Page struct {
	Root *Node
	// HTML is returned by Content.
	HTML string
	// OnNavigate prepares the document for a URL.
	OnNavigate func(p *Page, url string) error

	Actions []Action
	Closed  bool

	url string
	gen int
}

// NewPage creates an empty page at url.
func NewPage(url string) *Page {
	return &Page{Root: NewNode("document"), url: url, HTML: "<html><body></body></html>"}
}

// SetURL changes the current location without navigation hooks.
func (p *Page) SetURL(url string) { p.url = url }

// Rerender invalidates every Ref issued so far.
func (p *Page) Rerender() { p.gen++ }

// Count returns how many actions of op targeted the named node.
func (p *Page) Count(op, node string) int {
	n := 0
	for _, a := range p.Actions {
		if a.Op == op && a.Node == node {
			n++
		}
	}
	return n
}

// Find returns the first attached node with the given name.
func (p *Page) Find(name string) *Node {
	var found *Node
	p.Root.walk(func(n *Node) {
		if found == nil && n.Name == name {
			found = n
		}
	})
	return found
}

func (p *Page) record(op string, n *Node, value string) {
	p.Actions = append(p.Actions, Action{Op: op, Node: n.Name, Value: value})
}

func (p *Page) ref(n *Node, name string) surface.Ref {
	return surface.Ref{ID: fmt.Sprintf("n%d@%d", n.id, p.gen), Name: name}
}

func (p *Page) resolve(ref surface.Ref) (*Node, error) {
	if ref.IsRoot() {
		return p.Root, nil
	}

	idPart, genPart, ok := strings.Cut(strings.TrimPrefix(ref.ID, "n"), "@")
	if !ok {
		return nil, fmt.Errorf("malformed ref %q", ref.ID)
	}
	gen, err := strconv.Atoi(genPart)
	if err != nil || gen != p.gen {
		return nil, fmt.Errorf("%s: %w", ref.Name, surface.ErrStale)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed ref %q", ref.ID)
	}

	if id == p.Root.id {
		return p.Root, nil
	}
	var found *Node
	p.Root.walk(func(n *Node) {
		if n.id == id {
			found = n
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%s: %w", ref.Name, surface.ErrStale)
	}
	return found, nil
}

func (p *Page) visible(n *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Hidden {
			return false
		}
		if cur == p.Root {
			return true
		}
	}
	return false
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.url = url
	p.Actions = append(p.Actions, Action{Op: "navigate", Value: url})
	if p.OnNavigate != nil {
		return p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) URL(context.Context) (string, error) { return p.url, nil }

func (p *Page) locate(scope surface.Ref, loc surface.Locator) ([]surface.Ref, error) {
	root, err := p.resolve(scope)
	if err != nil {
		return nil, err
	}

	for _, s := range loc.Strategies {
		if s.Self {
			if scope.IsRoot() {
				continue
			}
			return []surface.Ref{p.ref(root, loc.Name)}, nil
		}

		var refs []surface.Ref
		root.walk(func(n *Node) {
			if n.matches(s) {
				refs = append(refs, p.ref(n, loc.Name))
			}
		})
		if len(refs) > 0 {
			return refs, nil
		}
	}
	return nil, nil
}

func (p *Page) Locate(_ context.Context, scope surface.Ref, loc surface.Locator) (surface.Ref, error) {
	refs, err := p.locate(scope, loc)
	if err != nil {
		return surface.Ref{}, err
	}
	if len(refs) == 0 {
		return surface.Ref{}, fmt.Errorf("%s: %w", loc.Name, surface.ErrNotFound)
	}
	return refs[0], nil
}

func (p *Page) LocateAll(_ context.Context, scope surface.Ref, loc surface.Locator) ([]surface.Ref, error) {
	return p.locate(scope, loc)
}

func (p *Page) Visible(_ context.Context, ref surface.Ref, _ time.Duration) bool {
	n, err := p.resolve(ref)
	if err != nil {
		return false
	}
	return p.visible(n)
}

func (p *Page) WaitVisible(_ context.Context, scope surface.Ref, loc surface.Locator, timeout time.Duration) (surface.Ref, error) {
	p.Actions = append(p.Actions, Action{Op: "wait", Node: loc.Name})
	refs, err := p.locate(scope, loc)
	if err != nil {
		return surface.Ref{}, err
	}
	for _, ref := range refs {
		if n, _ := p.resolve(ref); n != nil && p.visible(n) {
			return ref, nil
		}
	}
	return surface.Ref{}, fmt.Errorf("%s within %s: %w", loc.Name, timeout, surface.ErrTimeout)
}

func (p *Page) click(ref surface.Ref, op string, direct bool) error {
	n, err := p.resolve(ref)
	if err != nil {
		return err
	}
	if direct && !p.visible(n) {
		return fmt.Errorf("click %s: not visible", n.Name)
	}
	p.record(op, n, "")
	if direct && n.ClickErr != nil {
		return n.ClickErr
	}
	if n.OnClick != nil {
		return n.OnClick(p)
	}
	return nil
}

func (p *Page) Click(_ context.Context, ref surface.Ref) error {
	return p.click(ref, "click", true)
}

func (p *Page) ClickScript(_ context.Context, ref surface.Ref) error {
	return p.click(ref, "script-click", false)
}

func (p *Page) Fill(_ context.Context, ref surface.Ref, value string) error {
	n, err := p.resolve(ref)
	if err != nil {
		return err
	}
	n.Value = value
	p.record("fill", n, value)
	return nil
}

func (p *Page) SelectOption(_ context.Context, ref surface.Ref, value string) error {
	n, err := p.resolve(ref)
	if err != nil {
		return err
	}
	if n.Options != nil {
		known := false
		for _, o := range n.Options {
			known = known || o == value
		}
		if !known {
			return fmt.Errorf("option %q not available in %s", value, n.Name)
		}
	}
	n.Value = value
	p.record("select", n, value)
	return nil
}

func (p *Page) Text(_ context.Context, ref surface.Ref) (string, error) {
	n, err := p.resolve(ref)
	if err != nil {
		return "", err
	}
	return n.innerText(), nil
}

func (p *Page) Attribute(_ context.Context, ref surface.Ref, name string) (string, error) {
	n, err := p.resolve(ref)
	if err != nil {
		return "", err
	}
	return n.Attrs[name], nil
}

func (p *Page) Content(context.Context) (string, error) { return p.HTML, nil }

func (p *Page) Screenshot(context.Context) ([]byte, error) { return []byte("\x89PNG"), nil }

func (p *Page) Close(context.Context) error {
	p.Closed = true
	return nil
}

// Browser hands out fake pages built by Setup.
type Browser struct {
	// Setup builds the page for the n-th NewPage call, starting at 0.
	Setup func(n int) *Page
	// Err fails every NewPage call when set.
	Err    error
	Pages  []*Page
	Closed bool
}

func (b *Browser) NewPage(context.Context) (surface.Page, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	var p *Page
	if b.Setup != nil {
		p = b.Setup(len(b.Pages))
	}
	if p == nil {
		p = NewPage("about:blank")
	}
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.Closed = true
	return nil
}
