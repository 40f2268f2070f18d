// internal/browser/headless/page.go
package headless

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
)

// DefaultViewport is the viewport of a page created without WithViewport.
var DefaultViewport = geometry.Size{Width: 1280, Height: 800}

// DefaultBox is the layout box given to elements without a data-rect attribute.
var DefaultBox = geometry.Rect{X: 0, Y: 0, Width: 100, Height: 40}

// Page is a static HTML snapshot that satisfies dom.Page and
// dom.NavigationObserver. Layout comes from data-rect="x,y,w,h" attributes,
// visibility from inline and <style> declarations.
type Page struct {
	mu         sync.Mutex
	logger     *zap.Logger
	url        string
	doc        *html.Node
	viewport   geometry.Size
	defaultBox geometry.Rect
	documents  map[string]string
	frames     map[*html.Node]*html.Node
	sheets     map[*html.Node][]styleRule
	listeners  map[*html.Node]map[string][]*listener
	navSubs    map[int]func(string)
	nextSub    int
	scrollLock bool
	actions    []string
}

// Option configures a Page.
type Option func(*Page)

// WithViewport sets the viewport size.
func WithViewport(s geometry.Size) Option {
	return func(p *Page) { p.viewport = s }
}

// WithDefaultBox sets the box used for elements without data-rect.
func WithDefaultBox(r geometry.Rect) Option {
	return func(p *Page) { p.defaultBox = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Page) { p.logger = l }
}

// WithDocument registers markup served at rawURL, used for same-origin iframe
// src attributes and for Navigate.
func WithDocument(rawURL, markup string) Option {
	return func(p *Page) { p.documents[rawURL] = markup }
}

// NewPage parses markup as the document loaded at pageURL.
func NewPage(pageURL, markup string, opts ...Option) (*Page, error) {
	p := &Page{
		logger:     zap.NewNop(),
		url:        pageURL,
		viewport:   DefaultViewport,
		defaultBox: DefaultBox,
		documents:  make(map[string]string),
		navSubs:    make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("headless_page")
	if err := p.load(markup); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) load(markup string) error {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse page markup: %w", err)
	}
	p.doc = doc
	p.frames = make(map[*html.Node]*html.Node)
	p.sheets = make(map[*html.Node][]styleRule)
	p.listeners = make(map[*html.Node]map[string][]*listener)
	return nil
}

// Document returns the page's document root.
func (p *Page) Document(ctx context.Context) (dom.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return &root{page: p, node: p.doc}, nil
}

// URL returns the current page URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// Viewport returns the configured viewport.
func (p *Page) Viewport(ctx context.Context) (geometry.Size, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport, nil
}

// SetViewport changes the viewport, as a window resize would.
func (p *Page) SetViewport(s geometry.Size) {
	p.mu.Lock()
	p.viewport = s
	p.mu.Unlock()
}

// Navigate moves the page to rawURL. When markup was registered for the
// target the document is replaced, otherwise the navigation is treated as
// same-document. Subscribers are notified either way.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	next, err := p.resolveURL(rawURL)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if markup, ok := p.documents[next]; ok {
		if err := p.load(markup); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	p.actions = append(p.actions, "navigate "+next)
	p.mu.Unlock()

	p.SetURL(next)
	return nil
}

// SetURL changes the URL without touching the document, as history.pushState
// does, and notifies subscribers.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	p.url = u
	subs := make([]func(string), 0, len(p.navSubs))
	for _, fn := range p.navSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

// Subscribe registers fn for URL changes.
func (p *Page) Subscribe(fn func(url string)) (func(), error) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.navSubs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.navSubs, id)
			p.mu.Unlock()
		})
	}, nil
}

// Subscribers returns the number of active navigation subscriptions.
func (p *Page) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.navSubs)
}

// SetScrollLocked records whether the page's scrolling is disabled.
func (p *Page) SetScrollLocked(locked bool) {
	p.mu.Lock()
	p.scrollLock = locked
	p.mu.Unlock()
}

// ScrollLocked reports whether page scrolling is disabled.
func (p *Page) ScrollLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollLock
}

// Actions returns the DOM actions performed against the page, in order.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Query is a convenience for tests: the first document match of selector.
func (p *Page) Query(ctx context.Context, selector string) (dom.Element, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.QuerySelector(ctx, selector)
}

// Fire dispatches a DOM event to the listeners of the first element matching
// selector, as a user interacting with the page would.
func (p *Page) Fire(ctx context.Context, selector, event string) error {
	el, err := p.Query(ctx, selector)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("no element matches %q", selector)
	}
	p.dispatch(el.(*Element).node, event)
	return nil
}

func (p *Page) recordNode(prefix string, n *html.Node) {
	p.mu.Lock()
	p.actions = append(p.actions, prefix+describe(n))
	p.mu.Unlock()
}

// resolveURL resolves ref against the current URL. Caller holds p.mu.
func (p *Page) resolveURL(ref string) (string, error) {
	base, err := url.Parse(p.url)
	if err != nil {
		return ref, nil
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return u.String(), nil
}

// sameOrigin reports whether ref (already resolved) shares the page's origin.
// Caller holds p.mu.
func (p *Page) sameOrigin(ref string) bool {
	a, err1 := url.Parse(p.url)
	b, err2 := url.Parse(ref)
	if err1 != nil || err2 != nil {
		return false
	}
	if b.Scheme == "about" {
		return true
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
