// internal/browser/headless/element.go
package headless

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
)

const shadowRootAttr = "shadowrootmode"

// root is a query scope: a document node or the template holding a shadow tree.
type root struct {
	page *Page
	node *html.Node
}

// QuerySelector returns the first match inside the scope, in document order,
// ignoring matches that live in nested shadow trees.
func (r *root) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", dom.ErrMalformedSelector, selector, err)
	}

	r.page.mu.Lock()
	defer r.page.mu.Unlock()

	var found *html.Node
	goquery.NewDocumentFromNode(r.node).FindMatcher(matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if inNestedShadow(n, r.node) {
			return true
		}
		found = n
		return false
	})
	if found == nil {
		return nil, nil
	}
	return &Element{page: r.page, node: found}, nil
}

// inNestedShadow reports whether n sits inside a shadow-root template below scope.
func inNestedShadow(n, scope *html.Node) bool {
	for a := n.Parent; a != nil && a != scope; a = a.Parent {
		if isShadowTemplate(a) {
			return true
		}
	}
	return false
}

func isShadowTemplate(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Template && hasAttr(n, shadowRootAttr)
}

// Element is a node of a headless page.
type Element struct {
	page *Page
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

// TagName returns the upper-case tag name.
func (e *Element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return getAttr(e.node, name)
}

// ShadowRoot returns the open declarative shadow root, if any.
func (e *Element) ShadowRoot(ctx context.Context) (dom.Root, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Template {
			continue
		}
		switch strings.ToLower(getAttr(c, shadowRootAttr)) {
		case "open":
			return &root{page: e.page, node: c}, nil
		case "closed":
			return nil, nil
		}
	}
	return nil, nil
}

// ContentDocument returns the document of an iframe. srcdoc wins over src;
// a src on another origin yields dom.ErrCrossOrigin.
func (e *Element) ContentDocument(ctx context.Context) (dom.Root, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if e.node.DataAtom != atom.Iframe {
		return nil, nil
	}
	if doc, ok := e.page.frames[e.node]; ok {
		return &root{page: e.page, node: doc}, nil
	}

	var markup string
	if srcdoc, ok := lookupAttr(e.node, "srcdoc"); ok {
		markup = srcdoc
	} else {
		src := getAttr(e.node, "src")
		if src == "" {
			return nil, nil
		}
		resolved, err := e.page.resolveURL(src)
		if err != nil {
			return nil, err
		}
		if !e.page.sameOrigin(resolved) {
			return nil, fmt.Errorf("%w: %s", dom.ErrCrossOrigin, resolved)
		}
		m, ok := e.page.documents[resolved]
		if !ok {
			return nil, nil
		}
		markup = m
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame document: %w", err)
	}
	e.page.frames[e.node] = doc
	return &root{page: e.page, node: doc}, nil
}

// ComputedStyle resolves display and visibility through ancestors, including
// shadow hosts. Opacity is taken from the element alone.
func (e *Element) ComputedStyle(ctx context.Context) (dom.Style, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.computedStyle(e.node), nil
}

// BoundingBox returns the data-rect box, or the page default. Elements that
// are not rendered, or styled with zero width or height, have an empty box.
func (e *Element) BoundingBox(ctx context.Context) (geometry.Rect, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if e.page.computedStyle(e.node).Display == "none" {
		return geometry.Rect{}, nil
	}
	box := e.page.defaultBox
	if raw, ok := lookupAttr(e.node, "data-rect"); ok {
		r, err := parseRect(raw)
		if err != nil {
			return geometry.Rect{}, err
		}
		box = r
	}
	decls := e.page.declarations(e.node)
	if isZeroLength(decls["width"]) {
		box.Width = 0
	}
	if isZeroLength(decls["height"]) {
		box.Height = 0
	}
	return box, nil
}

// ScrollIntoView records the scroll; snapshot layout is fixed.
func (e *Element) ScrollIntoView(ctx context.Context, smooth bool) error {
	e.page.recordNode("scroll ", e.node)
	return nil
}

// Click dispatches click to the element's listeners. Clicking a link follows
// its href as a same-document navigation.
func (e *Element) Click(ctx context.Context) error {
	e.page.recordNode("click ", e.node)
	e.page.dispatch(e.node, "click")

	e.page.mu.Lock()
	href := ""
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href = getAttr(n, "href")
			break
		}
	}
	var next string
	if href != "" && !strings.HasPrefix(href, "#") {
		next, _ = e.page.resolveURL(href)
	}
	e.page.mu.Unlock()

	if next != "" {
		e.page.SetURL(next)
	}
	return nil
}

// SetValue stores the value attribute then dispatches input and change.
func (e *Element) SetValue(ctx context.Context, value string, appendValue bool) error {
	e.page.mu.Lock()
	if appendValue {
		value = getAttr(e.node, "value") + value
	}
	setAttr(e.node, "value", value)
	e.page.actions = append(e.page.actions, fmt.Sprintf("set %s=%q", describe(e.node), value))
	e.page.mu.Unlock()

	e.page.dispatch(e.node, "input")
	e.page.dispatch(e.node, "change")
	return nil
}

// Press dispatches keydown and keyup.
func (e *Element) Press(ctx context.Context, key string) error {
	e.page.recordNode("press "+key+" on ", e.node)
	e.page.dispatch(e.node, "keydown")
	e.page.dispatch(e.node, "keyup")
	return nil
}

// Listen registers fn for event on this element.
func (e *Element) Listen(ctx context.Context, event string, fn func()) (func(), error) {
	l := &listener{fn: fn}
	e.page.mu.Lock()
	byEvent, ok := e.page.listeners[e.node]
	if !ok {
		byEvent = make(map[string][]*listener)
		e.page.listeners[e.node] = byEvent
	}
	byEvent[event] = append(byEvent[event], l)
	e.page.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.page.mu.Lock()
			defer e.page.mu.Unlock()
			ls := e.page.listeners[e.node][event]
			for i, cand := range ls {
				if cand == l {
					e.page.listeners[e.node][event] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
		})
	}, nil
}

type listener struct {
	fn func()
}

// dispatch runs the listeners registered at the time of the call, outside the lock.
func (p *Page) dispatch(n *html.Node, event string) {
	p.mu.Lock()
	ls := append([]*listener(nil), p.listeners[n][event]...)
	p.mu.Unlock()
	for _, l := range ls {
		l.fn()
	}
}

// ListenerCount returns how many listeners the first match of selector has
// for event.
func (p *Page) ListenerCount(ctx context.Context, selector, event string) int {
	el, err := p.Query(ctx, selector)
	if err != nil || el == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[el.(*Element).node][event])
}

func describe(n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		return n.Data + "#" + id
	}
	if cls := strings.Fields(getAttr(n, "class")); len(cls) > 0 {
		return n.Data + "." + cls[0]
	}
	return n.Data
}

func parseRect(raw string) (geometry.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("data-rect %q: want x,y,w,h", raw)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("data-rect %q: %w", raw, err)
		}
		v[i] = f
	}
	return geometry.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func isZeroLength(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	v = strings.TrimRight(v, "abcdefghijklmnopqrstuvwxyz%")
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

func lookupAttr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func getAttr(n *html.Node, name string) string {
	v, _ := lookupAttr(n, name)
	return v
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := lookupAttr(n, name)
	return ok
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}
