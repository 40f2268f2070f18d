// internal/browser/element.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/google/uuid"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
)

const (
	jsQuerySelector = `function(sel) { return this.querySelector(sel); }`
	jsTagName       = `function() { return this.tagName; }`
	jsShadowRoot    = `function() { return this.shadowRoot; }`

	// undefined for non-frame elements, null when the browser hides the
	// document from us.
	jsContentDocument = `function() {
	if (!('contentDocument' in this)) return undefined;
	try { return this.contentDocument; } catch (e) { return null; }
}`

	jsComputedStyle = `function() {
	var s = this.ownerDocument.defaultView.getComputedStyle(this);
	return { display: s.display, visibility: s.visibility, opacity: s.opacity };
}`

	// Client rects are frame-relative; walk up same-origin frame elements to
	// reach top-level viewport coordinates.
	jsBoundingBox = `function() {
	var r = this.getBoundingClientRect();
	var x = r.left, y = r.top;
	var w = this.ownerDocument.defaultView;
	while (w && w !== w.parent) {
		var f;
		try { f = w.frameElement; } catch (e) { break; }
		if (!f) break;
		var fr = f.getBoundingClientRect();
		x += fr.left + f.clientLeft;
		y += fr.top + f.clientTop;
		w = w.parent;
	}
	return { x: x, y: y, width: r.width, height: r.height };
}`

	jsScrollIntoView = `function(smooth) {
	this.scrollIntoView({ behavior: smooth ? 'smooth' : 'auto', block: 'center', inline: 'center' });
}`

	jsClick = `function() { this.click(); }`

	jsFocus = `function() { if (typeof this.focus === 'function') this.focus(); }`

	// The native setter keeps framework-controlled inputs in sync.
	jsSetValue = `function(value, append) {
	var next = append ? String(this.value || '') + value : value;
	var d = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(this), 'value');
	if (d && d.set) { d.set.call(this, next); } else { this.value = next; }
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

	jsListen = `function(type, id) {
	var fn = function() {
		var b = window.__guidepostEvent;
		if (typeof b === 'function') b(JSON.stringify({ type: 'listener', id: id }));
	};
	var reg = window.__ptgListeners || (window.__ptgListeners = {});
	reg[id] = { type: type, fn: fn };
	this.addEventListener(type, fn, true);
}`

	jsUnlisten = `function(id) {
	var reg = window.__ptgListeners;
	var l = reg && reg[id];
	if (!l) return;
	this.removeEventListener(l.type, l.fn, true);
	delete reg[id];
}`
)

// jsRoot is a document or open shadow root in the live page.
type jsRoot struct {
	tab *Tab
	id  runtime.RemoteObjectID
}

func (r *jsRoot) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	res, err := r.tab.callFunction(ctx, r.id, jsQuerySelector, nil, true, selector)
	if err != nil {
		return nil, err
	}
	if isNullish(res) {
		return nil, nil
	}
	return r.tab.newElement(ctx, res.ObjectID)
}

// element is a handle to a live DOM element.
type element struct {
	tab *Tab
	id  runtime.RemoteObjectID
	tag string
}

func (t *Tab) newElement(ctx context.Context, id runtime.RemoteObjectID) (*element, error) {
	var tag string
	if _, err := t.callFunction(ctx, id, jsTagName, &tag, false); err != nil {
		return nil, err
	}
	return &element{tab: t, id: id, tag: tag}, nil
}

func (e *element) TagName() string { return e.tag }

func (e *element) childRoot(ctx context.Context, decl string) (*runtime.RemoteObject, error) {
	return e.tab.callFunction(ctx, e.id, decl, nil, false)
}

func (e *element) ShadowRoot(ctx context.Context) (dom.Root, error) {
	res, err := e.childRoot(ctx, jsShadowRoot)
	if err != nil {
		return nil, err
	}
	if isNullish(res) {
		return nil, nil
	}
	return &jsRoot{tab: e.tab, id: res.ObjectID}, nil
}

func (e *element) ContentDocument(ctx context.Context) (dom.Root, error) {
	res, err := e.childRoot(ctx, jsContentDocument)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Type == runtime.TypeUndefined {
		return nil, nil
	}
	if res.Subtype == runtime.SubtypeNull || res.ObjectID == "" {
		return nil, fmt.Errorf("%s: %w", e.tag, dom.ErrCrossOrigin)
	}
	return &jsRoot{tab: e.tab, id: res.ObjectID}, nil
}

func (e *element) ComputedStyle(ctx context.Context) (dom.Style, error) {
	var st dom.Style
	_, err := e.tab.callFunction(ctx, e.id, jsComputedStyle, &st, false)
	return st, err
}

func (e *element) BoundingBox(ctx context.Context) (geometry.Rect, error) {
	var r geometry.Rect
	_, err := e.tab.callFunction(ctx, e.id, jsBoundingBox, &r, false)
	return r, err
}

func (e *element) ScrollIntoView(ctx context.Context, smooth bool) error {
	_, err := e.tab.callFunction(ctx, e.id, jsScrollIntoView, nil, false, smooth)
	return err
}

func (e *element) Click(ctx context.Context) error {
	_, err := e.tab.callFunction(ctx, e.id, jsClick, nil, false)
	return err
}

func (e *element) SetValue(ctx context.Context, value string, appendValue bool) error {
	_, err := e.tab.callFunction(ctx, e.id, jsSetValue, nil, false, value, appendValue)
	return err
}

// Press focuses the element and sends the key through the Input domain,
// so the page sees a trusted event.
func (e *element) Press(ctx context.Context, key string) error {
	if _, err := e.tab.callFunction(ctx, e.id, jsFocus, nil, false); err != nil {
		return err
	}
	return e.tab.run(ctx, func(ctx context.Context) error {
		down := input.DispatchKeyEvent(input.KeyRawDown).WithKey(key)
		if text := keyText(key); text != "" {
			down = input.DispatchKeyEvent(input.KeyDown).WithKey(key).WithText(text)
		}
		if err := down.Do(ctx); err != nil {
			return fmt.Errorf("key down %q: %w", key, err)
		}
		if err := input.DispatchKeyEvent(input.KeyUp).WithKey(key).Do(ctx); err != nil {
			return fmt.Errorf("key up %q: %w", key, err)
		}
		return nil
	})
}

// keyText is the text a key inserts, empty for named keys.
func keyText(key string) string {
	if key == "Enter" {
		return "\r"
	}
	if len([]rune(key)) == 1 {
		return key
	}
	return ""
}

func (e *element) Listen(ctx context.Context, event string, fn func()) (func(), error) {
	id := uuid.NewString()
	e.tab.addListener(id, fn)
	if _, err := e.tab.callFunction(ctx, e.id, jsListen, nil, false, event, id); err != nil {
		e.tab.removeListener(id)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.tab.removeListener(id)
			rctx, cancel := context.WithTimeout(Detach(e.tab.ctx), cleanupTimeout)
			defer cancel()
			// A detached element has already lost its listener.
			_, _ = e.tab.callFunction(rctx, e.id, jsUnlisten, nil, false, id)
		})
	}, nil
}
