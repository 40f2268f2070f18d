// internal/dom/dom.go
package dom

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/xkilldash9x/guidepost/internal/geometry"
)

var (
	// ErrCrossOrigin is returned when a frame's document cannot be accessed.
	ErrCrossOrigin = errors.New("dom: cross-origin frame access denied")
	// ErrMalformedSelector is returned for selectors the engine cannot parse.
	ErrMalformedSelector = errors.New("dom: malformed selector")
	// ErrDetached is returned when an element handle no longer refers to a live node.
	ErrDetached = errors.New("dom: element is detached")
	// ErrUnsupported is returned by backends for operations they cannot perform.
	ErrUnsupported = errors.New("dom: operation not supported by backend")
)

// Root is anything querySelector can be called on: a document or an open shadow root.
type Root interface {
	// QuerySelector returns the first match in document order, or nil when
	// nothing matches. Matches inside nested shadow trees are not returned.
	QuerySelector(ctx context.Context, selector string) (Element, error)
}

// Element is a handle to a node in a page.
type Element interface {
	// TagName returns the upper-case tag name, as Element.tagName does for HTML.
	TagName() string

	// ShadowRoot returns the element's open shadow root, or nil when it has
	// none (closed roots are treated as absent).
	ShadowRoot(ctx context.Context) (Root, error)

	// ContentDocument returns the document of a frame element. Cross-origin
	// frames yield ErrCrossOrigin; a frame without a loaded document yields nil.
	ContentDocument(ctx context.Context) (Root, error)

	// ComputedStyle returns the visibility-relevant computed style.
	ComputedStyle(ctx context.Context) (Style, error)

	// BoundingBox returns the viewport-relative border box.
	BoundingBox(ctx context.Context) (geometry.Rect, error)

	// ScrollIntoView centres the element in the viewport.
	ScrollIntoView(ctx context.Context, smooth bool) error

	// Click activates the element as HTMLElement.click does.
	Click(ctx context.Context) error

	// SetValue assigns the element's value and dispatches input then change.
	SetValue(ctx context.Context, value string, appendValue bool) error

	// Press dispatches a keydown/keyup pair for key with the element focused.
	Press(ctx context.Context, key string) error

	// Listen registers fn for the named DOM event. The returned function
	// removes the listener and is safe to call more than once.
	Listen(ctx context.Context, event string, fn func()) (func(), error)
}

// Page is the document-level view of a browsing context.
type Page interface {
	Document(ctx context.Context) (Root, error)
	URL(ctx context.Context) (string, error)
	Viewport(ctx context.Context) (geometry.Size, error)
	Navigate(ctx context.Context, url string) error
}

// NavigationObserver delivers same-document and full navigations.
// It is supplied by the host environment instead of patching history functions.
type NavigationObserver interface {
	// Subscribe calls fn with the new URL after every navigation. The returned
	// function unsubscribes and is safe to call more than once.
	Subscribe(fn func(url string)) (func(), error)
}

// Style is the subset of computed style used for visibility checks.
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`
}

// Hidden reports whether the style alone makes an element invisible.
func (s Style) Hidden() bool {
	if strings.EqualFold(strings.TrimSpace(s.Display), "none") {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(s.Visibility), "hidden") {
		return true
	}
	if op := strings.TrimSpace(s.Opacity); op != "" {
		if v, err := strconv.ParseFloat(op, 64); err == nil && v == 0 {
			return true
		}
	}
	return false
}

// IsVisible applies the playback visibility rule: the computed style must not
// hide the element and its layout box must have a non-zero area.
func IsVisible(ctx context.Context, el Element) (bool, error) {
	if el == nil {
		return false, nil
	}
	st, err := el.ComputedStyle(ctx)
	if err != nil {
		return false, err
	}
	if st.Hidden() {
		return false, nil
	}
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return false, err
	}
	return !box.Empty(), nil
}
