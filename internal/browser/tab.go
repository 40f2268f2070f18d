// internal/browser/tab.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
)

const (
	eventBuffer    = 256
	cleanupTimeout = 2 * time.Second
)

// tabEvent is a CDP event queued for the dispatcher.
type tabEvent struct {
	binding string
	url     string
}

// Tab is one browser tab. It implements dom.Page and dom.NavigationObserver
// and owns the live overlay Surface.
type Tab struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
	navTimeout time.Duration

	events chan tabEvent
	done   chan struct{}

	mu          sync.Mutex
	mainFrame   cdp.FrameID
	listeners   map[string]func()
	subscribers map[uint64]func(string)
	nextSub     uint64
	handler     func(overlay.Event)

	surface   *Surface
	closeOnce sync.Once
	onClose   func()
}

var (
	_ dom.Page               = (*Tab)(nil)
	_ dom.NavigationObserver = (*Tab)(nil)
)

func newTab(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, navTimeout time.Duration) *Tab {
	t := &Tab{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		navTimeout:  navTimeout,
		events:      make(chan tabEvent, eventBuffer),
		done:        make(chan struct{}),
		listeners:   make(map[string]func()),
		subscribers: make(map[uint64]func(string)),
	}
	t.surface = &Surface{tab: t}
	return t
}

// open attaches the tab's listeners and installs the surface script in
// the current and every future document.
func (t *Tab) open(ctx context.Context) error {
	script, _, err := surfaceAssets()
	if err != nil {
		return err
	}

	// The event goroutine must never block on CDP calls, so it only queues.
	chromedp.ListenTarget(t.ctx, t.listen)
	go t.dispatch()

	return t.run(ctx, func(ctx context.Context) error {
		if err := runtime.AddBinding(bindingName).Do(ctx); err != nil {
			return fmt.Errorf("failed to add binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("failed to install surface script: %w", err)
		}
		if _, ex, err := runtime.Evaluate(script).Do(ctx); err != nil {
			return fmt.Errorf("failed to evaluate surface script: %w", err)
		} else if ex != nil {
			return scriptError(ex, false)
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to read frame tree: %w", err)
		}
		t.mu.Lock()
		t.mainFrame = tree.Frame.ID
		t.mu.Unlock()
		return nil
	})
}

func (t *Tab) listen(ev any) {
	var te tabEvent
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != bindingName {
			return
		}
		te.binding = e.Payload
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		t.mu.Lock()
		t.mainFrame = e.Frame.ID
		t.mu.Unlock()
		te.url = e.Frame.URL + e.Frame.URLFragment
	case *page.EventNavigatedWithinDocument:
		t.mu.Lock()
		main := e.FrameID == t.mainFrame
		t.mu.Unlock()
		if !main {
			return
		}
		te.url = e.URL
	default:
		return
	}

	select {
	case t.events <- te:
	default:
		t.logger.Warn("Tab event queue full; dropping event.")
	}
}

func (t *Tab) dispatch() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case ev := <-t.events:
			if ev.binding != "" {
				t.handleBinding(ev.binding)
				continue
			}
			t.mu.Lock()
			subs := make([]func(string), 0, len(t.subscribers))
			for _, fn := range t.subscribers {
				subs = append(subs, fn)
			}
			t.mu.Unlock()
			for _, fn := range subs {
				fn(ev.url)
			}
		}
	}
}

func (t *Tab) handleBinding(payload string) {
	msg, err := decodeBinding(payload)
	if err != nil {
		t.logger.Debug("Ignoring binding call.", zap.Error(err))
		return
	}

	t.mu.Lock()
	var fn func()
	var h func(overlay.Event)
	if msg.Type == msgListener {
		fn = t.listeners[msg.ID]
	} else {
		h = t.handler
	}
	t.mu.Unlock()

	switch {
	case fn != nil:
		fn()
	case h != nil:
		if ev, ok := surfaceEvent(msg); ok {
			h(ev)
		}
	}
}

func (t *Tab) addListener(id string, fn func()) {
	t.mu.Lock()
	t.listeners[id] = fn
	t.mu.Unlock()
}

func (t *Tab) removeListener(id string) {
	t.mu.Lock()
	delete(t.listeners, id)
	t.mu.Unlock()
}

func (t *Tab) setHandler(h func(overlay.Event)) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Surface returns the tab's overlay surface.
func (t *Tab) Surface() *Surface { return t.surface }

// Document returns the main frame's document.
func (t *Tab) Document(ctx context.Context) (dom.Root, error) {
	id, err := t.evaluateHandle(ctx, "document")
	if err != nil {
		return nil, err
	}
	return &jsRoot{tab: t, id: id}, nil
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	err := t.evaluate(ctx, "window.location.href", &u)
	return u, err
}

func (t *Tab) Viewport(ctx context.Context) (geometry.Size, error) {
	var s geometry.Size
	err := t.evaluate(ctx, "({ width: window.innerWidth, height: window.innerHeight })", &s)
	return s, err
}

// Navigate loads url and waits for the load event, bounded by the
// configured navigation timeout.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if t.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.navTimeout)
		defer cancel()
	}
	if err := t.run(ctx, chromedp.Navigate(url).Do); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (t *Tab) Subscribe(fn func(url string)) (func(), error) {
	t.mu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}, nil
}

// Close releases remote handles and closes the tab.
func (t *Tab) Close() {
	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(Detach(t.ctx), cleanupTimeout)
		if err := t.run(ctx, runtime.ReleaseObjectGroup(objectGroup).Do); err != nil {
			t.logger.Debug("Failed to release remote objects.", zap.Error(err))
		}
		cancel()
		t.cancel()
		<-t.done
		if t.onClose != nil {
			t.onClose()
		}
	})
}
