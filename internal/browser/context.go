// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext returns a context carrying primary's values that is
// canceled when either primary or secondary is. chromedp needs the tab's
// context values while callers supply the deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// detached keeps its parent's values but none of its cancellation.
type detached struct {
	context.Context
}

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }

// Detach returns a context with ctx's values that outlives ctx, for
// cleanup that must still reach the tab.
func Detach(ctx context.Context) context.Context {
	return detached{ctx}
}
