// internal/player/watcher.go
package player

import (
	"fmt"

	"github.com/xkilldash9x/guidepost/internal/dom"
)

// urlWatcher holds the player's single navigation subscription.
type urlWatcher struct {
	nav    dom.NavigationObserver
	unsub  func()
	last   string
	active bool
}

// install subscribes once; later calls while active are no-ops. onChange is
// called from the observer's context for every URL different from the last
// one seen.
func (w *urlWatcher) install(current string, onChange func(url string)) error {
	if w.active {
		return nil
	}
	if w.nav == nil {
		return fmt.Errorf("no navigation observer available")
	}
	w.last = current
	unsub, err := w.nav.Subscribe(onChange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to navigation: %w", err)
	}
	w.unsub = unsub
	w.active = true
	return nil
}

// changed records url and reports whether it differs from the last one seen.
func (w *urlWatcher) changed(url string) bool {
	if !w.active || url == w.last {
		return false
	}
	w.last = url
	return true
}

// uninstall drops the subscription. Safe when not installed.
func (w *urlWatcher) uninstall() {
	if w.unsub != nil {
		w.unsub()
	}
	w.unsub = nil
	w.active = false
	w.last = ""
}
