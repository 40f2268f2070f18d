// internal/overlay/event.go
package overlay

// EventKind distinguishes the inputs a surface reports.
type EventKind string

const (
	// EventControl is a click on one of the surface's own buttons.
	EventControl EventKind = "control"
	// EventKey is a keydown on the page while the surface is mounted.
	EventKey EventKind = "key"
	// EventViewport is a scroll or resize of the page.
	EventViewport EventKind = "viewport"
)

// Control names a surface button.
type Control string

const (
	ControlNext  Control = "next"
	ControlPrev  Control = "prev"
	ControlClose Control = "close"
	ControlRetry Control = "retry"
	ControlSkip  Control = "skip"
	ControlEnd   Control = "end"
)

// Keys the player reacts to.
const (
	KeyEscape     = "Escape"
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
)

// Event is one input reported by a surface.
type Event struct {
	Kind    EventKind `json:"kind"`
	Control Control   `json:"control,omitempty"`
	Key     string    `json:"key,omitempty"`
	// Final marks the last viewport event of a burst, so throttled relayout
	// always settles on the latest geometry.
	Final bool `json:"final,omitempty"`
}

// ControlEvent builds a button event.
func ControlEvent(c Control) Event { return Event{Kind: EventControl, Control: c} }

// KeyEvent builds a keydown event.
func KeyEvent(key string) Event { return Event{Kind: EventKey, Key: key} }

// ViewportEvent builds a scroll/resize event.
func ViewportEvent(final bool) Event { return Event{Kind: EventViewport, Final: final} }
