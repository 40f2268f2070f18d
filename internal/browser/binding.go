// internal/browser/binding.go
package browser

import (
	"fmt"

	"github.com/xkilldash9x/guidepost/internal/overlay"
)

// bindingName is the page-visible function injected scripts report through.
const bindingName = "__guidepostEvent"

const (
	msgSurface  = "surface"
	msgListener = "listener"
)

// bindingMessage is one JSON payload sent through the binding.
type bindingMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Control string `json:"control,omitempty"`
	Key     string `json:"key,omitempty"`
	Final   bool   `json:"final,omitempty"`
	ID      string `json:"id,omitempty"`
}

func decodeBinding(payload string) (bindingMessage, error) {
	var msg bindingMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("malformed binding payload: %w", err)
	}
	switch msg.Type {
	case msgSurface, msgListener:
		return msg, nil
	default:
		return msg, fmt.Errorf("unknown binding message type %q", msg.Type)
	}
}

// surfaceEvent converts a surface message. Unknown controls and keys are
// rejected so page scripts cannot drive the player with arbitrary input.
func surfaceEvent(msg bindingMessage) (overlay.Event, bool) {
	switch overlay.EventKind(msg.Kind) {
	case overlay.EventControl:
		switch c := overlay.Control(msg.Control); c {
		case overlay.ControlNext, overlay.ControlPrev, overlay.ControlClose,
			overlay.ControlRetry, overlay.ControlSkip, overlay.ControlEnd:
			return overlay.ControlEvent(c), true
		}
	case overlay.EventKey:
		switch msg.Key {
		case overlay.KeyEscape, overlay.KeyArrowRight, overlay.KeyArrowLeft:
			return overlay.KeyEvent(msg.Key), true
		}
	case overlay.EventViewport:
		return overlay.ViewportEvent(msg.Final), true
	}
	return overlay.Event{}, false
}
