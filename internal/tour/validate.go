// internal/tour/validate.go
package tour

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTour marks a definition that cannot be played.
	ErrInvalidTour = errors.New("invalid tour definition")
	// ErrTourNotFound is returned for ids absent from a registry.
	ErrTourNotFound = errors.New("tour not found")
)

// Validate checks the conditions that are fatal to playback.
func (t *Tour) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: tour is nil", ErrInvalidTour)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("%w: tour %q has no steps", ErrInvalidTour, t.ID)
	}
	for i, s := range t.Steps {
		if s.InteractionKind() == KindNone {
			continue
		}
		switch s.InteractionKind() {
		case KindGuided, KindReal:
		default:
			return fmt.Errorf("%w: step %d has unknown interaction kind %q", ErrInvalidTour, i, s.Interaction.Kind)
		}
		if s.Interaction.Action == nil || s.Interaction.Action.Type == "" {
			return fmt.Errorf("%w: step %d declares a %s interaction without an action", ErrInvalidTour, i, s.Interaction.Kind)
		}
	}
	return nil
}
