// internal/player/observer.go
package player

import "github.com/xkilldash9x/guidepost/internal/tour"

// Observer receives playback lifecycle events. Methods are called without the
// player's lock held, so they may call back into the player.
type Observer interface {
	OnStart(t *tour.Tour)
	// OnEnd fires once per session with the index the session ended on.
	OnEnd(t *tour.Tour, index int)
	OnStepChange(index int, step tour.Step)
	OnError(err error)
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start      func(t *tour.Tour)
	End        func(t *tour.Tour, index int)
	StepChange func(index int, step tour.Step)
	Error      func(err error)
}

var _ Observer = ObserverFuncs{}

func (o ObserverFuncs) OnStart(t *tour.Tour) {
	if o.Start != nil {
		o.Start(t)
	}
}

func (o ObserverFuncs) OnEnd(t *tour.Tour, index int) {
	if o.End != nil {
		o.End(t, index)
	}
}

func (o ObserverFuncs) OnStepChange(index int, step tour.Step) {
	if o.StepChange != nil {
		o.StepChange(index, step)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}
