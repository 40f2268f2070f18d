// internal/player/interaction.go
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// ErrNoTarget is reported when an element action runs on a step whose
// optional target did not resolve.
var ErrNoTarget = errors.New("action requires a resolved target")

// guidedEvent is the DOM event a guided step waits for, or "" when the
// action has nothing to listen for.
func guidedEvent(t tour.ActionType) string {
	switch t {
	case tour.ActionClick:
		return "click"
	case tour.ActionInput, tour.ActionSelect:
		return "change"
	case tour.ActionKeydown:
		return "keydown"
	default:
		return ""
	}
}

// perform runs an automated action against el. Custom handlers win over the
// built-ins.
func (p *Player) perform(ctx context.Context, el dom.Element, a tour.Action) error {
	if h, ok := p.opts.actionHandlers[a.Type]; ok {
		return h(ctx, el, a)
	}

	needsTarget := a.Type != tour.ActionNavigate && a.Type != tour.ActionWait
	if needsTarget && el == nil {
		return fmt.Errorf("%s: %w", a.Type, ErrNoTarget)
	}

	switch a.Type {
	case tour.ActionClick:
		return el.Click(ctx)
	case tour.ActionInput:
		return el.SetValue(ctx, a.Value, !a.Replaces())
	case tour.ActionSelect:
		return el.SetValue(ctx, a.Value, false)
	case tour.ActionScroll:
		return el.ScrollIntoView(ctx, true)
	case tour.ActionKeydown:
		return el.Press(ctx, a.Key)
	case tour.ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action has no url")
		}
		return p.page.Navigate(ctx, a.URL)
	case tour.ActionWait:
		return nil
	default:
		return fmt.Errorf("unsupported action type %q", a.Type)
	}
}

// performLocked runs the step's automated action and schedules the advance
// after the settle delay, plus the action's own wait. A failed action is
// reported but still advances, so a broken page cannot strand the tour.
func (p *Player) performLocked(step tour.Step) {
	a := step.Interaction.Action
	p.stepBusy = true
	if err := p.perform(p.ctx, p.target, *a); err != nil {
		p.reportLocked(fmt.Errorf("step %d: automated %s failed: %w", p.index+1, a.Type, err))
	} else {
		p.logger.Debug("Performed automated action.", zap.Int("step", p.index+1), zap.String("action", string(a.Type)))
	}
	p.scheduleLocked(p.opts.timing.Settle+a.WaitDuration(), p.nextLocked)
}

// attachGuidedLocked installs the one-shot listener of a guided step and
// gates the Next control until it fires.
func (p *Player) attachGuidedLocked(step tour.Step) {
	if step.InteractionKind() != tour.KindGuided || p.target == nil {
		return
	}
	a := step.Interaction.Action
	event := guidedEvent(a.Type)
	if event == "" {
		return
	}

	epoch := p.epoch
	var fired atomic.Bool
	off, err := p.target.Listen(p.ctx, event, func() {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		p.post(epoch, p.guidedFiredLocked)
	})
	if err != nil {
		p.reportLocked(fmt.Errorf("step %d: failed to listen for %s: %w", p.index+1, event, err))
		return
	}
	p.guidedOff = off
	p.gated = true
}

// guidedFiredLocked releases the gate, re-enables Next and schedules the advance.
func (p *Player) guidedFiredLocked() {
	if p.guidedOff != nil {
		p.guidedOff()
		p.guidedOff = nil
	}
	p.gated = false
	p.stepBusy = true
	step := p.tour.Steps[p.index]
	p.logger.Debug("Guided action completed.", zap.Int("step", p.index+1))

	if p.tooltipShown {
		p.content = overlay.NewTooltipContent(step, p.index, len(p.tour.Steps), false)
		if _, err := p.surface.RenderTooltip(p.ctx, p.content); err != nil {
			p.reportLocked(fmt.Errorf("failed to render tooltip: %w", err))
		} else {
			p.placeTooltipLocked()
		}
	}
	p.scheduleLocked(p.opts.timing.Settle+step.Interaction.Action.WaitDuration(), p.nextLocked)
}
