// internal/player/player.go
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/resolver"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// State is the playback state of a Player.
type State int

const (
	Idle State = iota
	ShowingStep
	AwaitingNavigation
	AwaitingTarget
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ShowingStep:
		return "showing_step"
	case AwaitingNavigation:
		return "awaiting_navigation"
	case AwaitingTarget:
		return "awaiting_target"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Player drives one tour session at a time over a page and a surface.
//
// All state is guarded by mu. Delayed work and page callbacks are routed
// through the scheduler and re-checked against epoch (per step) or session
// (per tour) before they touch state, so a continuation that outlives its
// step or session is dropped. Observer notifications are queued while locked
// and delivered by unlock.
type Player struct {
	mu       sync.Mutex
	page     dom.Page
	surface  overlay.Surface
	resolver *resolver.Resolver
	watcher  urlWatcher
	opts     options
	logger   *zap.Logger

	state   State
	tour    *tour.Tour
	index   int
	mode    overlay.Mode
	session uint64
	epoch   uint64
	ctx     context.Context
	cancel  context.CancelFunc
	timers  []Timer
	notify  []func()

	// per-step
	target        dom.Element
	trace         *resolver.Trace
	gated         bool
	stepBusy      bool
	guidedOff     func()
	transitioning bool
	tooltipShown  bool
	tooltipSize   geometry.Size
	content       overlay.TooltipContent
	relayout      *rate.Sometimes
}

// New creates a Player. nav may be nil, in which case URL-gated steps wait
// until a programmatic transition.
func New(page dom.Page, surface overlay.Surface, nav dom.NavigationObserver, opts ...Option) *Player {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.Named("player")
	return &Player{
		page:     page,
		surface:  surface,
		resolver: resolver.New(page, logger, o.debug),
		watcher:  urlWatcher{nav: nav},
		opts:     o,
		logger:   logger,
		state:    Idle,
		ctx:      context.Background(),
		cancel:   func() {},
	}
}

// Start begins playing t at step 0, stopping any session already running.
func (p *Player) Start(ctx context.Context, t *tour.Tour) error {
	return p.start(ctx, t, p.opts.mode)
}

// Preview plays a copy of t hosted in preview mode, so edits to t made while
// the preview runs do not reach it.
func (p *Player) Preview(ctx context.Context, t *tour.Tour) error {
	return p.start(ctx, t.Clone(), overlay.ModePreview)
}

// StartID starts the registered tour with the given id.
func (p *Player) StartID(ctx context.Context, id string) error {
	t, err := p.opts.registry.Get(id)
	if err != nil {
		p.logger.Error("Cannot start tour.", zap.String("tour_id", id), zap.Error(err))
		p.opts.observer.OnError(err)
		return err
	}
	return p.Start(ctx, t)
}

func (p *Player) start(ctx context.Context, t *tour.Tour, mode overlay.Mode) error {
	if err := t.Validate(); err != nil {
		p.logger.Error("Cannot start tour.", zap.Error(err))
		p.opts.observer.OnError(err)
		return err
	}

	p.lock()
	defer p.unlock()

	if p.playingLocked() {
		p.stopLocked()
	}

	p.session++
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.tour = t
	p.index = 0
	p.mode = mode
	p.relayout = &rate.Sometimes{Interval: p.opts.timing.Relayout}

	cfg := overlay.MountConfig{
		Theme: t.Theme.Resolved().Merge(p.opts.themeOverrides),
		Mode:  mode,
		Debug: p.opts.debug,
	}
	if err := p.surface.Mount(p.ctx, cfg); err != nil {
		p.cancel()
		p.state = Stopped
		err = fmt.Errorf("failed to mount playback surface: %w", err)
		p.reportLocked(err)
		return err
	}
	p.surface.SetHandler(p.handleEvent)
	p.state = ShowingStep

	p.logger.Info("Tour started.",
		zap.String("tour_id", t.ID),
		zap.String("name", t.Name),
		zap.Int("steps", len(t.Steps)),
		zap.String("mode", mode.String()),
	)
	obs := p.opts.observer
	p.queue(func() { obs.OnStart(t) })

	p.showStepLocked(0)
	return nil
}

// Stop ends the session. Calling it when nothing is playing is a no-op, and
// OnEnd fires at most once per session.
func (p *Player) Stop() {
	p.lock()
	defer p.unlock()
	if p.playingLocked() {
		p.stopLocked()
	}
}

// Next advances to the following step, or ends the session on the last one.
// Unlike the tooltip control it neither waits for a guided action nor runs a
// real step's action.
func (p *Player) Next() {
	p.lock()
	defer p.unlock()
	if p.playingLocked() {
		p.advanceLocked(false)
	}
}

// Prev moves back one step. It is a no-op on the first step.
func (p *Player) Prev() {
	p.lock()
	defer p.unlock()
	if p.playingLocked() {
		p.prevLocked()
	}
}

// GoTo transitions to step i. Out-of-range indices are ignored.
func (p *Player) GoTo(i int) {
	p.lock()
	defer p.unlock()
	if !p.playingLocked() || i < 0 || i >= len(p.tour.Steps) {
		return
	}
	p.transitionLocked(i)
}

// IsPlaying reports whether a session is active.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playingLocked()
}

// CurrentStep returns the index of the step being shown or awaited.
func (p *Player) CurrentStep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Tour returns the tour of the current or last session.
func (p *Player) Tour() *tour.Tour {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tour
}

// Trace returns the resolution trace of the current step, if it has a target.
func (p *Player) Trace() *resolver.Trace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trace
}

func (p *Player) lock() { p.mu.Lock() }

// unlock releases mu and then delivers queued observer notifications.
func (p *Player) unlock() {
	pending := p.notify
	p.notify = nil
	p.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (p *Player) queue(fn func()) {
	p.notify = append(p.notify, fn)
}

func (p *Player) reportLocked(err error) {
	p.logger.Warn("Playback error.", zap.Error(err))
	obs := p.opts.observer
	p.queue(func() { obs.OnError(err) })
}

func (p *Player) playingLocked() bool {
	switch p.state {
	case ShowingStep, AwaitingNavigation, AwaitingTarget:
		return true
	default:
		return false
	}
}

// bumpLocked invalidates every continuation scheduled so far.
func (p *Player) bumpLocked() {
	p.epoch++
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

// scheduleLocked runs fn under the lock after d, unless the step has changed
// or the session has ended by then.
func (p *Player) scheduleLocked(d time.Duration, fn func()) {
	epoch := p.epoch
	t := p.opts.scheduler.AfterFunc(d, func() {
		p.lock()
		defer p.unlock()
		if epoch != p.epoch || !p.playingLocked() {
			return
		}
		fn()
	})
	p.timers = append(p.timers, t)
}

// post hands a page callback to the scheduler so it never runs under the
// caller's locks. It is dropped if the step has changed.
func (p *Player) post(epoch uint64, fn func()) {
	p.opts.scheduler.AfterFunc(0, func() {
		p.lock()
		defer p.unlock()
		if epoch != p.epoch || !p.playingLocked() {
			return
		}
		fn()
	})
}

func (p *Player) stopLocked() {
	p.bumpLocked()
	p.clearStepLocked()
	p.watcher.uninstall()
	p.surface.SetHandler(nil)
	if err := p.surface.Unmount(context.WithoutCancel(p.ctx)); err != nil {
		p.logger.Warn("Failed to unmount playback surface.", zap.Error(err))
	}
	p.cancel()
	p.session++
	p.state = Stopped
	p.transitioning = false

	t, idx := p.tour, p.index
	p.logger.Info("Tour ended.", zap.String("tour_id", t.ID), zap.Int("step", idx+1))
	obs := p.opts.observer
	p.queue(func() { obs.OnEnd(t, idx) })
}

func (p *Player) clearStepLocked() {
	if p.guidedOff != nil {
		p.guidedOff()
		p.guidedOff = nil
	}
	p.target = nil
	p.trace = nil
	p.gated = false
	p.stepBusy = false
	p.tooltipShown = false
}

// showStepLocked evaluates step i: its URL gate, then its target, then shows it.
func (p *Player) showStepLocked(i int) {
	p.transitioning = false
	if i < 0 || i >= len(p.tour.Steps) {
		p.stopLocked()
		return
	}
	p.bumpLocked()
	p.clearStepLocked()
	p.index = i
	step := p.tour.Steps[i]
	ctx := p.ctx
	log := p.logger.With(zap.String("tour_id", p.tour.ID), zap.Int("step", i+1))

	if err := p.surface.HideMissing(ctx); err != nil {
		log.Debug("Failed to hide missing-target modal.", zap.Error(err))
	}
	if err := p.surface.HideWaiting(ctx); err != nil {
		log.Debug("Failed to hide waiting indicator.", zap.Error(err))
	}

	current, err := p.page.URL(ctx)
	if err != nil {
		p.reportLocked(fmt.Errorf("failed to read page url: %w", err))
	}
	if !MatchURL(current, step.URL, step.URLMatch, p.opts.layout.MaxURLPattern) {
		p.state = AwaitingNavigation
		log.Info("Waiting for navigation.", zap.String("url", step.URL), zap.String("current", current))
		p.hideTooltipLocked()
		if err := p.surface.ShowWaiting(ctx, step.URL); err != nil {
			p.reportLocked(fmt.Errorf("failed to show waiting indicator: %w", err))
		}
		session := p.session
		if err := p.watcher.install(current, func(url string) { p.onNavigate(session, url) }); err != nil {
			p.reportLocked(err)
		}
		return
	}

	var el dom.Element
	hasTarget := len(step.Target.Candidates()) > 0
	if hasTarget {
		el, p.trace = p.resolver.Resolve(ctx, step.Target)
	}

	if hasTarget && el == nil && step.TargetRequired() {
		p.state = AwaitingTarget
		log.Warn("Step target not found.")
		p.hideTooltipLocked()
		p.paintLocked(nil)
		if err := p.surface.ShowMissing(ctx, overlay.NewMissingContent(step, i)); err != nil {
			p.reportLocked(fmt.Errorf("failed to show missing-target modal: %w", err))
		}
		return
	}

	p.state = ShowingStep
	p.target = el
	if el != nil {
		if err := el.ScrollIntoView(ctx, false); err != nil {
			log.Debug("Failed to scroll target into view.", zap.Error(err))
		}
	}
	p.paintLocked(p.targetBoxLocked())
	p.attachGuidedLocked(step)
	p.scheduleLocked(p.opts.timing.Tooltip, p.showTooltipLocked)

	log.Debug("Showing step.", zap.Bool("targeted", el != nil), zap.Bool("gated", p.gated))
	obs := p.opts.observer
	p.queue(func() { obs.OnStepChange(i, step) })
}

// targetBoxLocked returns the target's box, or nil when there is no target or
// it cannot be measured.
func (p *Player) targetBoxLocked() *geometry.Rect {
	if p.target == nil {
		return nil
	}
	box, err := p.target.BoundingBox(p.ctx)
	if err != nil {
		p.logger.Debug("Failed to measure target.", zap.Error(err))
		return nil
	}
	return &box
}

func (p *Player) viewportLocked() geometry.Size {
	vp, err := p.page.Viewport(p.ctx)
	if err != nil {
		p.logger.Debug("Failed to read viewport.", zap.Error(err))
	}
	return vp
}

func (p *Player) paintLocked(box *geometry.Rect) {
	layout := geometry.Overlay(box, p.viewportLocked(), p.opts.layout.BlockerPadding)
	if err := p.surface.PaintOverlay(p.ctx, layout); err != nil {
		p.reportLocked(fmt.Errorf("failed to paint overlay: %w", err))
	}
}

func (p *Player) showTooltipLocked() {
	if p.state != ShowingStep {
		return
	}
	step := p.tour.Steps[p.index]
	p.content = overlay.NewTooltipContent(step, p.index, len(p.tour.Steps), p.gated)
	size, err := p.surface.RenderTooltip(p.ctx, p.content)
	if err != nil {
		p.reportLocked(fmt.Errorf("failed to render tooltip: %w", err))
		return
	}
	p.tooltipSize = size
	p.placeTooltipLocked()
}

func (p *Player) placeTooltipLocked() {
	step := p.tour.Steps[p.index]
	pos := geometry.Place(p.tooltipSize, p.targetBoxLocked(), step.PlacementHint(), p.viewportLocked(), p.opts.layout.positionOptions(p.mode))
	if err := p.surface.PlaceTooltip(p.ctx, pos); err != nil {
		p.reportLocked(fmt.Errorf("failed to place tooltip: %w", err))
		return
	}
	p.tooltipShown = true
}

func (p *Player) hideTooltipLocked() {
	p.tooltipShown = false
	if err := p.surface.HideTooltip(p.ctx); err != nil {
		p.logger.Debug("Failed to hide tooltip.", zap.Error(err))
	}
}

// relayoutLocked recomputes the cutout and tooltip for the current step.
func (p *Player) relayoutLocked() {
	if p.state != ShowingStep || p.transitioning {
		return
	}
	p.paintLocked(p.targetBoxLocked())
	if p.tooltipShown {
		p.placeTooltipLocked()
	}
}

// advanceLocked handles a request to move past the current step. Programmatic
// requests always advance. A user request respects a pending guided gate and
// runs a real step's action before advancing.
func (p *Player) advanceLocked(user bool) {
	if !user {
		p.nextLocked()
		return
	}
	if p.stepBusy || p.transitioning {
		return
	}
	if p.state == ShowingStep {
		step := p.tour.Steps[p.index]
		switch step.InteractionKind() {
		case tour.KindGuided:
			if p.gated {
				p.logger.Debug("Next held until the guided action completes.", zap.Int("step", p.index+1))
				return
			}
		case tour.KindReal:
			p.performLocked(step)
			return
		}
	}
	p.nextLocked()
}

func (p *Player) nextLocked() {
	if p.index >= len(p.tour.Steps)-1 {
		p.stopLocked()
		return
	}
	p.transitionLocked(p.index + 1)
}

func (p *Player) prevLocked() {
	if p.index <= 0 {
		return
	}
	p.transitionLocked(p.index - 1)
}

// transitionLocked hides the tooltip and shows step i after the transition
// delay. A later transition replaces a pending one.
func (p *Player) transitionLocked(i int) {
	p.bumpLocked()
	p.clearStepLocked()
	p.hideTooltipLocked()
	p.transitioning = true
	p.scheduleLocked(p.opts.timing.Transition, func() { p.showStepLocked(i) })
}

// handleEvent receives surface events. Surfaces call it without their own
// locks held.
func (p *Player) handleEvent(ev overlay.Event) {
	p.lock()
	defer p.unlock()
	if !p.playingLocked() {
		return
	}

	switch ev.Kind {
	case overlay.EventKey:
		switch ev.Key {
		case overlay.KeyEscape:
			p.stopLocked()
		case overlay.KeyArrowRight:
			p.advanceLocked(true)
		case overlay.KeyArrowLeft:
			p.prevLocked()
		}
	case overlay.EventControl:
		switch ev.Control {
		case overlay.ControlNext:
			p.advanceLocked(true)
		case overlay.ControlPrev:
			p.prevLocked()
		case overlay.ControlClose, overlay.ControlEnd:
			p.stopLocked()
		case overlay.ControlRetry:
			if p.state == AwaitingTarget {
				p.showStepLocked(p.index)
			}
		case overlay.ControlSkip:
			if p.state == AwaitingTarget {
				if err := p.surface.HideMissing(p.ctx); err != nil {
					p.logger.Debug("Failed to hide missing-target modal.", zap.Error(err))
				}
				p.nextLocked()
			}
		}
	case overlay.EventViewport:
		// A zero Sometimes would run only once, so no interval means no throttle.
		if ev.Final || p.opts.timing.Relayout <= 0 {
			p.relayoutLocked()
			return
		}
		p.relayout.Do(p.relayoutLocked)
	}
}

// onNavigate is the watcher callback. It re-evaluates a step that is waiting
// on the URL or its target, and relayouts a step already showing.
func (p *Player) onNavigate(session uint64, url string) {
	p.opts.scheduler.AfterFunc(0, func() {
		p.lock()
		defer p.unlock()
		if session != p.session || !p.playingLocked() || !p.watcher.changed(url) {
			return
		}
		p.logger.Debug("Page navigated.", zap.String("url", url), zap.String("state", p.state.String()))
		if p.transitioning {
			return
		}
		switch p.state {
		case AwaitingNavigation, AwaitingTarget:
			p.showStepLocked(p.index)
		case ShowingStep:
			p.relayoutLocked()
		}
	})
}
