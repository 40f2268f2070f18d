// internal/player/options.go
package player

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/config"
	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// Timing holds the UI sequencing delays.
type Timing struct {
	// Transition is the wait between hiding one tooltip and showing the next step.
	Transition time.Duration
	// Tooltip is the wait between painting the overlay and showing the tooltip.
	Tooltip time.Duration
	// Settle is the wait after an interaction before advancing.
	Settle time.Duration
	// Relayout is the minimum interval between viewport-driven relayouts.
	Relayout time.Duration
}

// DefaultTiming returns the runtime delays.
func DefaultTiming() Timing {
	return Timing{
		Transition: 150 * time.Millisecond,
		Tooltip:    100 * time.Millisecond,
		Settle:     500 * time.Millisecond,
		Relayout:   16 * time.Millisecond,
	}
}

// Layout holds the overlay and positioner constants.
type Layout struct {
	BlockerPadding         float64
	TooltipGap             float64
	ViewportPadding        float64
	PreviewViewportPadding float64
	MaxURLPattern          int
}

// DefaultLayout returns the runtime layout constants.
func DefaultLayout() Layout {
	std, prev := geometry.StandaloneOptions(), geometry.PreviewOptions()
	return Layout{
		BlockerPadding:         geometry.DefaultBlockerPadding,
		TooltipGap:             std.Gap,
		ViewportPadding:        std.ViewportPadding,
		PreviewViewportPadding: prev.ViewportPadding,
		MaxURLPattern:          DefaultMaxURLPattern,
	}
}

// positionOptions returns the positioner options for mode.
func (l Layout) positionOptions(mode overlay.Mode) geometry.PositionOptions {
	if mode == overlay.ModePreview {
		opts := geometry.PreviewOptions()
		opts.Gap = l.TooltipGap
		opts.ViewportPadding = l.PreviewViewportPadding
		return opts
	}
	opts := geometry.StandaloneOptions()
	opts.Gap = l.TooltipGap
	opts.ViewportPadding = l.ViewportPadding
	return opts
}

// ActionHandler performs an automated action in place of the built-in one.
// el is nil when the step's target is optional and did not resolve.
type ActionHandler func(ctx context.Context, el dom.Element, action tour.Action) error

type options struct {
	debug          bool
	themeOverrides tour.Theme
	observer       Observer
	actionHandlers map[tour.ActionType]ActionHandler
	mode           overlay.Mode
	scheduler      Scheduler
	registry       *tour.Registry
	timing         Timing
	layout         Layout
	logger         *zap.Logger
}

func defaultOptions() options {
	return options{
		observer:       ObserverFuncs{},
		actionHandlers: map[tour.ActionType]ActionHandler{},
		mode:           overlay.ModeStandalone,
		scheduler:      SystemScheduler{},
		registry:       tour.NewRegistry(),
		timing:         DefaultTiming(),
		layout:         DefaultLayout(),
		logger:         zap.NewNop(),
	}
}

// Option configures a Player.
type Option func(*options)

// WithDebug enables diagnostic logging, including cross-origin frame failures.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithThemeOverrides applies non-zero fields over every tour's theme.
func WithThemeOverrides(t tour.Theme) Option {
	return func(o *options) { o.themeOverrides = t }
}

// WithObserver sets the lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithActionHandlers overrides built-in automated actions by type.
func WithActionHandlers(h map[tour.ActionType]ActionHandler) Option {
	return func(o *options) {
		for k, v := range h {
			o.actionHandlers[k] = v
		}
	}
}

// WithMode selects standalone or preview hosting.
func WithMode(m overlay.Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithRegistry sets the registry StartID looks tours up in.
func WithRegistry(r *tour.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithTiming replaces the sequencing delays.
func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}

// WithLayout replaces the overlay and positioner constants.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// FromConfig converts the player section of the application config into
// options: mode, debug, timing and layout.
func FromConfig(c config.PlayerConfig) []Option {
	return []Option{
		WithMode(overlay.ParseMode(c.Mode)),
		WithDebug(c.Debug),
		WithTiming(Timing{
			Transition: c.TransitionDelay,
			Tooltip:    c.TooltipDelay,
			Settle:     c.SettleDelay,
			Relayout:   c.RelayoutInterval,
		}),
		WithLayout(Layout{
			BlockerPadding:         c.BlockerPadding,
			TooltipGap:             c.TooltipGap,
			ViewportPadding:        c.ViewportPadding,
			PreviewViewportPadding: c.PreviewViewportPadding,
			MaxURLPattern:          c.MaxURLPattern,
		}),
	}
}
