package player_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/guidepost/internal/browser/headless"
	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/player"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

const pageURL = "https://app.example.com/dashboard"

const fixture = `<!DOCTYPE html><html><body>
<button id="save" data-rect="100,200,80,30">Save</button>
<input id="name" value="old" data-rect="100,300,200,30">
<select id="plan" data-rect="100,400,200,30"><option>free</option><option>pro</option></select>
<a id="settings" href="/settings" data-rect="10,10,60,20">Settings</a>
<div id="ghost" style="display:none">gone</div>
</body></html>`

// recorder collects observer callbacks.
type recorder struct {
	mu      sync.Mutex
	starts  int
	ends    []int
	changes []int
	errs    []error
}

func (r *recorder) observer() player.Observer {
	return player.ObserverFuncs{
		Start: func(*tour.Tour) {
			r.mu.Lock()
			r.starts++
			r.mu.Unlock()
		},
		End: func(_ *tour.Tour, i int) {
			r.mu.Lock()
			r.ends = append(r.ends, i)
			r.mu.Unlock()
		},
		StepChange: func(i int, _ tour.Step) {
			r.mu.Lock()
			r.changes = append(r.changes, i)
			r.mu.Unlock()
		},
		Error: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (starts int, ends, changes []int, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, append([]int(nil), r.ends...), append([]int(nil), r.changes...), append([]error(nil), r.errs...)
}

type harness struct {
	page    *headless.Page
	surface *headless.Surface
	clock   *player.ManualScheduler
	rec     *recorder
	player  *player.Player
}

func newHarness(t *testing.T, opts ...player.Option) *harness {
	t.Helper()
	page, err := headless.NewPage(pageURL, fixture)
	require.NoError(t, err)
	h := &harness{
		page:    page,
		surface: headless.NewSurface(page),
		clock:   player.NewManualScheduler(),
		rec:     &recorder{},
	}
	opts = append([]player.Option{
		player.WithScheduler(h.clock),
		player.WithObserver(h.rec.observer()),
		player.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	h.player = player.New(page, h.surface, page, opts...)
	return h
}

// settle runs everything due within d of virtual time.
func (h *harness) settle(d time.Duration) { h.clock.Advance(d) }

// show lets a transition and the tooltip delay elapse.
func (h *harness) show() { h.settle(time.Second) }

func css(sel string) *tour.Target {
	return &tour.Target{Primary: &tour.SelectorCandidate{Selector: sel, Type: tour.SelectorCSS}}
}

func step(title string, target *tour.Target) tour.Step {
	return tour.Step{ID: title, Title: title, Body: title + " body", Target: target}
}

func newTour(steps ...tour.Step) *tour.Tour {
	t := tour.New("Test Tour")
	t.Steps = steps
	return t
}

func threeSteps() *tour.Tour {
	return newTour(step("One", css("#save")), step("Two", css("#name")), step("Three", nil))
}

func TestPlayer_StartShowsFirstStep(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.player.Start(ctx, threeSteps()))
	assert.True(t, h.player.IsPlaying())
	assert.Equal(t, player.ShowingStep, h.player.State())
	assert.Equal(t, 0, h.player.CurrentStep())

	st := h.surface.State()
	assert.True(t, st.Mounted)
	assert.True(t, st.OverlayPainted)
	assert.Equal(t, geometry.Rect{X: 96, Y: 196, Width: 88, Height: 38}, st.Overlay.Cutout)
	assert.False(t, st.Tooltip.Visible, "tooltip waits for its delay")

	h.settle(99 * time.Millisecond)
	assert.False(t, h.surface.State().Tooltip.Visible)
	h.settle(time.Millisecond)

	st = h.surface.State()
	require.True(t, st.Tooltip.Visible)
	assert.Equal(t, "One", st.Tooltip.Content.Title)
	assert.Equal(t, "1 of 3", st.Tooltip.Content.Progress)
	assert.False(t, st.Tooltip.Content.ShowBack)
	assert.Equal(t, "Next", st.Tooltip.Content.NextLabel)

	assert.Contains(t, h.page.Actions(), "scroll button#save")
	assert.True(t, h.page.ScrollLocked())

	starts, _, changes, _ := h.rec.snapshot()
	assert.Equal(t, 1, starts)
	assert.Equal(t, []int{0}, changes)

	h.player.Stop()
}

func TestPlayer_InvalidTour(t *testing.T) {
	h := newHarness(t)
	err := h.player.Start(context.Background(), newTour())
	require.ErrorIs(t, err, tour.ErrInvalidTour)
	assert.False(t, h.player.IsPlaying())
	assert.False(t, h.surface.State().Mounted)

	_, _, _, errs := h.rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], tour.ErrInvalidTour)
}

func TestPlayer_Navigation(t *testing.T) {
	ctx := context.Background()

	t.Run("NextAtLastStepStops", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(step("Only", nil))))
		h.show()

		h.player.Next()
		assert.False(t, h.player.IsPlaying())
		assert.Equal(t, player.Stopped, h.player.State())
		_, ends, _, _ := h.rec.snapshot()
		assert.Equal(t, []int{0}, ends)
		assert.False(t, h.surface.State().Mounted)
		assert.False(t, h.page.ScrollLocked())
	})

	t.Run("PrevAtFirstStepIsANoOp", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		h.player.Prev()
		assert.Zero(t, h.clock.Pending())
		assert.True(t, h.surface.State().Tooltip.Visible)
		assert.Equal(t, 0, h.player.CurrentStep())
		h.player.Stop()
	})

	t.Run("GotoOutOfRangeIsANoOp", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		for _, i := range []int{-1, 3, 100} {
			h.player.GoTo(i)
			h.show()
			assert.Equal(t, 0, h.player.CurrentStep())
		}
		h.player.Stop()
	})

	t.Run("NextThenPrev", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		h.player.Next()
		assert.False(t, h.surface.State().Tooltip.Visible, "tooltip hides during the transition")
		h.settle(149 * time.Millisecond)
		assert.Equal(t, 0, h.player.CurrentStep())
		h.settle(time.Millisecond)
		assert.Equal(t, 1, h.player.CurrentStep())
		h.settle(100 * time.Millisecond)

		st := h.surface.State()
		assert.Equal(t, "Two", st.Tooltip.Content.Title)
		assert.True(t, st.Tooltip.Content.ShowBack)

		h.player.Prev()
		h.show()
		assert.Equal(t, "One", h.surface.State().Tooltip.Content.Title)

		_, _, changes, _ := h.rec.snapshot()
		assert.Equal(t, []int{0, 1, 0}, changes)
		h.player.Stop()
	})

	t.Run("GotoJumps", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		h.player.GoTo(2)
		h.show()
		st := h.surface.State()
		assert.Equal(t, "Three", st.Tooltip.Content.Title)
		assert.Equal(t, "Finish", st.Tooltip.Content.NextLabel)
		assert.True(t, st.Overlay.FullScreen, "untargeted steps block the whole page")
		assert.Equal(t, geometry.PlacementCenter, st.Tooltip.Position.Placement)
		h.player.Stop()
	})

	t.Run("PendingTransitionIsReplaced", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		h.player.GoTo(2)
		h.player.GoTo(1)
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		_, _, changes, _ := h.rec.snapshot()
		assert.Equal(t, []int{0, 1}, changes)
		h.player.Stop()
	})
}

func TestPlayer_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	require.NoError(t, h.player.Start(context.Background(), threeSteps()))

	h.player.Stop()
	h.player.Stop()
	h.show()

	_, ends, _, _ := h.rec.snapshot()
	assert.Equal(t, []int{0}, ends)
	assert.False(t, h.surface.State().Tooltip.Visible, "the pending tooltip never shows")
	assert.Zero(t, h.page.Subscribers())

	// Calls after stop do nothing.
	h.player.Next()
	h.player.GoTo(1)
	h.show()
	assert.Equal(t, player.Stopped, h.player.State())
}

func TestPlayer_RestartStopsPreviousSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.player.Start(ctx, threeSteps()))
	h.show()
	h.player.Next()

	second := newTour(step("Other", nil))
	require.NoError(t, h.player.Start(ctx, second))
	h.show()

	assert.Equal(t, 0, h.player.CurrentStep())
	assert.Equal(t, "Other", h.surface.State().Tooltip.Content.Title)
	assert.Same(t, second, h.player.Tour())

	starts, ends, _, _ := h.rec.snapshot()
	assert.Equal(t, 2, starts)
	assert.Equal(t, []int{0}, ends)
	h.player.Stop()
}

func TestPlayer_MissingTarget(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipAdvancesToTheNextStep", func(t *testing.T) {
		h := newHarness(t)
		tr := newTour(step("Missing", css("#missing")), step("Found", css("#save")))
		require.NoError(t, h.player.Start(ctx, tr))
		h.show()

		assert.Equal(t, player.AwaitingTarget, h.player.State())
		st := h.surface.State()
		require.NotNil(t, st.Missing)
		assert.Equal(t, "Element Not Found", st.Missing.Title)
		assert.Equal(t, 0, st.Missing.StepIndex)
		assert.False(t, st.Tooltip.Visible)

		trace := h.player.Trace()
		require.NotNil(t, trace)
		_, matched := trace.Matched()
		assert.False(t, matched)

		require.True(t, h.surface.Click(overlay.ControlSkip))
		assert.Nil(t, h.surface.State().Missing)
		h.show()

		st = h.surface.State()
		assert.Equal(t, player.ShowingStep, h.player.State())
		assert.True(t, st.Tooltip.Visible)
		assert.Equal(t, "Found", st.Tooltip.Content.Title)
		assert.Equal(t, "2 of 2", st.Tooltip.Content.Progress)
		h.player.Stop()
	})

	t.Run("InvisibleCandidatesCountAsMissing", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(step("Ghost", css("#ghost")))))
		assert.Equal(t, player.AwaitingTarget, h.player.State())
		h.player.Stop()
	})

	t.Run("RetryFindsATargetAddedLater", func(t *testing.T) {
		h := newHarness(t)
		tr := newTour(step("Late", &tour.Target{
			Primary:   &tour.SelectorCandidate{Selector: "#late", Type: tour.SelectorCSS},
			Fallbacks: []*tour.SelectorCandidate{{Selector: "#not-yet", Type: tour.SelectorID}},
		}))
		require.NoError(t, h.player.Start(ctx, tr))
		require.Equal(t, player.AwaitingTarget, h.player.State())

		tr.Steps[0].Target.Fallbacks[0].Selector = "#name"
		require.True(t, h.surface.Click(overlay.ControlRetry))
		h.show()
		assert.Equal(t, player.ShowingStep, h.player.State())
		_, matched := h.player.Trace().Matched()
		assert.True(t, matched)
		h.player.Stop()
	})

	t.Run("EndStops", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(step("Missing", css("#missing")))))
		require.True(t, h.surface.Click(overlay.ControlEnd))
		assert.False(t, h.player.IsPlaying())
	})

	t.Run("OptionalTargetFallsBackToACenteredTooltip", func(t *testing.T) {
		h := newHarness(t)
		s := step("Optional", css("#missing"))
		s.RequireTarget = tour.Bool(false)
		require.NoError(t, h.player.Start(ctx, newTour(s)))
		h.show()

		st := h.surface.State()
		assert.Equal(t, player.ShowingStep, h.player.State())
		assert.Nil(t, st.Missing)
		assert.True(t, st.Overlay.FullScreen)
		assert.Equal(t, geometry.PlacementCenter, st.Tooltip.Position.Placement)
		h.player.Stop()
	})
}

func TestPlayer_GuidedStep(t *testing.T) {
	ctx := context.Background()
	guided := func(action tour.ActionType, target string) tour.Step {
		s := step("Guided", css(target))
		s.Interaction = &tour.Interaction{Kind: tour.KindGuided, Action: &tour.Action{Type: action}}
		return s
	}

	t.Run("NextStaysDisabledUntilTheEventFires", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(guided(tour.ActionClick, "#save"), step("After", nil))))
		h.show()

		st := h.surface.State()
		assert.True(t, st.Tooltip.Content.NextDisabled)
		assert.Equal(t, "Complete the action to proceed", st.Tooltip.Content.NextTitle)
		assert.False(t, h.surface.Click(overlay.ControlNext), "the disabled button swallows clicks")

		require.True(t, h.surface.Press(overlay.KeyArrowRight))
		h.show()
		assert.Equal(t, 0, h.player.CurrentStep(), "arrow keys do not bypass the gate")
		assert.Equal(t, 1, h.page.ListenerCount(ctx, "#save", "click"))

		require.NoError(t, h.page.Fire(ctx, "#save", "click"))
		require.NoError(t, h.page.Fire(ctx, "#save", "click"))
		h.settle(0)

		assert.False(t, h.surface.State().Tooltip.Content.NextDisabled, "next re-enables once the action happens")
		assert.Zero(t, h.page.ListenerCount(ctx, "#save", "click"))

		h.settle(499 * time.Millisecond)
		assert.Equal(t, 0, h.player.CurrentStep())
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())

		_, _, changes, _ := h.rec.snapshot()
		assert.Equal(t, []int{0, 1}, changes, "a double fire advances once")
		h.player.Stop()
	})

	t.Run("InputWaitsForChange", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(guided(tour.ActionInput, "#name"), step("After", nil))))
		h.show()

		require.NoError(t, h.page.Fire(ctx, "#name", "input"))
		h.show()
		assert.Equal(t, 0, h.player.CurrentStep())

		require.NoError(t, h.page.Fire(ctx, "#name", "change"))
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		h.player.Stop()
	})

	t.Run("ProgrammaticNextSkipsTheGate", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(guided(tour.ActionClick, "#save"), step("After", nil))))
		h.show()

		h.player.Next()
		assert.Zero(t, h.page.ListenerCount(ctx, "#save", "click"), "leaving the step removes its listener")
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		h.player.Stop()
	})

	t.Run("WaitHasNothingToListenFor", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(guided(tour.ActionWait, "#save"))))
		h.show()
		assert.False(t, h.surface.State().Tooltip.Content.NextDisabled)
		h.player.Stop()
	})

	t.Run("FireAfterStopIsIgnored", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(guided(tour.ActionClick, "#save"), step("After", nil))))
		h.show()
		require.NoError(t, h.page.Fire(ctx, "#save", "click"))
		h.player.Stop()
		h.show()
		_, ends, changes, _ := h.rec.snapshot()
		assert.Equal(t, []int{0}, changes)
		assert.Equal(t, []int{0}, ends)
	})
}

func TestPlayer_RealStep(t *testing.T) {
	ctx := context.Background()
	real := func(a tour.Action, target *tour.Target) tour.Step {
		s := step("Real", target)
		s.Interaction = &tour.Interaction{Kind: tour.KindReal, Action: &a}
		return s
	}

	tests := []struct {
		name   string
		action tour.Action
		target *tour.Target
		want   string
	}{
		{"click", tour.Action{Type: tour.ActionClick}, css("#save"), "click button#save"},
		{"input replaces", tour.Action{Type: tour.ActionInput, Value: "new"}, css("#name"), `set input#name="new"`},
		{"input appends", tour.Action{Type: tour.ActionInput, Value: "er", ClearFirst: tour.Bool(false)}, css("#name"), `set input#name="older"`},
		{"select", tour.Action{Type: tour.ActionSelect, Value: "pro"}, css("#plan"), `set select#plan="pro"`},
		{"keydown", tour.Action{Type: tour.ActionKeydown, Key: "Enter"}, css("#name"), "press Enter on input#name"},
		{"navigate", tour.Action{Type: tour.ActionNavigate, URL: "/reports"}, nil, "navigate https://app.example.com/reports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.player.Start(ctx, newTour(real(tt.action, tt.target), step("After", nil))))
			h.show()

			require.True(t, h.surface.Click(overlay.ControlNext))
			assert.Contains(t, h.page.Actions(), tt.want)
			assert.Equal(t, 0, h.player.CurrentStep(), "advance waits for the settle delay")

			h.show()
			assert.Equal(t, 1, h.player.CurrentStep())
			_, _, _, errs := h.rec.snapshot()
			assert.Empty(t, errs)
			h.player.Stop()
		})
	}

	t.Run("WaitExtendsTheSettleDelay", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(real(tour.Action{Type: tour.ActionWait, Duration: 1000}, nil), step("After", nil))))
		h.show()
		require.True(t, h.surface.Click(overlay.ControlNext))
		h.settle(1499 * time.Millisecond)
		assert.Equal(t, 0, h.player.CurrentStep())
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		h.player.Stop()
	})

	t.Run("FailedActionIsReportedAndStillAdvances", func(t *testing.T) {
		h := newHarness(t)
		s := real(tour.Action{Type: tour.ActionClick}, css("#missing"))
		s.RequireTarget = tour.Bool(false)
		require.NoError(t, h.player.Start(ctx, newTour(s, step("After", nil))))
		h.show()

		require.True(t, h.surface.Click(overlay.ControlNext))
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		_, _, _, errs := h.rec.snapshot()
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], player.ErrNoTarget)
		h.player.Stop()
	})

	t.Run("CustomHandlerOverridesTheBuiltIn", func(t *testing.T) {
		var got []string
		handler := func(ctx context.Context, el dom.Element, a tour.Action) error {
			got = append(got, el.TagName()+":"+string(a.Type))
			return errors.New("boom")
		}
		h := newHarness(t, player.WithActionHandlers(map[tour.ActionType]player.ActionHandler{tour.ActionClick: handler}))
		require.NoError(t, h.player.Start(ctx, newTour(real(tour.Action{Type: tour.ActionClick}, css("#save")), step("After", nil))))
		h.show()

		require.True(t, h.surface.Click(overlay.ControlNext))
		assert.Equal(t, []string{"BUTTON:click"}, got)
		assert.NotContains(t, h.page.Actions(), "click button#save")

		h.show()
		_, _, _, errs := h.rec.snapshot()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "boom")
		h.player.Stop()
	})

	t.Run("ProgrammaticNextDoesNotAct", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(real(tour.Action{Type: tour.ActionClick}, css("#save")), step("After", nil))))
		h.show()
		h.player.Next()
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		assert.NotContains(t, h.page.Actions(), "click button#save")
		h.player.Stop()
	})
}

func TestPlayer_URLGate(t *testing.T) {
	ctx := context.Background()

	t.Run("WaitsForAMatchingNavigation", func(t *testing.T) {
		h := newHarness(t)
		gated := step("Settings", css("#save"))
		gated.URL = "https://app.example.com/settings"
		require.NoError(t, h.player.Start(ctx, newTour(step("First", nil), gated)))
		h.show()
		h.player.Next()
		h.show()

		assert.Equal(t, player.AwaitingNavigation, h.player.State())
		st := h.surface.State()
		assert.True(t, st.WaitingVisible)
		assert.Equal(t, "Waiting for navigation to: https://app.example.com/settings", st.Waiting)
		assert.False(t, st.Tooltip.Visible)
		assert.Equal(t, 1, h.page.Subscribers())

		h.page.SetURL("https://app.example.com/other")
		h.show()
		assert.Equal(t, player.AwaitingNavigation, h.player.State())

		el, err := h.page.Query(ctx, "#settings")
		require.NoError(t, err)
		require.NoError(t, el.Click(ctx))
		h.show()

		st = h.surface.State()
		assert.Equal(t, player.ShowingStep, h.player.State())
		assert.False(t, st.WaitingVisible)
		assert.Equal(t, "Settings", st.Tooltip.Content.Title)

		h.player.Stop()
		assert.Zero(t, h.page.Subscribers(), "stop drops the navigation subscription")
	})

	t.Run("RegexGate", func(t *testing.T) {
		h := newHarness(t)
		s := step("Dash", nil)
		s.URL = `^https://app\.example\.com/dash`
		s.URLMatch = tour.MatchRegex
		require.NoError(t, h.player.Start(ctx, newTour(s)))
		assert.Equal(t, player.ShowingStep, h.player.State())
		h.player.Stop()
	})

	t.Run("NextSkipsAStepStillWaiting", func(t *testing.T) {
		h := newHarness(t)
		s := step("Elsewhere", nil)
		s.URL = "https://elsewhere.example.com"
		require.NoError(t, h.player.Start(ctx, newTour(s, step("Here", nil))))
		require.Equal(t, player.AwaitingNavigation, h.player.State())

		h.player.Next()
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		assert.Equal(t, player.ShowingStep, h.player.State())
		assert.False(t, h.surface.State().WaitingVisible)
		h.player.Stop()
	})

	t.Run("NavigationRetriesAMissingTarget", func(t *testing.T) {
		h := newHarness(t)
		first := step("Nav", nil)
		first.URL = "https://app.example.com/settings"
		require.NoError(t, h.player.Start(ctx, newTour(first, step("Missing", css("#missing")))))
		h.page.SetURL("https://app.example.com/settings")
		h.show()
		require.Equal(t, player.ShowingStep, h.player.State())

		h.player.Next()
		h.show()
		require.Equal(t, player.AwaitingTarget, h.player.State())

		h.page.SetURL("https://app.example.com/settings/profile")
		h.show()
		assert.Equal(t, player.AwaitingTarget, h.player.State())
		assert.NotNil(t, h.surface.State().Missing, "the modal is shown again after the re-check")
		h.player.Stop()
	})
}

func TestPlayer_KeysAndControls(t *testing.T) {
	ctx := context.Background()

	t.Run("ArrowsMoveEscapeStops", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		h.surface.Press(overlay.KeyArrowRight)
		h.show()
		assert.Equal(t, 1, h.player.CurrentStep())
		h.surface.Press(overlay.KeyArrowLeft)
		h.show()
		assert.Equal(t, 0, h.player.CurrentStep())

		h.surface.Press("Enter")
		assert.True(t, h.player.IsPlaying())
		h.surface.Press(overlay.KeyEscape)
		assert.False(t, h.player.IsPlaying())
	})

	t.Run("TooltipButtons", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, threeSteps()))
		h.show()

		require.True(t, h.surface.Click(overlay.ControlNext))
		assert.False(t, h.surface.Click(overlay.ControlNext), "the tooltip is hidden during the transition")
		h.show()
		require.True(t, h.surface.Click(overlay.ControlPrev))
		h.show()
		assert.Equal(t, 0, h.player.CurrentStep())
		require.True(t, h.surface.Click(overlay.ControlClose))
		assert.False(t, h.player.IsPlaying())
	})

	t.Run("FinishOnTheLastStepEndsTheTour", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.player.Start(ctx, newTour(step("Only", css("#save")))))
		h.show()
		require.Equal(t, "Finish", h.surface.State().Tooltip.Content.NextLabel)
		require.True(t, h.surface.Click(overlay.ControlNext))
		assert.False(t, h.player.IsPlaying())
		_, ends, _, _ := h.rec.snapshot()
		assert.Equal(t, []int{0}, ends)
	})
}

func TestPlayer_Relayout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.player.Start(context.Background(), newTour(step("Save", css("#save")))))
	h.show()
	before := h.surface.State().Tooltip.Position

	h.page.SetViewport(geometry.Size{Width: 400, Height: 300})
	require.True(t, h.surface.Scroll(true))
	st := h.surface.State()
	assert.NotEqual(t, before, st.Tooltip.Position)
	assert.Equal(t, 400.0, st.Overlay.Blocker(geometry.BlockTop).Rect.Width)

	// A burst of intermediate events is throttled; the final one always lands.
	for i := 0; i < 10; i++ {
		h.surface.Scroll(false)
	}
	h.surface.Scroll(true)
	assert.True(t, h.surface.State().Tooltip.Visible)
	h.player.Stop()
}

func TestPlayer_PreviewAndTheme(t *testing.T) {
	h := newHarness(t, player.WithThemeOverrides(tour.Theme{TooltipBg: "#000000"}))
	tr := newTour(step("Only", nil))
	tr.Theme.HighlightColor = "#ff00ff"

	require.NoError(t, h.player.Preview(context.Background(), tr))
	st := h.surface.State()
	assert.Equal(t, overlay.ModePreview, st.Config.Mode)
	assert.Equal(t, "#000000", st.Config.Theme.TooltipBg)
	assert.Equal(t, "#ff00ff", st.Config.Theme.HighlightColor)
	assert.NotSame(t, tr, h.player.Tour(), "preview plays a copy")

	tr.Steps[0].Title = "Edited"
	h.show()
	assert.Equal(t, "Only", h.surface.State().Tooltip.Content.Title)
	h.player.Stop()
}

func TestPlayer_StartID(t *testing.T) {
	reg := tour.NewRegistry()
	tr := threeSteps()
	require.NoError(t, reg.Register(tr))
	h := newHarness(t, player.WithRegistry(reg))

	require.NoError(t, h.player.StartID(context.Background(), tr.ID))
	assert.True(t, h.player.IsPlaying())
	h.player.Stop()

	err := h.player.StartID(context.Background(), "ptg_unknown")
	require.ErrorIs(t, err, tour.ErrTourNotFound)
	assert.False(t, h.player.IsPlaying())
}

func TestPlayer_ObserverMayReenter(t *testing.T) {
	page, err := headless.NewPage(pageURL, fixture)
	require.NoError(t, err)
	surface := headless.NewSurface(page)
	clock := player.NewManualScheduler()

	var p *player.Player
	var seen []int
	obs := player.ObserverFuncs{
		StepChange: func(i int, _ tour.Step) {
			seen = append(seen, i)
			assert.Equal(t, i, p.CurrentStep())
			if i == 0 {
				p.Next()
			}
		},
	}
	p = player.New(page, surface, page, player.WithScheduler(clock), player.WithObserver(obs))
	require.NoError(t, p.Start(context.Background(), threeSteps()))
	clock.Advance(time.Second)
	assert.Equal(t, []int{0, 1}, seen)
	p.Stop()
}

func TestPlayer_SystemScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)
	page, err := headless.NewPage(pageURL, fixture)
	require.NoError(t, err)
	surface := headless.NewSurface(page)

	timing := player.Timing{Transition: time.Millisecond, Tooltip: time.Millisecond, Settle: time.Millisecond, Relayout: time.Millisecond}
	ended := make(chan int, 1)
	p := player.New(page, surface, page,
		player.WithTiming(timing),
		player.WithObserver(player.ObserverFuncs{End: func(_ *tour.Tour, i int) { ended <- i }}),
	)
	require.NoError(t, p.Start(context.Background(), threeSteps()))

	require.Eventually(t, func() bool { return surface.State().Tooltip.Visible }, time.Second, time.Millisecond)
	p.GoTo(2)
	require.Eventually(t, func() bool { return p.CurrentStep() == 2 && surface.State().Tooltip.Visible }, time.Second, time.Millisecond)
	p.Next()

	select {
	case i := <-ended:
		assert.Equal(t, 2, i)
	case <-time.After(time.Second):
		t.Fatal("tour did not end")
	}
}
