// internal/browser/headless/surface.go
package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
)

// DefaultTooltipSize is the measured size reported for every tooltip.
var DefaultTooltipSize = geometry.Size{Width: 280, Height: 140}

// TooltipState is what the recording surface currently shows in the tooltip.
type TooltipState struct {
	Content  overlay.TooltipContent
	Position geometry.Position
	Rendered bool
	Visible  bool
}

// SurfaceState is a point-in-time copy of everything painted.
type SurfaceState struct {
	Mounted        bool
	Config         overlay.MountConfig
	Overlay        geometry.OverlayLayout
	OverlayPainted bool
	Tooltip        TooltipState
	Missing        *overlay.MissingContent
	Waiting        string
	WaitingVisible bool
}

// Surface is an overlay.Surface that records paint calls instead of drawing.
// UI input is injected with Click, Press and Scroll.
type Surface struct {
	mu          sync.Mutex
	page        *Page
	tooltipSize geometry.Size
	state       SurfaceState
	handler     func(overlay.Event)
	transcript  []string
}

var _ overlay.Surface = (*Surface)(nil)

// NewSurface creates a recording surface. page may be nil; when set, mounting
// locks its scrolling.
func NewSurface(page *Page) *Surface {
	return &Surface{page: page, tooltipSize: DefaultTooltipSize}
}

// SetTooltipSize changes the size RenderTooltip reports.
func (s *Surface) SetTooltipSize(size geometry.Size) {
	s.mu.Lock()
	s.tooltipSize = size
	s.mu.Unlock()
}

func (s *Surface) Mount(ctx context.Context, cfg overlay.MountConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SurfaceState{Mounted: true, Config: cfg}
	if s.page != nil {
		s.page.SetScrollLocked(true)
	}
	s.logf("mount mode=%s", cfg.Mode)
	return nil
}

func (s *Surface) Unmount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Mounted {
		return nil
	}
	s.state = SurfaceState{}
	if s.page != nil {
		s.page.SetScrollLocked(false)
	}
	s.logf("unmount")
	return nil
}

func (s *Surface) PaintOverlay(ctx context.Context, layout geometry.OverlayLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireMounted(); err != nil {
		return err
	}
	s.state.Overlay = layout
	s.state.OverlayPainted = true
	if layout.FullScreen {
		s.logf("overlay fullscreen")
	} else {
		c := layout.Cutout
		s.logf("overlay cutout=%g,%g,%g,%g", c.X, c.Y, c.Width, c.Height)
	}
	return nil
}

func (s *Surface) RenderTooltip(ctx context.Context, content overlay.TooltipContent) (geometry.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireMounted(); err != nil {
		return geometry.Size{}, err
	}
	s.state.Tooltip.Content = content
	s.state.Tooltip.Rendered = true
	s.state.Tooltip.Visible = false
	return s.tooltipSize, nil
}

func (s *Surface) PlaceTooltip(ctx context.Context, pos geometry.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireMounted(); err != nil {
		return err
	}
	s.state.Tooltip.Position = pos
	s.state.Tooltip.Visible = true
	c := s.state.Tooltip.Content
	s.logf("tooltip %q %s placement=%s at=%g,%g", c.Title, c.Progress, pos.Placement, pos.Left, pos.Top)
	return nil
}

func (s *Surface) HideTooltip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Tooltip.Visible {
		s.logf("tooltip hidden")
	}
	s.state.Tooltip.Visible = false
	return nil
}

func (s *Surface) ShowMissing(ctx context.Context, content overlay.MissingContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireMounted(); err != nil {
		return err
	}
	c := content
	s.state.Missing = &c
	s.logf("missing step=%d", content.StepIndex+1)
	return nil
}

func (s *Surface) HideMissing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Missing = nil
	return nil
}

func (s *Surface) ShowWaiting(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireMounted(); err != nil {
		return err
	}
	s.state.Waiting = overlay.WaitingText(url)
	s.state.WaitingVisible = true
	s.logf("waiting url=%s", url)
	return nil
}

func (s *Surface) HideWaiting(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.WaitingVisible = false
	return nil
}

func (s *Surface) SetHandler(h func(overlay.Event)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// State returns a copy of the painted state.
func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Missing != nil {
		m := *st.Missing
		st.Missing = &m
	}
	return st
}

// Transcript returns the paint log, one line per visible change.
func (s *Surface) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcript...)
}

// Click presses a surface button. Buttons that are not on screen, and a
// disabled Next, do nothing, so the return value reports whether an event
// was delivered.
func (s *Surface) Click(c overlay.Control) bool {
	s.mu.Lock()
	ok := s.clickable(c)
	h := s.handler
	s.mu.Unlock()
	if !ok || h == nil {
		return false
	}
	h(overlay.ControlEvent(c))
	return true
}

// Press delivers a page keydown while mounted.
func (s *Surface) Press(key string) bool {
	s.mu.Lock()
	ok := s.state.Mounted
	h := s.handler
	s.mu.Unlock()
	if !ok || h == nil {
		return false
	}
	h(overlay.KeyEvent(key))
	return true
}

// Scroll delivers a viewport change while mounted.
func (s *Surface) Scroll(final bool) bool {
	s.mu.Lock()
	ok := s.state.Mounted
	h := s.handler
	s.mu.Unlock()
	if !ok || h == nil {
		return false
	}
	h(overlay.ViewportEvent(final))
	return true
}

// clickable reports whether control c is on screen and enabled. Caller holds s.mu.
func (s *Surface) clickable(c overlay.Control) bool {
	if !s.state.Mounted {
		return false
	}
	switch c {
	case overlay.ControlRetry, overlay.ControlSkip, overlay.ControlEnd:
		return s.state.Missing != nil
	case overlay.ControlNext:
		return s.state.Tooltip.Visible && !s.state.Tooltip.Content.NextDisabled
	case overlay.ControlPrev:
		return s.state.Tooltip.Visible && s.state.Tooltip.Content.ShowBack
	case overlay.ControlClose:
		return s.state.Tooltip.Visible
	}
	return false
}

// requireMounted guards paint calls. Caller holds s.mu.
func (s *Surface) requireMounted() error {
	if !s.state.Mounted {
		return fmt.Errorf("surface is not mounted")
	}
	return nil
}

func (s *Surface) logf(format string, args ...any) {
	s.transcript = append(s.transcript, fmt.Sprintf(format, args...))
}
