// internal/browser/surface.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/overlay"
)

// ErrNotMounted is returned by paint calls made outside Mount/Unmount.
var ErrNotMounted = errors.New("surface is not mounted")

// mountPayload is what the injected script's mount() receives.
type mountPayload struct {
	Mode      string            `json:"mode"`
	Debug     bool              `json:"debug"`
	Animation string            `json:"animation"`
	Vars      map[string]string `json:"vars"`
	CSS       string            `json:"css"`
}

func newMountPayload(cfg overlay.MountConfig, css string) mountPayload {
	theme := cfg.Theme.Resolved()
	return mountPayload{
		Mode:      cfg.Mode.String(),
		Debug:     cfg.Debug,
		Animation: theme.Animation,
		Vars:      overlay.ThemeVars(theme),
		CSS:       css,
	}
}

// Surface drives the injected overlay script in a Tab. A full navigation
// wipes the page's copy, so the last painted state is kept here and
// replayed into the new document before the next call.
type Surface struct {
	tab *Tab

	mu      sync.Mutex
	mounted *mountPayload
	layout  *geometry.OverlayLayout
	content *overlay.TooltipContent
	missing *overlay.MissingContent
	waiting string
}

var _ overlay.Surface = (*Surface)(nil)

// surfaceCall renders a call into the page's surface API.
func surfaceCall(method string, arg any) (string, error) {
	if arg == nil {
		return fmt.Sprintf("window.__guidepostSurface.%s()", method), nil
	}
	b, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s argument: %w", method, err)
	}
	return fmt.Sprintf("window.__guidepostSurface.%s(%s)", method, b), nil
}

func (s *Surface) call(ctx context.Context, method string, arg, out any) error {
	expr, err := surfaceCall(method, arg)
	if err != nil {
		return err
	}
	if err := s.tab.evaluate(ctx, expr, out); err != nil {
		return fmt.Errorf("surface %s: %w", method, err)
	}
	return nil
}

// ensureLocked re-mounts and replays state if the document was replaced.
func (s *Surface) ensureLocked(ctx context.Context) error {
	if s.mounted == nil {
		return ErrNotMounted
	}
	var alive bool
	if err := s.tab.evaluate(ctx, "!!(window.__guidepostSurface && window.__guidepostSurface.mounted())", &alive); err != nil {
		return err
	}
	if alive {
		return nil
	}

	s.tab.logger.Debug("Surface lost with its document; re-mounting.")
	if err := s.call(ctx, "mount", s.mounted, nil); err != nil {
		return err
	}
	if s.layout != nil {
		if err := s.call(ctx, "paint", s.layout, nil); err != nil {
			return err
		}
	}
	if s.content != nil {
		if err := s.call(ctx, "renderTooltip", s.content, nil); err != nil {
			return err
		}
	}
	if s.missing != nil {
		if err := s.call(ctx, "showMissing", s.missing, nil); err != nil {
			return err
		}
	}
	if s.waiting != "" {
		if err := s.call(ctx, "showWaiting", overlay.WaitingText(s.waiting), nil); err != nil {
			return err
		}
	}
	return nil
}

// do runs one surface method against a live mount.
func (s *Surface) do(ctx context.Context, method string, arg, out any, record func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	if err := s.call(ctx, method, arg, out); err != nil {
		return err
	}
	if record != nil {
		record()
	}
	return nil
}

func (s *Surface) Mount(ctx context.Context, cfg overlay.MountConfig) error {
	_, css, err := surfaceAssets()
	if err != nil {
		return err
	}
	payload := newMountPayload(cfg, css)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, "mount", payload, nil); err != nil {
		return err
	}
	s.mounted = &payload
	s.layout, s.content, s.missing, s.waiting = nil, nil, nil, ""
	return nil
}

func (s *Surface) Unmount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted == nil {
		return nil
	}
	s.mounted = nil
	s.layout, s.content, s.missing, s.waiting = nil, nil, nil, ""
	return s.call(ctx, "unmount", nil, nil)
}

func (s *Surface) PaintOverlay(ctx context.Context, layout geometry.OverlayLayout) error {
	return s.do(ctx, "paint", layout, nil, func() { s.layout = &layout })
}

func (s *Surface) RenderTooltip(ctx context.Context, content overlay.TooltipContent) (geometry.Size, error) {
	var size geometry.Size
	err := s.do(ctx, "renderTooltip", content, &size, func() { s.content = &content })
	return size, err
}

func (s *Surface) PlaceTooltip(ctx context.Context, pos geometry.Position) error {
	return s.do(ctx, "place", pos, nil, nil)
}

func (s *Surface) HideTooltip(ctx context.Context) error {
	return s.do(ctx, "hideTooltip", nil, nil, func() { s.content = nil })
}

func (s *Surface) ShowMissing(ctx context.Context, content overlay.MissingContent) error {
	return s.do(ctx, "showMissing", content, nil, func() { s.missing = &content })
}

func (s *Surface) HideMissing(ctx context.Context) error {
	return s.do(ctx, "hideMissing", nil, nil, func() { s.missing = nil })
}

func (s *Surface) ShowWaiting(ctx context.Context, url string) error {
	return s.do(ctx, "showWaiting", overlay.WaitingText(url), nil, func() { s.waiting = url })
}

func (s *Surface) HideWaiting(ctx context.Context) error {
	return s.do(ctx, "hideWaiting", nil, nil, func() { s.waiting = "" })
}

func (s *Surface) SetHandler(h func(overlay.Event)) { s.tab.setHandler(h) }
