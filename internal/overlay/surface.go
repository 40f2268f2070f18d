// internal/overlay/surface.go
package overlay

import (
	"context"

	"github.com/xkilldash9x/guidepost/internal/geometry"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// Mode selects the host the player runs in.
type Mode int

const (
	// ModeStandalone is the end-user runtime.
	ModeStandalone Mode = iota
	// ModePreview is playback embedded in the authoring editor.
	ModePreview
)

func (m Mode) String() string {
	if m == ModePreview {
		return "preview"
	}
	return "standalone"
}

// ParseMode maps a config string to a Mode. Unknown values are standalone.
func ParseMode(s string) Mode {
	if s == "preview" {
		return ModePreview
	}
	return ModeStandalone
}

// MountConfig is applied when a session acquires the surface.
type MountConfig struct {
	Theme tour.Theme
	Mode  Mode
	Debug bool
}

// Surface paints the playback UI into a page. A session owns it exclusively
// between Mount and Unmount. Implementations deliver user input through the
// handler installed with SetHandler.
type Surface interface {
	// Mount creates the UI container, applies the theme and locks page scrolling.
	Mount(ctx context.Context, cfg MountConfig) error
	// Unmount removes everything Mount created and restores page scrolling.
	// It is safe to call when not mounted.
	Unmount(ctx context.Context) error

	// PaintOverlay draws the cutout and the four blockers.
	PaintOverlay(ctx context.Context, layout geometry.OverlayLayout) error

	// RenderTooltip fills the tooltip with content while it is hidden and
	// returns its measured size.
	RenderTooltip(ctx context.Context, content TooltipContent) (geometry.Size, error)
	// PlaceTooltip moves the tooltip to pos and makes it visible.
	PlaceTooltip(ctx context.Context, pos geometry.Position) error
	// HideTooltip starts the tooltip's hide transition.
	HideTooltip(ctx context.Context) error

	ShowMissing(ctx context.Context, content MissingContent) error
	HideMissing(ctx context.Context) error

	ShowWaiting(ctx context.Context, url string) error
	HideWaiting(ctx context.Context) error

	// SetHandler installs the receiver of surface events; nil removes it.
	SetHandler(h func(Event))
}
