// internal/geometry/overlay.go
package geometry

import "math"

// DefaultBlockerPadding is the gap kept around a highlighted target, on every side.
const DefaultBlockerPadding = 4.0

// BlockerSide names one of the four interaction blockers.
type BlockerSide int

const (
	BlockTop BlockerSide = iota
	BlockBottom
	BlockLeft
	BlockRight
)

// String returns the DOM id suffix used by surfaces for the blocker.
func (s BlockerSide) String() string {
	switch s {
	case BlockTop:
		return "top"
	case BlockBottom:
		return "bottom"
	case BlockLeft:
		return "left"
	case BlockRight:
		return "right"
	default:
		return "unknown"
	}
}

// Blocker is a rectangle that intercepts pointer events.
type Blocker struct {
	Side    BlockerSide `json:"-"`
	Rect    Rect        `json:"rect"`
	Visible bool        `json:"visible"`
}

// OverlayLayout is the complete paint description of the highlight overlay:
// a purely visual cutout plus four hit-testing blockers around it.
type OverlayLayout struct {
	Cutout   Rect       `json:"cutout"`
	Blockers [4]Blocker `json:"blockers"`
	// FullScreen is set when there is no target and everything is blocked.
	FullScreen bool `json:"fullScreen"`
}

// Blocker returns the blocker for the given side.
func (l OverlayLayout) Blocker(side BlockerSide) Blocker {
	return l.Blockers[side]
}

// Overlay computes the cutout and blocker rectangles for a target.
//
// With a nil target the whole viewport is covered by the top blocker and the
// cutout collapses to a zero-size box at the viewport centre. Otherwise the
// viewport minus the padded target is split into four axis-aligned bands:
// full-width top and bottom strips, and left/right strips spanning the padded
// target's vertical band. Negative extents are clamped to zero.
func Overlay(target *Rect, viewport Size, padding float64) OverlayLayout {
	var l OverlayLayout
	for i := range l.Blockers {
		l.Blockers[i].Side = BlockerSide(i)
	}

	if target == nil {
		l.FullScreen = true
		l.Cutout = Rect{X: viewport.Width / 2, Y: viewport.Height / 2}
		l.Blockers[BlockTop] = Blocker{
			Side:    BlockTop,
			Rect:    Rect{Width: viewport.Width, Height: viewport.Height},
			Visible: true,
		}
		return l
	}

	cut := target.ExpandedBy(Uniform(padding))
	l.Cutout = cut

	topH := math.Max(0, cut.Top())
	bottomY := cut.Bottom()
	leftW := math.Max(0, cut.Left())
	rightX := cut.Right()

	l.Blockers[BlockTop] = Blocker{
		Side:    BlockTop,
		Rect:    Rect{X: 0, Y: 0, Width: viewport.Width, Height: topH},
		Visible: true,
	}
	l.Blockers[BlockBottom] = Blocker{
		Side:    BlockBottom,
		Rect:    Rect{X: 0, Y: bottomY, Width: viewport.Width, Height: math.Max(0, viewport.Height-bottomY)},
		Visible: true,
	}
	l.Blockers[BlockLeft] = Blocker{
		Side:    BlockLeft,
		Rect:    Rect{X: 0, Y: cut.Top(), Width: leftW, Height: cut.Height},
		Visible: true,
	}
	l.Blockers[BlockRight] = Blocker{
		Side:    BlockRight,
		Rect:    Rect{X: rightX, Y: cut.Top(), Width: math.Max(0, viewport.Width-rightX), Height: cut.Height},
		Visible: true,
	}
	return l
}

// Blocks reports whether a pointer event at (x, y) would be intercepted.
func (l OverlayLayout) Blocks(x, y float64) bool {
	for _, b := range l.Blockers {
		if b.Visible && b.Rect.Contains(x, y) {
			return true
		}
	}
	return false
}
