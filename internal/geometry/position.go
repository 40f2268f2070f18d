// internal/geometry/position.go
package geometry

import "strings"

// Placement is the side of the target a tooltip is attached to.
type Placement string

const (
	PlacementAuto   Placement = "auto"
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
	// PlacementCenter is only ever a resolved placement, used when there is no target.
	PlacementCenter Placement = "center"
)

// ParsePlacement normalises a placement hint. Empty or unknown values mean auto.
func ParsePlacement(s string) Placement {
	switch p := Placement(strings.ToLower(strings.TrimSpace(s))); p {
	case PlacementTop, PlacementBottom, PlacementLeft, PlacementRight:
		return p
	default:
		return PlacementAuto
	}
}

// Opposite returns the mirrored side.
func (p Placement) Opposite() Placement {
	switch p {
	case PlacementTop:
		return PlacementBottom
	case PlacementBottom:
		return PlacementTop
	case PlacementLeft:
		return PlacementRight
	case PlacementRight:
		return PlacementLeft
	default:
		return p
	}
}

// MainAxis is the axis along which the tooltip is offset from the target.
func (p Placement) MainAxis() Axis {
	if p == PlacementLeft || p == PlacementRight {
		return Horizontal
	}
	return Vertical
}

// autoOrder is the preference order for automatic placement.
var autoOrder = []Placement{PlacementBottom, PlacementTop, PlacementRight, PlacementLeft}

// PositionOptions tunes the positioner.
type PositionOptions struct {
	// Gap between the target edge and the tooltip.
	Gap float64
	// ViewportPadding is the minimum distance kept from every viewport edge.
	ViewportPadding float64
	// Flip lets an explicit placement move to the opposite side when it lacks room.
	Flip bool
	// ArrowInset keeps the arrow away from the tooltip corners.
	ArrowInset float64
}

// StandaloneOptions are used by the runtime player.
func StandaloneOptions() PositionOptions {
	return PositionOptions{Gap: 12, ViewportPadding: 16, ArrowInset: 12}
}

// PreviewOptions are used by the editor's preview.
func PreviewOptions() PositionOptions {
	return PositionOptions{Gap: 12, ViewportPadding: 10, Flip: true, ArrowInset: 12}
}

// Arrow locates the tooltip's pointer decoration.
type Arrow struct {
	Visible bool `json:"visible"`
	// Axis along which Offset is measured from the tooltip's leading edge.
	Axis   Axis    `json:"axis"`
	Offset float64 `json:"offset"`
}

// Position is the resolved on-screen location of a tooltip.
type Position struct {
	Left      float64   `json:"left"`
	Top       float64   `json:"top"`
	Placement Placement `json:"placement"`
	Arrow     Arrow     `json:"arrow"`
}

// Place computes where a tooltip of the given size goes relative to target.
func Place(tooltip Size, target *Rect, placement Placement, viewport Size, opts PositionOptions) Position {
	pad := opts.ViewportPadding

	if target == nil {
		left := clamp((viewport.Width-tooltip.Width)/2, pad, viewport.Width-tooltip.Width-pad)
		top := clamp((viewport.Height-tooltip.Height)/2, pad, viewport.Height-tooltip.Height-pad)
		return Position{Left: left, Top: top, Placement: PlacementCenter}
	}

	resolved := Resolve(tooltip, *target, placement, viewport, opts)

	var left, top float64
	switch resolved {
	case PlacementTop:
		left = target.X + target.Width/2 - tooltip.Width/2
		top = target.Top() - tooltip.Height - opts.Gap
	case PlacementLeft:
		left = target.Left() - tooltip.Width - opts.Gap
		top = target.Y + target.Height/2 - tooltip.Height/2
	case PlacementRight:
		left = target.Right() + opts.Gap
		top = target.Y + target.Height/2 - tooltip.Height/2
	default:
		left = target.X + target.Width/2 - tooltip.Width/2
		top = target.Bottom() + opts.Gap
	}

	left = clamp(left, pad, viewport.Width-tooltip.Width-pad)
	top = clamp(top, pad, viewport.Height-tooltip.Height-pad)

	return Position{
		Left:      left,
		Top:       top,
		Placement: resolved,
		Arrow:     arrowFor(resolved, tooltip, *target, left, top, opts.ArrowInset),
	}
}

// Resolve turns a requested placement into a concrete side.
func Resolve(tooltip Size, target Rect, placement Placement, viewport Size, opts PositionOptions) Placement {
	// The runtime player measures raw space; the preview also respects padding.
	pad := 0.0
	if opts.Flip {
		pad = opts.ViewportPadding
	}

	if placement == PlacementAuto || placement == "" {
		for _, p := range autoOrder {
			if fits(p, tooltip, target, viewport, opts.Gap, pad) {
				return p
			}
		}
		return PlacementBottom
	}

	if opts.Flip && !fits(placement, tooltip, target, viewport, opts.Gap, pad) {
		if opp := placement.Opposite(); fits(opp, tooltip, target, viewport, opts.Gap, pad) {
			return opp
		}
	}
	return placement
}

// fits reports whether the tooltip has room on side p of the target.
func fits(p Placement, tooltip Size, target Rect, viewport Size, gap, pad float64) bool {
	switch p {
	case PlacementTop:
		return target.Top()-pad >= tooltip.Height+gap
	case PlacementBottom:
		return viewport.Height-target.Bottom()-pad >= tooltip.Height+gap
	case PlacementLeft:
		return target.Left()-pad >= tooltip.Width+gap
	case PlacementRight:
		return viewport.Width-target.Right()-pad >= tooltip.Width+gap
	default:
		return false
	}
}

// arrowFor points the arrow at the target centre along the tooltip's cross axis.
func arrowFor(p Placement, tooltip Size, target Rect, left, top, inset float64) Arrow {
	cx, cy := target.Center()
	if p.MainAxis() == Vertical {
		return Arrow{
			Visible: true,
			Axis:    Horizontal,
			Offset:  clamp(cx-left, inset, tooltip.Width-inset),
		}
	}
	return Arrow{
		Visible: true,
		Axis:    Vertical,
		Offset:  clamp(cy-top, inset, tooltip.Height-inset),
	}
}
