// internal/tour/theme.go
package tour

// Theme is the visual configuration painted into the overlay and tooltip.
type Theme struct {
	TooltipBg       string  `json:"tooltipBg,omitempty" mapstructure:"tooltip_bg" yaml:"tooltip_bg"`
	TooltipText     string  `json:"tooltipText,omitempty" mapstructure:"tooltip_text" yaml:"tooltip_text"`
	FontFamily      string  `json:"fontFamily,omitempty" mapstructure:"font_family" yaml:"font_family"`
	TooltipRadius   float64 `json:"tooltipRadius,omitempty" mapstructure:"tooltip_radius" yaml:"tooltip_radius"`
	TooltipShadow   string  `json:"tooltipShadow,omitempty" mapstructure:"tooltip_shadow" yaml:"tooltip_shadow"`
	OverlayColor    string  `json:"overlayColor,omitempty" mapstructure:"overlay_color" yaml:"overlay_color"`
	OverlayOpacity  float64 `json:"overlayOpacity,omitempty" mapstructure:"overlay_opacity" yaml:"overlay_opacity"`
	HighlightColor  string  `json:"highlightColor,omitempty" mapstructure:"highlight_color" yaml:"highlight_color"`
	HighlightRadius float64 `json:"highlightRadius,omitempty" mapstructure:"highlight_radius" yaml:"highlight_radius"`
	Animation       string  `json:"animation,omitempty" mapstructure:"animation" yaml:"animation"`
}

// Animation styles for the tooltip.
const (
	AnimationFade  = "fade"
	AnimationSlide = "slide"
)

// DefaultTheme returns the runtime defaults.
func DefaultTheme() Theme {
	return Theme{
		TooltipBg:       "#1a1a2e",
		TooltipText:     "#ffffff",
		FontFamily:      "system-ui, -apple-system, sans-serif",
		TooltipRadius:   8,
		TooltipShadow:   "0 4px 20px rgba(0,0,0,0.3)",
		OverlayColor:    "#000",
		OverlayOpacity:  0.7,
		HighlightColor:  "#4f46e5",
		HighlightRadius: 4,
		Animation:       AnimationFade,
	}
}

// Merge returns t with every non-zero field of overrides applied on top.
func (t Theme) Merge(overrides Theme) Theme {
	out := t
	if overrides.TooltipBg != "" {
		out.TooltipBg = overrides.TooltipBg
	}
	if overrides.TooltipText != "" {
		out.TooltipText = overrides.TooltipText
	}
	if overrides.FontFamily != "" {
		out.FontFamily = overrides.FontFamily
	}
	if overrides.TooltipRadius != 0 {
		out.TooltipRadius = overrides.TooltipRadius
	}
	if overrides.TooltipShadow != "" {
		out.TooltipShadow = overrides.TooltipShadow
	}
	if overrides.OverlayColor != "" {
		out.OverlayColor = overrides.OverlayColor
	}
	if overrides.OverlayOpacity != 0 {
		out.OverlayOpacity = overrides.OverlayOpacity
	}
	if overrides.HighlightColor != "" {
		out.HighlightColor = overrides.HighlightColor
	}
	if overrides.HighlightRadius != 0 {
		out.HighlightRadius = overrides.HighlightRadius
	}
	if overrides.Animation != "" {
		out.Animation = overrides.Animation
	}
	return out
}

// Resolved fills the gaps of a tour's stored theme with the defaults.
func (t Theme) Resolved() Theme {
	return DefaultTheme().Merge(t)
}
