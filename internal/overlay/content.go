// internal/overlay/content.go
package overlay

import (
	"fmt"
	"strconv"

	"github.com/xkilldash9x/guidepost/internal/tour"
)

const (
	labelNext    = "Next"
	labelFinish  = "Finish"
	guidedTitle  = "Complete the action to proceed"
	missingTitle = "Element Not Found"
	missingBody  = "We couldn't find the target element for this step. The page may have changed."
)

// TooltipContent is everything the tooltip shows for one step.
type TooltipContent struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	Progress     string `json:"progress"`
	ShowBack     bool   `json:"showBack"`
	NextLabel    string `json:"nextLabel"`
	NextDisabled bool   `json:"nextDisabled"`
	NextTitle    string `json:"nextTitle,omitempty"`
}

// NewTooltipContent builds the tooltip for step index of count. gated disables
// the Next control until the step's guided action happens.
func NewTooltipContent(step tour.Step, index, count int, gated bool) TooltipContent {
	c := TooltipContent{
		Title:     step.Title,
		Body:      step.Body,
		Progress:  ProgressText(index, count),
		ShowBack:  index > 0,
		NextLabel: labelNext,
	}
	if index == count-1 {
		c.NextLabel = labelFinish
	}
	if gated {
		c.NextDisabled = true
		c.NextTitle = guidedTitle
	}
	return c
}

// ProgressText renders the 1-based "i of n" indicator.
func ProgressText(index, count int) string {
	return strconv.Itoa(index+1) + " of " + strconv.Itoa(count)
}

// MissingContent is the missing-element modal for one step.
type MissingContent struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic"`
	StepIndex  int    `json:"stepIndex"`
}

// NewMissingContent builds the modal for a step whose target did not resolve.
func NewMissingContent(step tour.Step, index int) MissingContent {
	return MissingContent{
		Title:      missingTitle,
		Message:    missingBody,
		Diagnostic: tour.MarshalTarget(step.Target),
		StepIndex:  index,
	}
}

// WaitingText is the navigation-wait indicator's label.
func WaitingText(url string) string {
	return "Waiting for navigation to: " + url
}

// ThemeVars maps a theme onto the CSS custom properties the injected
// stylesheet reads.
func ThemeVars(t tour.Theme) map[string]string {
	t = t.Resolved()
	return map[string]string{
		"--ptg-tooltip-bg":       t.TooltipBg,
		"--ptg-tooltip-text":     t.TooltipText,
		"--ptg-font-family":      t.FontFamily,
		"--ptg-tooltip-radius":   px(t.TooltipRadius),
		"--ptg-tooltip-shadow":   t.TooltipShadow,
		"--ptg-overlay-opacity":  strconv.FormatFloat(t.OverlayOpacity, 'f', -1, 64),
		"--ptg-overlay-color":    t.OverlayColor,
		"--ptg-highlight-color":  t.HighlightColor,
		"--ptg-highlight-radius": px(t.HighlightRadius),
		"--ptg-animation":        t.Animation,
	}
}

func px(v float64) string {
	return fmt.Sprintf("%spx", strconv.FormatFloat(v, 'f', -1, 64))
}
