// internal/tour/tour.go
package tour

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/guidepost/internal/geometry"
)

// CurrentVersion is written into new tours. It is informational only.
const CurrentVersion = "1.0"

// Tour is the unit of authoring and playback.
type Tour struct {
	Version   string    `json:"version"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Theme     Theme     `json:"theme"`
	Steps     []Step    `json:"steps"`
}

// Step is one highlighted-element explanation.
type Step struct {
	ID            string       `json:"id,omitempty"`
	Title         string       `json:"title"`
	Body          string       `json:"body"`
	Target        *Target      `json:"target,omitempty"`
	Placement     string       `json:"placement,omitempty"`
	URL           string       `json:"url,omitempty"`
	URLMatch      URLMatch     `json:"urlMatch,omitempty"`
	RequireTarget *bool        `json:"requireTarget,omitempty"`
	Interaction   *Interaction `json:"interaction,omitempty"`
}

// TargetRequired reports whether a missing target blocks the step. Defaults to true.
func (s Step) TargetRequired() bool {
	return s.RequireTarget == nil || *s.RequireTarget
}

// PlacementHint returns the normalised placement, defaulting to auto.
func (s Step) PlacementHint() geometry.Placement {
	return geometry.ParsePlacement(s.Placement)
}

// InteractionKind returns the step's interaction kind, treating absence as none.
func (s Step) InteractionKind() InteractionKind {
	if s.Interaction == nil || s.Interaction.Kind == "" {
		return KindNone
	}
	return s.Interaction.Kind
}

// URLMatch selects how a step's URL gate is compared with the page URL.
type URLMatch string

const (
	MatchExact  URLMatch = "exact"
	MatchPrefix URLMatch = "prefix"
	MatchRegex  URLMatch = "regex"
)

// Target describes a step's element by ranked selector candidates.
type Target struct {
	Primary   *SelectorCandidate  `json:"primary"`
	Fallbacks []*SelectorCandidate `json:"fallbacks,omitempty"`
}

// Candidates returns primary followed by fallbacks, skipping empty entries.
func (t *Target) Candidates() []SelectorCandidate {
	if t == nil {
		return nil
	}
	out := make([]SelectorCandidate, 0, 1+len(t.Fallbacks))
	if t.Primary != nil && strings.TrimSpace(t.Primary.Selector) != "" {
		out = append(out, *t.Primary)
	}
	for _, fb := range t.Fallbacks {
		if fb != nil && strings.TrimSpace(fb.Selector) != "" {
			out = append(out, *fb)
		}
	}
	return out
}

// SelectorType tags how a candidate's selector string is interpreted.
type SelectorType string

const (
	SelectorCSS          SelectorType = "css"
	SelectorTestID       SelectorType = "testid"
	SelectorID           SelectorType = "id"
	SelectorClass        SelectorType = "class"
	SelectorAria         SelectorType = "aria"
	SelectorPath         SelectorType = "path"
	SelectorPierceShadow SelectorType = "pierceShadow"
	SelectorIframeCSS    SelectorType = "iframeCss"
)

// SelectorCandidate is one way of finding a target. Confidence is an
// authoring-time ranking hint and is never consulted during playback.
type SelectorCandidate struct {
	Selector   string       `json:"selector"`
	Type       SelectorType `json:"type"`
	Confidence int          `json:"confidence,omitempty"`
}

// InteractionKind distinguishes manual, guided and automated steps.
type InteractionKind string

const (
	KindNone   InteractionKind = "none"
	KindGuided InteractionKind = "guided"
	KindReal   InteractionKind = "real"
)

// ActionType is the DOM action a guided or automated step is about.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionInput    ActionType = "input"
	ActionSelect   ActionType = "select"
	ActionScroll   ActionType = "scroll"
	ActionKeydown  ActionType = "keydown"
	ActionNavigate ActionType = "navigate"
	ActionWait     ActionType = "wait"
)

// Interaction is the optional user action attached to a step.
type Interaction struct {
	Kind   InteractionKind `json:"kind"`
	Action *Action         `json:"action,omitempty"`
}

// Action carries the action type and its type-specific payload.
type Action struct {
	Type       ActionType `json:"type"`
	Value      string     `json:"value,omitempty"`
	Key        string     `json:"key,omitempty"`
	Y          *float64   `json:"y,omitempty"`
	URL        string     `json:"url,omitempty"`
	Duration   int        `json:"duration,omitempty"`
	ClearFirst *bool      `json:"clearFirst,omitempty"`
}

// WaitDuration returns the action's extra wait as a duration.
func (a *Action) WaitDuration() time.Duration {
	if a == nil || a.Duration <= 0 {
		return 0
	}
	return time.Duration(a.Duration) * time.Millisecond
}

// Replaces reports whether an input action overwrites the existing value.
// Only an explicit clearFirst=false appends.
func (a *Action) Replaces() bool {
	return a == nil || a.ClearFirst == nil || *a.ClearFirst
}

// New creates an empty tour with a fresh id and the default theme.
func New(name string) *Tour {
	if strings.TrimSpace(name) == "" {
		name = "Untitled Tour"
	}
	now := time.Now().UTC()
	return &Tour{
		Version:   CurrentVersion,
		ID:        NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Theme:     DefaultTheme(),
		Steps:     []Step{},
	}
}

// NewStep creates an empty step with a fresh id.
func NewStep() Step {
	return Step{
		ID:        NewID(),
		Target:    &Target{},
		Placement: string(geometry.PlacementAuto),
	}
}

// NewID returns an identifier in the ptg_ namespace used by exported tours.
func NewID() string {
	return "ptg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Bool returns a pointer to b, for optional flags.
func Bool(b bool) *bool { return &b }
