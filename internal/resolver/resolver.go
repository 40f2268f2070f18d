// internal/resolver/resolver.go
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/dom"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

const (
	// ShadowDelimiter separates the hops of a pierceShadow selector.
	ShadowDelimiter = ">>>"
	// FrameDelimiter separates the frame selector from the inner selector of
	// an iframeCss selector.
	FrameDelimiter = "▸"
)

// ErrTargetNotFound is returned by Find when no candidate yields a visible element.
var ErrTargetNotFound = errors.New("no visible element matches the target")

// Outcome classifies one candidate attempt.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeInvisible Outcome = "invisible"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeError     Outcome = "error"
)

// Attempt records how one candidate fared.
type Attempt struct {
	Candidate tour.SelectorCandidate `json:"candidate"`
	Outcome   Outcome                `json:"outcome"`
	Err       error                  `json:"-"`
}

// Trace is the per-candidate record of one resolution.
type Trace struct {
	Attempts []Attempt `json:"attempts"`
	// Winner is the index into Attempts of the matched candidate, or -1.
	Winner int `json:"winner"`
}

// Matched returns the winning attempt.
func (t *Trace) Matched() (Attempt, bool) {
	if t == nil || t.Winner < 0 || t.Winner >= len(t.Attempts) {
		return Attempt{}, false
	}
	return t.Attempts[t.Winner], true
}

// Resolver finds the element a step targets.
type Resolver struct {
	page   dom.Page
	logger *zap.Logger
	debug  bool
}

// New creates a resolver for page. Cross-origin frame failures are only logged
// when debug is set.
func New(page dom.Page, logger *zap.Logger, debug bool) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{page: page, logger: logger.Named("resolver"), debug: debug}
}

// Resolve tries the target's candidates in declared order and returns the
// first element that is both matched and visible, or nil. Candidate failures
// are recorded and skipped; they never end the attempt early.
func (r *Resolver) Resolve(ctx context.Context, target *tour.Target) (dom.Element, *Trace) {
	trace := &Trace{Winner: -1}
	for _, cand := range target.Candidates() {
		if ctx.Err() != nil {
			break
		}
		el, err := r.resolveCandidate(ctx, cand)
		attempt := Attempt{Candidate: cand}
		switch {
		case errors.Is(err, dom.ErrCrossOrigin):
			attempt.Outcome = OutcomeNotFound
			attempt.Err = err
			r.logCandidateError(cand, err)
		case err != nil:
			attempt.Outcome = OutcomeError
			attempt.Err = err
			r.logCandidateError(cand, err)
		case el == nil:
			attempt.Outcome = OutcomeNotFound
		default:
			visible, verr := dom.IsVisible(ctx, el)
			switch {
			case verr != nil:
				attempt.Outcome = OutcomeError
				attempt.Err = verr
				r.logCandidateError(cand, verr)
			case visible:
				attempt.Outcome = OutcomeMatched
			default:
				attempt.Outcome = OutcomeInvisible
			}
		}
		trace.Attempts = append(trace.Attempts, attempt)
		if attempt.Outcome == OutcomeMatched {
			trace.Winner = len(trace.Attempts) - 1
			r.logger.Debug("Resolved target.",
				zap.String("type", string(cand.Type)),
				zap.String("selector", cand.Selector))
			return el, trace
		}
	}
	return nil, trace
}

// Find is Resolve in error form: ErrTargetNotFound when nothing matched.
func (r *Resolver) Find(ctx context.Context, target *tour.Target) (dom.Element, error) {
	el, _ := r.Resolve(ctx, target)
	if el == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTargetNotFound
	}
	return el, nil
}

func (r *Resolver) logCandidateError(cand tour.SelectorCandidate, err error) {
	if errors.Is(err, dom.ErrCrossOrigin) && !r.debug {
		return
	}
	r.logger.Debug("Failed to resolve candidate.",
		zap.String("type", string(cand.Type)),
		zap.String("selector", cand.Selector),
		zap.Error(err))
}

func (r *Resolver) resolveCandidate(ctx context.Context, cand tour.SelectorCandidate) (dom.Element, error) {
	switch cand.Type {
	case tour.SelectorPierceShadow:
		return r.queryShadow(ctx, cand.Selector)
	case tour.SelectorIframeCSS:
		return r.queryFrame(ctx, cand.Selector)
	default:
		doc, err := r.page.Document(ctx)
		if err != nil {
			return nil, err
		}
		return doc.QuerySelector(ctx, cand.Selector)
	}
}

// queryShadow walks "a >>> b >>> c": each part is queried in the open shadow
// root of the previous part's first match, and only the last part's match is
// returned.
func (r *Resolver) queryShadow(ctx context.Context, selector string) (dom.Element, error) {
	parts := SplitShadowPath(selector)
	current, err := r.page.Document(ctx)
	if err != nil {
		return nil, err
	}
	for i, part := range parts {
		el, err := current.QuerySelector(ctx, part)
		if err != nil || el == nil {
			return nil, err
		}
		if i == len(parts)-1 {
			return el, nil
		}
		sr, err := el.ShadowRoot(ctx)
		if err != nil || sr == nil {
			return nil, err
		}
		current = sr
	}
	return nil, nil
}

// queryFrame resolves "iframe ▸ inner" against the frame's document.
// Cross-origin documents surface as dom.ErrCrossOrigin, which Resolve records
// as not found.
func (r *Resolver) queryFrame(ctx context.Context, selector string) (dom.Element, error) {
	frameSel, innerSel, err := SplitFrameSelector(selector)
	if err != nil {
		return nil, err
	}
	doc, err := r.page.Document(ctx)
	if err != nil {
		return nil, err
	}
	frame, err := doc.QuerySelector(ctx, frameSel)
	if err != nil || frame == nil {
		return nil, err
	}
	if frame.TagName() != "IFRAME" {
		return nil, nil
	}
	content, err := frame.ContentDocument(ctx)
	if err != nil || content == nil {
		return nil, err
	}
	return content.QuerySelector(ctx, innerSel)
}

// SplitShadowPath splits a pierceShadow selector into trimmed parts.
func SplitShadowPath(selector string) []string {
	parts := strings.Split(selector, ShadowDelimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// SplitFrameSelector splits an iframeCss selector into its frame and inner parts.
func SplitFrameSelector(selector string) (frame, inner string, err error) {
	f, in, ok := strings.Cut(selector, FrameDelimiter)
	if !ok {
		return "", "", fmt.Errorf("%w: iframe selector %q lacks %q", dom.ErrMalformedSelector, selector, FrameDelimiter)
	}
	return strings.TrimSpace(f), strings.TrimSpace(in), nil
}
