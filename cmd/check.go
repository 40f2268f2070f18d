// File: cmd/check.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/guidepost/internal/browser/headless"
	"github.com/xkilldash9x/guidepost/internal/observability"
	"github.com/xkilldash9x/guidepost/internal/player"
	"github.com/xkilldash9x/guidepost/internal/resolver"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// maxParallelChecks bounds concurrent step resolutions.
const maxParallelChecks = 8

// stepReport is the offline verdict for one step.
type stepReport struct {
	Index    int
	Step     tour.Step
	URLMatch bool
	Trace    *resolver.Trace
}

// ok reports whether playback would show the step without intervention.
func (r stepReport) ok() bool {
	if len(r.Step.Target.Candidates()) == 0 || !r.Step.TargetRequired() {
		return true
	}
	_, matched := r.Trace.Matched()
	return matched
}

func newCheckCmd() *cobra.Command {
	var (
		tf      tourFlags
		pageArg string
		pageURL string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve every step of a tour against an HTML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			t, _, err := tf.load(cfg)
			if err != nil {
				return err
			}
			if pageURL == "" {
				pageURL = firstGateURL(t)
			}
			page, err := loadSnapshot(pageArg, pageURL)
			if err != nil {
				return err
			}

			logger := observability.GetLogger().Named("check")
			res := resolver.New(page, logger, cfg.Player().Debug)
			reports, err := checkTour(ctx, t, page, res, cfg.Player().MaxURLPattern)
			if err != nil {
				return err
			}

			failed := writeReport(cmd.OutOrStdout(), t, reports)
			if failed > 0 {
				return fmt.Errorf("%d of %d steps would not resolve", failed, len(reports))
			}
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVarP(&pageArg, "page", "p", "", "HTML snapshot of the page the tour runs on")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "URL the snapshot was taken from (default: the first step's URL gate)")
	_ = cmd.MarkFlagRequired("page")
	return cmd
}

func loadSnapshot(path, pageURL string) (*headless.Page, error) {
	markup, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page snapshot: %w", err)
	}
	if pageURL == "" {
		pageURL = "about:blank"
	}
	page, err := headless.NewPage(pageURL, string(markup), headless.WithLogger(observability.GetLogger().Named("headless")))
	if err != nil {
		return nil, fmt.Errorf("failed to load page snapshot: %w", err)
	}
	return page, nil
}

// checkTour resolves each step's target concurrently. Results keep step order.
func checkTour(ctx context.Context, t *tour.Tour, page *headless.Page, res *resolver.Resolver, maxPattern int) ([]stepReport, error) {
	current, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]stepReport, len(t.Steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i, s := range t.Steps {
		g.Go(func() error {
			_, trace := res.Resolve(gctx, s.Target)
			reports[i] = stepReport{
				Index:    i,
				Step:     s,
				URLMatch: player.MatchURL(current, s.URL, s.URLMatch, maxPattern),
				Trace:    trace,
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// writeReport prints one block per step and returns how many fail.
func writeReport(w io.Writer, t *tour.Tour, reports []stepReport) int {
	failed := 0
	fmt.Fprintf(w, "Tour %q (%s): %d steps\n", t.Name, t.ID, len(t.Steps))
	for _, r := range reports {
		verdict := "OK"
		if !r.ok() {
			verdict = "MISSING"
			failed++
		}
		fmt.Fprintf(w, "\n[%s] step %d %q\n", verdict, r.Index+1, r.Step.Title)
		if r.Step.URL != "" && !r.URLMatch {
			fmt.Fprintf(w, "  url gate %q (%s) does not match the snapshot; playback would wait\n", r.Step.URL, urlMode(r.Step.URLMatch))
		}
		if r.Trace == nil || len(r.Trace.Attempts) == 0 {
			fmt.Fprintln(w, "  no target; tooltip is centered")
			continue
		}
		for i, a := range r.Trace.Attempts {
			marker := " "
			if i == r.Trace.Winner {
				marker = "*"
			}
			line := fmt.Sprintf("  %s %-12s %-9s %s", marker, a.Candidate.Type, a.Outcome, a.Candidate.Selector)
			if a.Err != nil {
				line += "  (" + a.Err.Error() + ")"
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
		if _, matched := r.Trace.Matched(); !matched && !r.Step.TargetRequired() {
			fmt.Fprintln(w, "  target optional; tooltip would be centered")
		}
	}
	return failed
}

func urlMode(m tour.URLMatch) string {
	if m == "" {
		return string(tour.MatchPrefix)
	}
	return string(m)
}
