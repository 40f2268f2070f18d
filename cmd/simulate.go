// File: cmd/simulate.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/browser/headless"
	"github.com/xkilldash9x/guidepost/internal/observability"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/player"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

const (
	// simulateFlushLimit bounds the continuations run after one input.
	simulateFlushLimit = 1000
	// simulateTick is the virtual time allowed to pass between inputs.
	simulateTick = 2 * time.Second
)

func newSimulateCmd() *cobra.Command {
	var (
		tf       tourFlags
		pageArg  string
		pageURL  string
		maxMoves int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Click through a tour against an HTML snapshot and print what the overlay showed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			t, reg, err := tf.load(cfg)
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

			surface := headless.NewSurface(page)
			clock := player.NewManualScheduler()
			var errs []error
			opts := append(player.FromConfig(cfg.Player()),
				player.WithScheduler(clock),
				player.WithRegistry(reg),
				player.WithLogger(observability.GetLogger()),
				player.WithObserver(player.ObserverFuncs{Error: func(err error) { errs = append(errs, err) }}),
			)
			p := player.New(page, surface, page, opts...)

			moves, err := simulate(ctx, p, page, surface, clock, t, maxMoves)
			out := cmd.OutOrStdout()
			for _, line := range surface.Transcript() {
				fmt.Fprintln(out, line)
			}
			for _, e := range errs {
				fmt.Fprintf(out, "error: %v\n", e)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Finished %q after %d inputs.\n", t.Name, moves)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVarP(&pageArg, "page", "p", "", "HTML snapshot of the page the tour runs on")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "URL the snapshot was taken from (default: the first step's URL gate)")
	cmd.Flags().IntVar(&maxMoves, "max-moves", 200, "give up after this many inputs")
	_ = cmd.MarkFlagRequired("page")
	return cmd
}

// simulate plays t to completion on virtual time, answering each state the
// way a user would, and returns the number of inputs it took.
func simulate(ctx context.Context, p *player.Player, page *headless.Page, surface *headless.Surface, clock *player.ManualScheduler, t *tour.Tour, maxMoves int) (int, error) {
	logger := observability.GetLogger().Named("simulate")
	if err := p.Start(ctx, t); err != nil {
		return 0, err
	}
	clock.Advance(simulateTick)
	clock.Flush(simulateFlushLimit)

	moves := 0
	for p.IsPlaying() {
		if moves >= maxMoves {
			p.Stop()
			return moves, fmt.Errorf("tour still playing after %d inputs", moves)
		}
		if err := ctx.Err(); err != nil {
			p.Stop()
			return moves, err
		}

		i := p.CurrentStep()
		state := p.State()
		logger.Debug("Simulating input.", zap.Int("step", i+1), zap.String("state", state.String()))

		switch state {
		case player.ShowingStep:
			if !surface.Click(overlay.ControlNext) {
				// Guided steps keep Next disabled until the user acts.
				p.Next()
			}
		case player.AwaitingTarget:
			if !surface.Click(overlay.ControlSkip) {
				p.Next()
			}
		case player.AwaitingNavigation:
			s := t.Steps[i]
			if s.URLMatch == tour.MatchRegex {
				p.Next()
			} else {
				page.SetURL(s.URL)
			}
		default:
			p.Next()
		}
		moves++
		clock.Advance(simulateTick)
		clock.Flush(simulateFlushLimit)
	}
	return moves, nil
}
