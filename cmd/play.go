// File: cmd/play.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/browser"
	"github.com/xkilldash9x/guidepost/internal/observability"
	"github.com/xkilldash9x/guidepost/internal/overlay"
	"github.com/xkilldash9x/guidepost/internal/player"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

const shutdownGracePeriod = 10 * time.Second

func newPlayCmd() *cobra.Command {
	return newPlaybackCmd("play", "Play a tour in Chrome", overlay.ModeStandalone)
}

func newPreviewCmd() *cobra.Command {
	return newPlaybackCmd("preview", "Play a copy of a tour the way the editor previews it", overlay.ModePreview)
}

func newPlaybackCmd(use, short string, mode overlay.Mode) *cobra.Command {
	var (
		tf       tourFlags
		startURL string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
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
			if startURL == "" {
				startURL = firstGateURL(t)
			}

			logger := observability.GetLogger()
			mgr, err := browser.NewManager(ctx, logger, cfg.Browser())
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
				defer cancel()
				if err := mgr.Shutdown(sctx); err != nil {
					logger.Warn("Browser shutdown incomplete.", zap.Error(err))
				}
			}()

			tab, err := mgr.NewTab(ctx)
			if err != nil {
				return err
			}
			defer tab.Close()

			if startURL != "" {
				if err := tab.Navigate(ctx, startURL); err != nil {
					return err
				}
			}

			ended := make(chan int, 1)
			obs := player.ObserverFuncs{
				StepChange: func(i int, s tour.Step) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", overlay.ProgressText(i, len(t.Steps)), s.Title)
				},
				End: func(_ *tour.Tour, i int) {
					select {
					case ended <- i:
					default:
					}
				},
				Error: func(err error) {
					logger.Warn("Playback error.", zap.Error(err))
				},
			}
			opts := append(player.FromConfig(cfg.Player()),
				player.WithMode(mode),
				player.WithObserver(obs),
				player.WithRegistry(reg),
				player.WithLogger(logger),
			)
			p := player.New(tab, tab.Surface(), tab, opts...)

			start := p.Start
			if mode == overlay.ModePreview {
				start = p.Preview
			}
			if err := start(ctx, t); err != nil {
				return err
			}

			select {
			case i := <-ended:
				fmt.Fprintf(cmd.OutOrStdout(), "Tour %q ended at step %d of %d.\n", t.Name, i+1, len(t.Steps))
				return nil
			case <-ctx.Done():
				p.Stop()
				return ctx.Err()
			}
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVarP(&startURL, "url", "u", "", "page to open first (default: the first step's URL gate)")
	cmd.Flags().Bool("headless", false, "run Chrome without a window")
	return cmd
}

// firstGateURL returns a literal URL to open when the tour starts gated.
func firstGateURL(t *tour.Tour) string {
	if len(t.Steps) == 0 {
		return ""
	}
	s := t.Steps[0]
	if s.URL == "" || s.URLMatch == tour.MatchRegex {
		return ""
	}
	return s.URL
}
