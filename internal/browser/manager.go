// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/config"
)

// Manager owns the Chrome process that tours play in and hands out tabs.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	// wg tracks open tabs so Shutdown can wait for them.
	wg sync.WaitGroup
}

// NewManager launches the browser and checks that it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)

	probeCtx, cancelProbe := context.WithTimeout(m.allocCtx, cfg.StartupTimeout)
	defer cancelProbe()
	probeCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return m, nil
}

// launchFlag is one Chrome command-line switch.
type launchFlag struct {
	name  string
	value any
}

// launchFlags lists the switches layered over chromedp's defaults.
func launchFlags(cfg config.BrowserConfig) []launchFlag {
	flags := []launchFlag{
		{"headless", cfg.Headless},
		{"enable-automation", false},
		{"ignore-certificate-errors", cfg.IgnoreTLSErrors},
		{"disable-extensions", true},
		{"disable-gpu", cfg.Headless},
	}
	if w, h := cfg.ViewportSize(); w > 0 && h > 0 {
		flags = append(flags, launchFlag{"window-size", strconv.Itoa(w) + "," + strconv.Itoa(h)})
	}

	for _, arg := range cfg.Args {
		name, value, ok := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if name == "" {
			continue
		}
		if ok {
			flags = append(flags, launchFlag{name, value})
		} else {
			flags = append(flags, launchFlag{name, true})
		}
	}

	// Containers on Linux rarely allow the sandbox.
	if runtime.GOOS == "linux" {
		flags = append(flags,
			launchFlag{"no-sandbox", true},
			launchFlag{"disable-dev-shm-usage", true},
		)
	}
	return flags
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewTab opens a tab with the playback surface installed.
func (m *Manager) NewTab(ctx context.Context) (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(m.allocCtx)
	// The first Run creates the target.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	t := newTab(tabCtx, cancel, m.logger.Named("tab"), m.cfg.NavigationTimeout)
	m.wg.Add(1)
	t.onClose = m.wg.Done

	if err := t.open(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to prepare tab: %w", err)
	}
	return t, nil
}

// Shutdown waits for open tabs to close, up to ctx's deadline, then stops
// the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		m.logger.Info("All tabs closed.")
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for tabs to close: %w", ctx.Err())
	}
	m.allocCancel()
	return err
}
