// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/browser/headless"
	"github.com/xkilldash9x/guidepost/internal/player"
	"github.com/xkilldash9x/guidepost/internal/resolver"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

const (
	fixtureTour = "testdata/onboarding.json"
	fixturePage = "testdata/page.html"
)

// execute runs a fresh command tree and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "guidepost "+Version+"\n", out)
}

func TestConfigLoading(t *testing.T) {
	t.Run("ExplicitFileMustExist", func(t *testing.T) {
		_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
		assert.ErrorContains(t, err, "error reading config file")
	})

	t.Run("InvalidValuesAreRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("player:\n  mode: sideways\n"), 0o644))
		_, err := execute(t, "--config", path, "version")
		assert.ErrorContains(t, err, "failed to load or validate config")
	})

	t.Run("ToursDirFeedsId", func(t *testing.T) {
		dir := t.TempDir()
		data, err := os.ReadFile(fixtureTour)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "onboarding.json"), data, 0o644))
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("tours:\n  dir: "+dir+"\n"), 0o644))

		out, err := execute(t, "--config", cfgPath, "check", "--id", "ptg_onboarding", "--page", fixturePage)
		assert.Error(t, err)
		assert.Contains(t, out, `Tour "Billing Onboarding" (ptg_onboarding): 4 steps`)
	})
}

func TestTourSelection(t *testing.T) {
	_, err := execute(t, "check", "--page", fixturePage)
	assert.ErrorContains(t, err, "either --tour or --id is required")

	_, err = execute(t, "check", "--tour", fixtureTour, "--id", "ptg_other", "--page", fixturePage)
	assert.ErrorContains(t, err, `not "ptg_other"`)

	_, err = execute(t, "check", "--tour", fixtureTour)
	assert.ErrorContains(t, err, `"page" not set`)
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", "--tour", fixtureTour, "--page", fixturePage)
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 4 steps would not resolve")

	assert.Contains(t, out, `[OK] step 1 "Save your work"`)
	assert.Contains(t, out, `[OK] step 2 "Announcements"`)
	assert.Contains(t, out, "target optional; tooltip would be centered")
	assert.Contains(t, out, `[OK] step 3 "Name the account"`)
	assert.Contains(t, out, `[MISSING] step 4 "Legacy export"`)

	// The fallback wins step 1 and is marked.
	lines := strings.Split(out, "\n")
	var winner string
	for _, l := range lines {
		if strings.HasPrefix(l, "  *") && strings.Contains(l, "#save") {
			winner = l
		}
	}
	assert.Contains(t, winner, "matched")
}

func TestCheckPageURLDefaultsToFirstGate(t *testing.T) {
	const gated = `{"id":"ptg_gated","name":"Gated","steps":[
	  {"title":"Billing","body":"b","url":"https://app.example.com/billing","target":{"primary":{"selector":"#save","type":"css"}}},
	  {"title":"Billing again","body":"b","url":"https://app.example.com/billing","urlMatch":"prefix"}
	]}`
	path := filepath.Join(t.TempDir(), "gated.json")
	require.NoError(t, os.WriteFile(path, []byte(gated), 0o644))

	out, err := execute(t, "check", "--tour", path, "--page", fixturePage)
	require.NoError(t, err)
	assert.NotContains(t, out, "does not match the snapshot")

	out, err = execute(t, "check", "--tour", path, "--page", fixturePage, "--page-url", "https://app.example.com/home")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "does not match the snapshot"), out)
}

func TestCheckTourKeepsStepOrder(t *testing.T) {
	tr, err := tour.ReadFile(fixtureTour)
	require.NoError(t, err)
	markup, err := os.ReadFile(fixturePage)
	require.NoError(t, err)
	page, err := headless.NewPage("https://app.example.com/", string(markup))
	require.NoError(t, err)

	res := resolver.New(page, zap.NewNop(), false)
	reports, err := checkTour(context.Background(), tr, page, res, player.DefaultMaxURLPattern)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	for i, r := range reports {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, tr.Steps[i].ID, r.Step.ID)
		assert.True(t, r.URLMatch, "steps without a URL gate always match")
	}
	assert.True(t, reports[0].ok())
	assert.False(t, reports[3].ok())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = checkTour(ctx, tr, page, res, player.DefaultMaxURLPattern)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulate(t *testing.T) {
	tr, err := tour.ReadFile(fixtureTour)
	require.NoError(t, err)
	markup, err := os.ReadFile(fixturePage)
	require.NoError(t, err)
	page, err := headless.NewPage("https://app.example.com/", string(markup))
	require.NoError(t, err)

	surface := headless.NewSurface(page)
	clock := player.NewManualScheduler()
	p := player.New(page, surface, page, player.WithScheduler(clock))

	moves, err := simulate(context.Background(), p, page, surface, clock, tr, 50)
	require.NoError(t, err)
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 4, moves)
	assert.NotEmpty(t, surface.Transcript())
	assert.False(t, surface.State().Mounted)

	el, err := page.Query(context.Background(), "#name")
	require.NoError(t, err)
	assert.Equal(t, "Acme", el.(*headless.Element).Attr("value"))

	t.Run("GivesUpAfterMaxMoves", func(t *testing.T) {
		page, err := headless.NewPage("https://app.example.com/", string(markup))
		require.NoError(t, err)
		surface := headless.NewSurface(page)
		clock := player.NewManualScheduler()
		p := player.New(page, surface, page, player.WithScheduler(clock))

		_, err = simulate(context.Background(), p, page, surface, clock, tr, 1)
		assert.ErrorContains(t, err, "still playing after 1 inputs")
		assert.False(t, p.IsPlaying())
	})
}

func TestSimulateCommand(t *testing.T) {
	out, err := execute(t, "simulate", "--tour", fixtureTour, "--page", fixturePage)
	require.NoError(t, err)
	assert.Contains(t, out, `Finished "Billing Onboarding" after 4 inputs.`)
}

func TestExportImportRoundTrip(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	dir := t.TempDir()
	script := filepath.Join(dir, "out", "onboarding.js")
	out, err := execute(t, "export", "--tour", fixtureTour, "--out", script)
	require.NoError(t, err)
	assert.Equal(t, script+"\n", out)

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Generated: 2025-03-01T12:00:00Z")
	assert.Contains(t, string(data), `window.ProductTourGeneratorTours["ptg_onboarding"]`)

	doc := filepath.Join(dir, "tour.json")
	_, err = execute(t, "import", "--in", script, "--out", doc)
	require.NoError(t, err)

	orig, err := tour.ReadFile(fixtureTour)
	require.NoError(t, err)
	back, err := tour.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, orig.ID, back.ID)
	assert.Equal(t, orig.Name, back.Name)
	if diff := cmp.Diff(orig.Steps, back.Steps); diff != "" {
		t.Errorf("Round trip failed. Diff:\n%s", diff)
	}

	t.Run("ImportToStdout", func(t *testing.T) {
		out, err := execute(t, "import", "--in", script)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "{"))
		assert.Contains(t, out, `"id": "ptg_onboarding"`)
	})

	t.Run("ImportRejectsScriptsWithoutAPayload", func(t *testing.T) {
		bogus := filepath.Join(dir, "bogus.js")
		require.NoError(t, os.WriteFile(bogus, []byte("console.log('hi');"), 0o644))
		_, err := execute(t, "import", "--in", bogus)
		assert.ErrorIs(t, err, tour.ErrNoTourPayload)
	})
}

func TestFirstGateURL(t *testing.T) {
	tr := &tour.Tour{}
	assert.Empty(t, firstGateURL(tr))

	tr.Steps = []tour.Step{{URL: "https://a.test/app"}}
	assert.Equal(t, "https://a.test/app", firstGateURL(tr))

	tr.Steps[0].URLMatch = tour.MatchRegex
	assert.Empty(t, firstGateURL(tr))
}
