package tour

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/guidepost/internal/geometry"
)

const sampleTour = `{
  "version": "1.0",
  "id": "ptg_onboarding",
  "name": "Onboarding",
  "createdAt": "2025-01-02T03:04:05Z",
  "updatedAt": "2025-01-02T03:04:05Z",
  "theme": {"tooltipBg": "#222", "overlayOpacity": 0.5},
  "steps": [
    {
      "id": "s1",
      "title": "Welcome",
      "body": "It's the dashboard",
      "target": {
        "primary": {"selector": "#nav", "type": "id", "confidence": 90},
        "fallbacks": [{"selector": "nav.main", "type": "css", "confidence": 40}]
      },
      "placement": "bottom"
    },
    {
      "id": "s2",
      "title": "Save",
      "body": "Click save",
      "target": {"primary": {"selector": "#save", "type": "css"}},
      "url": "/settings",
      "urlMatch": "prefix",
      "requireTarget": false,
      "interaction": {"kind": "guided", "action": {"type": "input", "value": "x", "clearFirst": false}}
    }
  ]
}`

func TestDecode(t *testing.T) {
	tr, err := Decode([]byte(sampleTour))
	require.NoError(t, err)

	assert.Equal(t, "ptg_onboarding", tr.ID)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), tr.CreatedAt.UTC())
	require.Len(t, tr.Steps, 2)

	s1 := tr.Steps[0]
	assert.True(t, s1.TargetRequired())
	assert.Equal(t, geometry.PlacementBottom, s1.PlacementHint())
	assert.Equal(t, KindNone, s1.InteractionKind())
	cands := s1.Target.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, "#nav", cands[0].Selector)
	assert.Equal(t, SelectorCSS, cands[1].Type)

	s2 := tr.Steps[1]
	assert.False(t, s2.TargetRequired())
	assert.Equal(t, KindGuided, s2.InteractionKind())
	assert.False(t, s2.Interaction.Action.Replaces())
	assert.Equal(t, MatchPrefix, s2.URLMatch)

	_, err = Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestCandidatesSkipsEmptyEntries(t *testing.T) {
	var nilTarget *Target
	assert.Empty(t, nilTarget.Candidates())

	tg := &Target{
		Primary:   &SelectorCandidate{Selector: "  "},
		Fallbacks: []*SelectorCandidate{nil, {Selector: ".a"}, {Selector: ""}, {Selector: ".b"}},
	}
	cands := tg.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, ".a", cands[0].Selector)
	assert.Equal(t, ".b", cands[1].Selector)
}

func TestActionDefaults(t *testing.T) {
	var a *Action
	assert.True(t, a.Replaces())
	assert.Zero(t, a.WaitDuration())

	a = &Action{Type: ActionWait, Duration: 250}
	assert.True(t, a.Replaces())
	assert.Equal(t, 250*time.Millisecond, a.WaitDuration())

	a.ClearFirst = Bool(true)
	assert.True(t, a.Replaces())
}

func TestNew(t *testing.T) {
	tr := New("")
	assert.Equal(t, "Untitled Tour", tr.Name)
	assert.True(t, strings.HasPrefix(tr.ID, "ptg_"))
	assert.Equal(t, CurrentVersion, tr.Version)
	assert.Equal(t, DefaultTheme(), tr.Theme)
	assert.NotEqual(t, tr.ID, New("x").ID)

	s := NewStep()
	assert.True(t, strings.HasPrefix(s.ID, "ptg_"))
	assert.Equal(t, geometry.PlacementAuto, s.PlacementHint())
}

func TestThemeMerge(t *testing.T) {
	base := DefaultTheme()
	merged := base.Merge(Theme{TooltipBg: "#fff", OverlayOpacity: 0.2})

	assert.Equal(t, "#fff", merged.TooltipBg)
	assert.Equal(t, 0.2, merged.OverlayOpacity)
	assert.Equal(t, base.HighlightColor, merged.HighlightColor)
	assert.Equal(t, base, base.Merge(Theme{}))

	stored := Theme{HighlightColor: "red"}
	resolved := stored.Resolved()
	assert.Equal(t, "red", resolved.HighlightColor)
	assert.Equal(t, AnimationFade, resolved.Animation)
}

func TestValidate(t *testing.T) {
	var nilTour *Tour
	assert.ErrorIs(t, nilTour.Validate(), ErrInvalidTour)

	empty := New("empty")
	assert.ErrorIs(t, empty.Validate(), ErrInvalidTour)

	ok := New("ok")
	ok.Steps = append(ok.Steps, NewStep())
	assert.NoError(t, ok.Validate())

	missingAction := New("guided")
	missingAction.Steps = []Step{{Interaction: &Interaction{Kind: KindGuided}}}
	err := missingAction.Validate()
	require.ErrorIs(t, err, ErrInvalidTour)
	assert.Contains(t, err.Error(), "without an action")

	none := New("none")
	none.Steps = []Step{{Interaction: &Interaction{Kind: KindNone}}}
	assert.NoError(t, none.Validate(), "kind none needs no action")

	unknown := New("unknown")
	unknown.Steps = []Step{{Interaction: &Interaction{Kind: "telepathy", Action: &Action{Type: ActionClick}}}}
	assert.ErrorIs(t, unknown.Validate(), ErrInvalidTour)
}

func TestClone_IsDeep(t *testing.T) {
	orig, err := Decode([]byte(sampleTour))
	require.NoError(t, err)
	y := 120.0
	orig.Steps[1].Interaction.Action.Y = &y

	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Steps[0].Title = "changed"
	cp.Steps[0].Target.Primary.Selector = "#other"
	cp.Steps[0].Target.Fallbacks[0].Selector = "#other2"
	*cp.Steps[1].RequireTarget = true
	cp.Steps[1].Interaction.Action.Value = "changed"
	*cp.Steps[1].Interaction.Action.ClearFirst = true
	*cp.Steps[1].Interaction.Action.Y = 1
	cp.Steps = append(cp.Steps, NewStep())

	assert.Equal(t, "Welcome", orig.Steps[0].Title)
	assert.Equal(t, "#nav", orig.Steps[0].Target.Primary.Selector)
	assert.Equal(t, "nav.main", orig.Steps[0].Target.Fallbacks[0].Selector)
	assert.False(t, *orig.Steps[1].RequireTarget)
	assert.Equal(t, "x", orig.Steps[1].Interaction.Action.Value)
	assert.False(t, *orig.Steps[1].Interaction.Action.ClearFirst)
	assert.Equal(t, 120.0, *orig.Steps[1].Interaction.Action.Y)
	assert.Len(t, orig.Steps, 2)

	var nilTour *Tour
	assert.Nil(t, nilTour.Clone())
}

func TestExportImportScript(t *testing.T) {
	orig, err := Decode([]byte(sampleTour))
	require.NoError(t, err)
	orig.Steps[0].Body = `Quotes ' and \ backslashes ('x') and a line` + "\u2028" + `separator`

	script, err := Export(orig, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	text := string(script)

	assert.Contains(t, text, "/* PTG_TOUR_DATA_START */")
	assert.Contains(t, text, "/* PTG_TOUR_DATA_END */")
	assert.Contains(t, text, `window.ProductTourGeneratorTours["ptg_onboarding"] = JSON.parse('`)
	assert.Contains(t, text, "Generated: 2025-06-01T00:00:00Z")
	assert.Contains(t, text, `ProductTourGenerator.start("ptg_onboarding");`)
	assert.NotContains(t, text, "\u2028")

	back, err := Import(script)
	require.NoError(t, err)
	assert.Equal(t, orig.ID, back.ID)
	if diff := cmp.Diff(orig.Steps, back.Steps); diff != "" {
		t.Errorf("Round trip failed. Diff:\n%s", diff)
	}
}

func TestImport(t *testing.T) {
	t.Run("RawJSON", func(t *testing.T) {
		tr, err := Import([]byte("  " + sampleTour))
		require.NoError(t, err)
		assert.Equal(t, "Onboarding", tr.Name)
	})

	t.Run("ScriptWithoutMarkers", func(t *testing.T) {
		script := `window.x = JSON.parse('{"id":"a","name":"It\'s","steps":[]}');`
		tr, err := Import([]byte(script))
		require.NoError(t, err)
		assert.Equal(t, "It's", tr.Name)
	})

	t.Run("NoPayload", func(t *testing.T) {
		_, err := Import([]byte("console.log('hi')"))
		assert.ErrorIs(t, err, ErrNoTourPayload)
	})

	t.Run("Unterminated", func(t *testing.T) {
		_, err := Import([]byte(`JSON.parse('{"id":"a"`))
		assert.ErrorIs(t, err, ErrNoTourPayload)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := Import([]byte(`{"name":"anon","steps":[]}`))
		assert.ErrorIs(t, err, ErrInvalidTour)
	})
}

func TestExportRequiresID(t *testing.T) {
	_, err := Export(&Tour{Name: "x"}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTour)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "My_Tour__v2_.js", ExportFileName(&Tour{Name: "My Tour (v2)"}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope")
	assert.True(t, errors.Is(err, ErrTourNotFound))

	assert.ErrorIs(t, r.Register(&Tour{}), ErrInvalidTour)

	require.NoError(t, r.Register(&Tour{ID: "b"}))
	require.NoError(t, r.Register(&Tour{ID: "a"}))
	assert.Equal(t, []string{"a", "b"}, r.IDs())
	assert.Equal(t, 2, r.Len())

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	orig, err := Decode([]byte(sampleTour))
	require.NoError(t, err)

	script, err := Export(&Tour{ID: "scripted", Name: "Scripted", Steps: []Step{{Title: "one"}}}, time.Now())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "onboarding.json"), []byte(sampleTour), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripted.js"), script, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o700))

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{orig.ID, "scripted"}, r.IDs())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))
	_, err = NewRegistry().LoadDir(dir)
	assert.Error(t, err)

	_, err = r.LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
