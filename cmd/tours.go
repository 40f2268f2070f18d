// File: cmd/tours.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/guidepost/internal/config"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// tourFlags selects a tour by file or by id from the tours directory.
type tourFlags struct {
	path string
	id   string
}

func (f *tourFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "tour", "t", "", "tour JSON file or exported script")
	cmd.Flags().StringVar(&f.id, "id", "", "tour id to load from tours.dir")
}

// load returns the selected tour and a registry holding every tour that
// was read, so multi-tour lookups keep working during playback.
func (f *tourFlags) load(cfg *config.Config) (*tour.Tour, *tour.Registry, error) {
	reg := tour.NewRegistry()
	if dir := cfg.Tours().Dir; dir != "" {
		if _, err := reg.LoadDir(dir); err != nil {
			return nil, nil, err
		}
	}

	switch {
	case f.path != "":
		t, err := tour.ReadFile(f.path)
		if err != nil {
			return nil, nil, err
		}
		if t.ID != "" {
			if err := reg.Register(t); err != nil {
				return nil, nil, err
			}
		}
		if f.id != "" && f.id != t.ID {
			return nil, nil, fmt.Errorf("%s holds tour %q, not %q", f.path, t.ID, f.id)
		}
		return t, reg, nil
	case f.id != "":
		t, err := reg.Get(f.id)
		if err != nil {
			return nil, nil, err
		}
		return t, reg, nil
	default:
		return nil, nil, errors.New("either --tour or --id is required")
	}
}
