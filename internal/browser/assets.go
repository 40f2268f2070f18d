// internal/browser/assets.go
package browser

import (
	_ "embed"
	"errors"
)

//go:embed assets/surface.js
var surfaceScript string

//go:embed assets/surface.css
var surfaceStyles string

// surfaceAssets returns the injected overlay script and its stylesheet.
func surfaceAssets() (script, css string, err error) {
	if surfaceScript == "" || surfaceStyles == "" {
		return "", "", errors.New("embedded surface assets are empty")
	}
	return surfaceScript, surfaceStyles, nil
}
