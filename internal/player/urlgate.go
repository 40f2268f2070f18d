// internal/player/urlgate.go
package player

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/guidepost/internal/tour"
)

// DefaultMaxURLPattern bounds the length of regex URL gates.
const DefaultMaxURLPattern = 512

// MatchURL reports whether current satisfies a step's URL gate. An empty gate
// always matches. Regex gates use RE2 semantics, so matching time is linear in
// the URL; patterns that fail to compile or exceed maxPattern bytes never match.
func MatchURL(current, gate string, mode tour.URLMatch, maxPattern int) bool {
	if gate == "" {
		return true
	}
	switch mode {
	case tour.MatchExact:
		return current == gate
	case tour.MatchRegex:
		if maxPattern > 0 && len(gate) > maxPattern {
			return false
		}
		re, err := regexp.Compile(gate)
		if err != nil {
			return false
		}
		return re.MatchString(current)
	default:
		return strings.HasPrefix(current, gate)
	}
}
