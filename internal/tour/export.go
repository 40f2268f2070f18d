// internal/tour/export.go
package tour

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	dataStartMarker = "/* PTG_TOUR_DATA_START */"
	dataEndMarker   = "/* PTG_TOUR_DATA_END */"
	parseCallPrefix = "JSON.parse('"

	// RegistryGlobal is the page-global object exported scripts assign into.
	RegistryGlobal = "window.ProductTourGeneratorTours"
)

// ErrNoTourPayload is returned by Import when a script carries no tour data.
var ErrNoTourPayload = errors.New("no tour payload found")

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ExportFileName returns the file name an exported script is saved under.
func ExportFileName(t *Tour) string {
	return unsafeFileChars.ReplaceAllString(t.Name, "_") + ".js"
}

// Export renders t as a script that registers it in the page-global tour
// registry. The tour JSON sits between machine-locatable markers so Import can
// recover it.
func Export(t *Tour, now time.Time) ([]byte, error) {
	if t == nil || t.ID == "" {
		return nil, fmt.Errorf("%w: exported tour must have an id", ErrInvalidTour)
	}
	data, err := encodeCompact(t)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "/**\n * Product Tour Generator - Exported Tour\n * Tour: %s\n * Generated: %s\n */\n\n",
		commentSafe(t.Name), now.UTC().Format(time.RFC3339))
	b.WriteString(dataStartMarker + "\n")
	fmt.Fprintf(&b, "%s = %s || {};\n", RegistryGlobal, RegistryGlobal)
	fmt.Fprintf(&b, "%s[%q] = %s%s');\n", RegistryGlobal, t.ID, parseCallPrefix, escapeSingleQuoted(string(data)))
	b.WriteString(dataEndMarker + "\n\n")
	b.WriteString("// To start this tour, include the runtime and call:\n")
	fmt.Fprintf(&b, "// ProductTourGenerator.start(%q);\n", t.ID)
	return b.Bytes(), nil
}

// Import accepts a raw tour JSON document or a script produced by Export.
// The recovered tour must carry an id.
func Import(content []byte) (*Tour, error) {
	text := strings.TrimSpace(string(content))

	var raw string
	if strings.HasPrefix(text, "{") {
		raw = text
	} else {
		payload, err := extractPayload(text)
		if err != nil {
			return nil, err
		}
		raw = payload
	}

	t, err := Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%w: imported tour has no id", ErrInvalidTour)
	}
	return t, nil
}

// extractPayload finds the JSON.parse('...') argument, preferring the region
// between the data markers, and unescapes it.
func extractPayload(script string) (string, error) {
	region := script
	if start := strings.Index(script, dataStartMarker); start >= 0 {
		region = script[start+len(dataStartMarker):]
		if end := strings.Index(region, dataEndMarker); end >= 0 {
			region = region[:end]
		}
	}

	idx := strings.Index(region, parseCallPrefix)
	if idx < 0 {
		return "", ErrNoTourPayload
	}
	body := region[idx+len(parseCallPrefix):]

	var out strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'':
			return out.String(), nil
		case c == '\\' && i+1 < len(body):
			i++
			switch body[i] {
			case '\\':
				out.WriteByte('\\')
			case '\'':
				out.WriteByte('\'')
			case 'u':
				if r, ok := lineSeparatorEscape(body[i:]); ok {
					out.WriteRune(r)
					i += 4
					continue
				}
				out.WriteString(`\u`)
			default:
				out.WriteByte('\\')
				out.WriteByte(body[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated JSON.parse argument", ErrNoTourPayload)
}

// escapeSingleQuoted makes s safe inside a single-quoted JS string literal.
// Backslashes are escaped before quotes so the quote escapes survive.
func escapeSingleQuoted(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\u2028", `\u2028`)
	s = strings.ReplaceAll(s, "\u2029", `\u2029`)
	return s
}

func lineSeparatorEscape(s string) (rune, bool) {
	switch {
	case strings.HasPrefix(s, "u2028"):
		return '\u2028', true
	case strings.HasPrefix(s, "u2029"):
		return '\u2029', true
	}
	return 0, false
}

func commentSafe(s string) string {
	s = strings.ReplaceAll(s, "*/", "* /")
	s = strings.ReplaceAll(s, "</", "< /")
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
