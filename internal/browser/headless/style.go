// internal/browser/headless/style.go
package headless

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/guidepost/internal/dom"
)

// styleRule is one rule of a <style> element, applied within the tree that
// contains it.
type styleRule struct {
	selector cascadia.SelectorGroup
	decls    map[string]string
}

// computedStyle resolves the visibility-relevant style of n. display:none and
// the hidden attribute on any ancestor hide n; visibility inherits from the
// nearest ancestor that sets it. Caller holds p.mu.
func (p *Page) computedStyle(n *html.Node) dom.Style {
	var st dom.Style
	visibilitySet := false
	for a := n; a != nil; a = composedParent(a) {
		if a.Type != html.ElementNode {
			continue
		}
		if isShadowTemplate(a) {
			continue
		}
		decls := p.declarations(a)
		if hasAttr(a, "hidden") || strings.EqualFold(decls["display"], "none") {
			st.Display = "none"
		}
		if !visibilitySet {
			if v, ok := decls["visibility"]; ok && !strings.EqualFold(v, "inherit") {
				st.Visibility = v
				visibilitySet = true
			}
		}
		if a == n {
			st.Opacity = decls["opacity"]
			if d, ok := decls["display"]; ok && st.Display == "" {
				st.Display = d
			}
		}
	}
	return st
}

// composedParent steps from a shadow tree into its host.
func composedParent(n *html.Node) *html.Node {
	p := n.Parent
	if p != nil && isShadowTemplate(p) {
		return p.Parent
	}
	return p
}

// declarations merges matching <style> rules of n's tree with its inline style,
// later rules and the inline style winning. Caller holds p.mu.
func (p *Page) declarations(n *html.Node) map[string]string {
	out := make(map[string]string)
	for _, rule := range p.rulesFor(treeRoot(n)) {
		if rule.selector.Match(n) {
			for k, v := range rule.decls {
				out[k] = v
			}
		}
	}
	for k, v := range parseDeclarations(getAttr(n, "style")) {
		out[k] = v
	}
	return out
}

// treeRoot returns the document node or shadow template that owns n.
func treeRoot(n *html.Node) *html.Node {
	for a := n.Parent; a != nil; a = a.Parent {
		if isShadowTemplate(a) || a.Parent == nil {
			return a
		}
	}
	return n
}

// rulesFor collects and caches the rules of every <style> element in the tree
// rooted at scope, skipping nested shadow trees. Caller holds p.mu.
func (p *Page) rulesFor(scope *html.Node) []styleRule {
	if rules, ok := p.sheets[scope]; ok {
		return rules
	}
	var rules []styleRule
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isShadowTemplate(c) {
				continue
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Style {
				rules = append(rules, p.parseSheet(textContent(c))...)
				continue
			}
			walk(c)
		}
	}
	walk(scope)
	p.sheets[scope] = rules
	return rules
}

// parseSheet reads "selector { declarations }" blocks. At-rules are skipped
// with their blocks; rules with selectors cascadia rejects are dropped.
func (p *Page) parseSheet(css string) []styleRule {
	css = stripComments(css)
	var rules []styleRule
	for len(css) > 0 {
		open := strings.IndexByte(css, '{')
		if open < 0 {
			break
		}
		prelude := strings.TrimSpace(css[:open])
		end := matchingBrace(css, open)
		body := css[open+1 : end]
		if end < len(css) {
			css = css[end+1:]
		} else {
			css = ""
		}
		if prelude == "" || strings.HasPrefix(prelude, "@") {
			continue
		}
		sel, err := cascadia.ParseGroup(prelude)
		if err != nil {
			p.logger.Debug("Skipping unsupported style rule.", zap.String("selector", prelude), zap.Error(err))
			continue
		}
		rules = append(rules, styleRule{selector: sel, decls: parseDeclarations(body)})
	}
	return rules
}

// matchingBrace returns the index of the brace closing the one at open, or
// len(s) when the block is unterminated.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

func stripComments(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "/*")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		j := strings.Index(s[i+2:], "*/")
		if j < 0 {
			return b.String()
		}
		s = s[i+2+j+2:]
	}
}

// parseDeclarations reads "prop: value; ..." pairs. Property names are
// lower-cased, !important is dropped, and quoted or parenthesised semicolons
// do not split values.
func parseDeclarations(s string) map[string]string {
	out := make(map[string]string)
	s = stripComments(s)
	start := 0
	var quote byte
	depth := 0
	flush := func(end int) {
		decl := s[start:end]
		start = end + 1
		colon := strings.IndexByte(decl, ':')
		if colon <= 0 {
			return
		}
		prop := strings.ToLower(strings.TrimSpace(decl[:colon]))
		val := strings.TrimSpace(decl[colon+1:])
		if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		if prop != "" && val != "" {
			out[prop] = val
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == ';' && depth == 0:
			flush(i)
		}
	}
	if start < len(s) {
		flush(len(s))
	}
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
