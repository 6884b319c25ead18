package pipeline

import "regexp"

// Whitespace classes for order patterns. RE2's \s is ASCII only, while chat
// text routinely carries non-breaking and ideographic spaces.
const (
	space    = `[\s\pZ\x{FEFF}]`
	nonSpace = `[^\s\pZ\x{FEFF}]`
)

// rule is one entry of an ordered extraction cascade. Cascades are tried top
// to bottom and the first rule whose pattern matches and whose extract
// accepts the submatches wins.
type rule[T any] struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string) (T, bool)
}

func firstMatch[T any](rules []rule[T], text string) (T, string, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := r.extract(m); ok {
			return v, r.name, true
		}
	}
	var zero T
	return zero, "", false
}
