package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var reSpaces = regexp.MustCompile(`\s+`)

func StringPtr(v string) *string { return &v }

func IntPtr(v int) *int { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// TruncateRunes cuts s to at most max characters without splitting a rune.
func TruncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func NormalizeCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// SplitLines returns the trimmed, non-empty lines of text.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Preview(text string, max int) string {
	return TruncateRunes(strings.ReplaceAll(text, "\n", " "), max)
}
