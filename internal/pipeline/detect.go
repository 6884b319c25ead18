package pipeline

import (
	"regexp"
	"unicode/utf8"
)

const (
	minMessageRunes   = 10
	minIndicatorCount = 2
)

type DetectResult struct {
	IsOrder    bool
	Indicators []string
	Reason     string
}

type indicator struct {
	name    string
	pattern *regexp.Regexp
}

var orderIndicators = []indicator{
	{name: "order_phrase", pattern: regexp.MustCompile(`(?i)สั่งคอนกรีต`)},
	{name: "product_code", pattern: regexp.MustCompile(`(?i)A\d{2}`)},
	{name: "cubic_unit", pattern: regexp.MustCompile(`(?i)คิว`)},
	{name: "factory", pattern: regexp.MustCompile(`(?i)โรง` + space + `*\d+`)},
}

// DetectOrderMessage accepts a message when at least two independent
// indicators match. A single stray hit is treated as noise.
func DetectOrderMessage(text string) DetectResult {
	if text == "" || utf8.RuneCountInString(text) < minMessageRunes {
		return DetectResult{Reason: "too_short"}
	}

	matched := make([]string, 0, len(orderIndicators))
	for _, ind := range orderIndicators {
		if ind.pattern.MatchString(text) {
			matched = append(matched, ind.name)
		}
	}

	isOrder := len(matched) >= minIndicatorCount
	reason := "rules_negative"
	if isOrder {
		reason = "rules_positive"
	}
	return DetectResult{IsOrder: isOrder, Indicators: matched, Reason: reason}
}

func IsConcreteOrderMessage(text string) bool {
	return DetectOrderMessage(text).IsOrder
}
