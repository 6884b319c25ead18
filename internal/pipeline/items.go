package pipeline

import (
	"iter"
	"regexp"

	"github.com/shopspring/decimal"

	"pccmo/internal/util"
)

var itemPattern = regexp.MustCompile(`(?i)(A\d{2}[A-Z\d\-]*)` + space + `*(?:จำนวน` + space + `*)?(\d+(?:\.\d+)?)` + space + `*(` + unitAlternation + `)`)

// ParsedItem is a product line before the shared message fields are attached.
type ParsedItem struct {
	Code     string
	Quantity decimal.NullDecimal
	Unit     *string
	Detail   string
}

// ScanItems yields every non-overlapping "<code> [จำนวน] <qty> <unit>" match
// from left to right. Each call starts a fresh scan.
func ScanItems(text string) iter.Seq[ParsedItem] {
	return func(yield func(ParsedItem) bool) {
		for _, loc := range itemPattern.FindAllStringSubmatchIndex(text, -1) {
			item := ParsedItem{
				Code:     util.NormalizeCode(text[loc[2]:loc[3]]),
				Quantity: util.ParseDecimal(text[loc[4]:loc[5]]),
				Unit:     util.StringPtr(text[loc[6]:loc[7]]),
				Detail:   text[loc[0]:loc[1]],
			}
			if !yield(item) {
				return
			}
		}
	}
}

// ParseItems returns the product lines of a message. When no structured
// code/quantity/unit triple exists it falls back to a single item built from
// the first product code, the first quantity and the filtered detail lines.
func ParseItems(text string) []ParsedItem {
	var items []ParsedItem
	for item := range ScanItems(text) {
		items = append(items, item)
	}
	if len(items) > 0 {
		return items
	}

	code := ParseProductCode(text)
	if code == nil {
		return nil
	}
	qty, unit := ParseProductQuantity(text)
	return []ParsedItem{{
		Code:     *code,
		Quantity: qty,
		Unit:     unit,
		Detail:   ParseProductDetail(text),
	}}
}
