package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numericPrefix = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+)`)

// ParseDecimal reads the leading number of a captured token such as "0.7",
// "1.1." or "12". Tokens without a usable number yield an invalid NullDecimal.
func ParseDecimal(token string) decimal.NullDecimal {
	compact := strings.TrimSpace(strings.ReplaceAll(token, " ", ""))
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		compact = strings.ReplaceAll(compact, ",", ".")
	}
	prefix := numericPrefix.FindString(compact)
	if prefix == "" {
		return decimal.NullDecimal{}
	}
	if strings.HasPrefix(prefix, ".") {
		prefix = "0" + prefix
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// NullFloat converts a NullDecimal into a driver value: nil or float64.
func NullFloat(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func FormatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
