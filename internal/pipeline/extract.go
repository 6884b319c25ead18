package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pccmo/internal/util"
)

const (
	maxSupervisorRunes = 50
	maxDetailRunes     = 500
)

// Counting words accepted after a product quantity.
const unitAlternation = `แผ่น|ตัว|ต้น|ชุด|คู่|ชิ้น|ท่อน|วง|ลูก|กล่อง`

var datePattern = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)

var factoryRules = []rule[int]{
	{name: "factory_thai", pattern: regexp.MustCompile(`(?i)โรง(?:งาน)?` + space + `*(\d+)`), extract: atoiMatch},
	{name: "factory_en", pattern: regexp.MustCompile(`(?i)factory` + space + `*(\d+)`), extract: atoiMatch},
}

var supervisorRules = []rule[string]{
	{name: "caretaker", pattern: regexp.MustCompile(`(?i)ผู้ดูแล[:\s\pZ\x{FEFF}]*(.+)`), extract: supervisorMatch},
	{name: "elder_sibling", pattern: regexp.MustCompile(`(?i)พี่(` + nonSpace + `+)`), extract: supervisorMatch},
	{name: "contractor", pattern: regexp.MustCompile(`(?i)ผรม\.?` + space + `*(` + nonSpace + `+)`), extract: supervisorMatch},
	{name: "responsible", pattern: regexp.MustCompile(`(?i)ผู้รับผิดชอบ[:\s\pZ\x{FEFF}]*(.+)`), extract: supervisorMatch},
}

// The grand total must be tried first: a message often lists intermediate
// figures before stating the real total.
var cementRules = []rule[decimal.Decimal]{
	{name: "grand_total", pattern: regexp.MustCompile(`(?i)รวม(?:ทั้งหมด)?` + space + `*=?` + space + `*([\d.]+)` + space + `*คิว`), extract: decimalMatch},
	{name: "cement_amount", pattern: regexp.MustCompile(`(?i)จำนวน(?:ปูน|คอนกรีต)?` + space + `*=?` + space + `*([\d.]+)` + space + `*คิว`), extract: decimalMatch},
	{name: "equals_cubic", pattern: regexp.MustCompile(`(?i)=` + space + `*([\d.]+)` + space + `*คิว`), extract: decimalMatch},
	{name: "any_cubic", pattern: regexp.MustCompile(`(?i)([\d.]+)` + space + `*คิว`), extract: decimalMatch},
}

type productQuantity struct {
	Quantity decimal.Decimal
	Unit     string
}

var quantityRules = []rule[productQuantity]{
	{name: "equals_unit", pattern: regexp.MustCompile(`(?i)=` + space + `*(\d+(?:\.\d+)?)` + space + `*(` + unitAlternation + `)`), extract: quantityMatch},
	{name: "number_unit", pattern: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)` + space + `*(` + unitAlternation + `)`), extract: quantityMatch},
}

var productCodePattern = regexp.MustCompile(`(?i)\b(A\d{2})[A-Z\d\-]*\b`)

var detailSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}$`),
	regexp.MustCompile(`^วันที่`),
	regexp.MustCompile(`^โรง` + space + `*\d+` + space + `*สั่งคอนกรีต`),
	regexp.MustCompile(`(?i)^สั่งคอนกรีต`),
	regexp.MustCompile(`^รวม(?:ทั้งหมด)?`),
}

// ParseDate finds the first D/M/Y date and normalizes it to a Common Era
// YYYY-MM-DD string. Four digit years from 2500 are Buddhist era; two digit
// years from 43 are short Buddhist era, below 43 short Common Era.
func ParseDate(text string) *string {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	year = normalizeYear(year)
	if !validDay(year, month, day) {
		return nil
	}
	out := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	return &out
}

func normalizeYear(year int) int {
	switch {
	case year >= 2500:
		return year - 543
	case year < 100 && year >= 43:
		return year + 1957
	case year < 100:
		return year + 2000
	default:
		return year
	}
}

func validDay(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}

func ParseFactory(text string) *int {
	v, _, ok := firstMatch(factoryRules, text)
	if !ok {
		return nil
	}
	return &v
}

// ParseSupervisor stops at the first name pattern that matches, even when
// its capture trims to nothing; a blank name is reported as absent.
func ParseSupervisor(text string) *string {
	v, _, ok := firstMatch(supervisorRules, text)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func ParseCementQuantity(text string) decimal.NullDecimal {
	v, _, ok := firstMatch(cementRules, text)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

// ParseProductCode returns the upper-cased base code (letter plus two digits)
// of the first code-shaped token.
func ParseProductCode(text string) *string {
	m := productCodePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return util.StringPtr(util.NormalizeCode(m[1]))
}

// ParseProductQuantity finds one quantity and counting unit, preferring a
// quantity introduced by "=".
func ParseProductQuantity(text string) (decimal.NullDecimal, *string) {
	v, _, ok := firstMatch(quantityRules, text)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(v.Quantity), util.StringPtr(v.Unit)
}

// ParseProductDetail keeps the free-text lines of a message, dropping date,
// header and total lines.
func ParseProductDetail(text string) string {
	lines := util.SplitLines(text)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isHeaderLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return util.TruncateRunes(strings.Join(kept, "\n"), maxDetailRunes)
}

func isHeaderLine(line string) bool {
	for _, re := range detailSkipPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func atoiMatch(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func supervisorMatch(m []string) (string, bool) {
	return util.TruncateRunes(strings.TrimSpace(m[1]), maxSupervisorRunes), true
}

func decimalMatch(m []string) (decimal.Decimal, bool) {
	d := util.ParseDecimal(m[1])
	return d.Decimal, d.Valid
}

func quantityMatch(m []string) (productQuantity, bool) {
	d := util.ParseDecimal(m[1])
	if !d.Valid {
		return productQuantity{}, false
	}
	return productQuantity{Quantity: d.Decimal, Unit: m[2]}, true
}
