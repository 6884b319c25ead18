package sheets

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"pccmo/internal"
)

// HeaderMarker is the value A1 holds once the header row exists.
const HeaderMarker = "วันที่"

// Headers are the spreadsheet columns A..L in row order.
var Headers = []string{
	"วันที่",
	"โรงงาน",
	"รหัสสินค้า",
	"รายการสินค้าที่ผลิต",
	"จำนวนสินค้า",
	"หน่วย",
	"จำนวนปูน (คิว)",
	"จำนวนที่โหลด",
	"ผลต่าง",
	"ผู้ดูแล",
	"หมายเหตุ",
	"สร้างเมื่อ",
}

var reNeedsQuotes = regexp.MustCompile(`[\s'"]`)

// BuildRange joins a tab title and an A1 range, quoting the title when it
// contains whitespace or quotes.
func BuildRange(sheetName, rng string) string {
	if reNeedsQuotes.MatchString(sheetName) {
		sheetName = "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	}
	return sheetName + "!" + rng
}

// BuildRow lays an order out in Headers order. Absent and zero values become
// empty cells.
func BuildRow(o internal.StoredOrder) []any {
	return []any{
		text(o.OrderDate),
		factory(o.FactoryID),
		text(o.ProductCode),
		text(o.ProductDetail),
		number(o.ProductQuantity),
		text(o.ProductUnit),
		number(o.CementQuantity),
		number(o.LoadedQuantity),
		number(o.Difference),
		text(o.Supervisor),
		text(o.Notes),
		o.CreatedAt,
	}
}

func text(v *string) any {
	if v == nil {
		return ""
	}
	return *v
}

func factory(v *int) any {
	if v == nil || *v == 0 {
		return ""
	}
	return *v
}

func number(d decimal.NullDecimal) any {
	if !d.Valid || d.Decimal.IsZero() {
		return ""
	}
	return d.Decimal.InexactFloat64()
}
