package pipeline

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strv(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestParseMessageSingleItem(t *testing.T) {
	text := "21/01/69\nโรง4 สั่งคอนกรีต\nA42-L-Wall-H200\nCounterfort 8 ตัว\nจำนวนปูน=0.7คิว\nรวมทั้งหมด = 0.7 คิว"
	items := ParseMessage(text)
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
	got := items[0]
	if strv(got.OrderDate) != "2026-01-21" {
		t.Fatalf("orderDate=%s", strv(got.OrderDate))
	}
	if got.FactoryID == nil || *got.FactoryID != 4 {
		t.Fatalf("factoryId=%v", got.FactoryID)
	}
	if strv(got.ProductCode) != "A42" {
		t.Fatalf("productCode=%s", strv(got.ProductCode))
	}
	if !got.ProductQuantity.Valid || !got.ProductQuantity.Decimal.Equal(dec("8")) {
		t.Fatalf("productQuantity=%v", got.ProductQuantity)
	}
	if strv(got.ProductUnit) != "ตัว" {
		t.Fatalf("productUnit=%s", strv(got.ProductUnit))
	}
	if !got.CementQuantity.Valid || !got.CementQuantity.Decimal.Equal(dec("0.7")) {
		t.Fatalf("cementQuantity=%v", got.CementQuantity)
	}
	if got.Notes != nil {
		t.Fatalf("notes=%s", *got.Notes)
	}
	wantDetail := "A42-L-Wall-H200\nCounterfort 8 ตัว\nจำนวนปูน=0.7คิว"
	if strv(got.ProductDetail) != wantDetail {
		t.Fatalf("productDetail=%q", strv(got.ProductDetail))
	}
	if got.RawMessage != text {
		t.Fatal("raw message not retained")
	}
	if got.LoadedQuantity.Valid || got.Difference.Valid {
		t.Fatal("loaded/difference must be empty at parse time")
	}
}

func TestParseMessageMultiItem(t *testing.T) {
	text := "21/01/69 เพิ่มสั่งคอนกรีต โรงงาน4 กล่องฐานราก60×60 A35-FZC-F60 จำนวน 6 ชิ้น A35-FZC-F35 จำนวน 6 ชิ้น \nจำนวนคอนกรีต=0.25 คิว ชุดPccพร้อม"
	items := ParseMessage(text)
	if len(items) != 2 {
		t.Fatalf("len=%d", len(items))
	}

	first, second := items[0], items[1]
	if strv(first.ProductCode) != "A35-FZC-F60" || strv(second.ProductCode) != "A35-FZC-F35" {
		t.Fatalf("codes=%s,%s", strv(first.ProductCode), strv(second.ProductCode))
	}
	if !first.CementQuantity.Valid || !first.CementQuantity.Decimal.Equal(dec("0.25")) {
		t.Fatalf("first cement=%v", first.CementQuantity)
	}
	if second.CementQuantity.Valid {
		t.Fatalf("second cement=%v", second.CementQuantity)
	}
	for i, item := range items {
		if !item.ProductQuantity.Decimal.Equal(dec("6")) || strv(item.ProductUnit) != "ชิ้น" {
			t.Fatalf("item %d qty=%v unit=%s", i, item.ProductQuantity, strv(item.ProductUnit))
		}
		if strv(item.OrderDate) != "2026-01-21" || item.FactoryID == nil || *item.FactoryID != 4 {
			t.Fatalf("item %d header fields not shared", i)
		}
		wantNotes := fmt.Sprintf("รายการที่ %d/2", i+1)
		if strv(item.Notes) != wantNotes {
			t.Fatalf("item %d notes=%s", i, strv(item.Notes))
		}
	}
	if strv(first.ProductDetail) != "A35-FZC-F60 จำนวน 6 ชิ้น" {
		t.Fatalf("detail=%q", strv(first.ProductDetail))
	}
}

func TestParseMessageRejectsWithoutProductCode(t *testing.T) {
	text := "21/01/69\nโรง 4 สั่งคอนกรีต\nเสารั้ว 20 ต้น\nรวม 1.5 คิว"
	if !IsConcreteOrderMessage(text) {
		t.Fatal("message should pass classification")
	}
	if items := ParseMessage(text); items != nil {
		t.Fatalf("want nil, got %d items", len(items))
	}
}

func TestParseMessageLegacyExamples(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		date    string
		factory int
		code    string
		cement  string
		qty     string
		unit    string
	}{
		{
			name:    "fence panel",
			input:   "วันที่ 21/1/69\nโรง 2 สั่งคอนกรีต A35   \nแผ่นรั้ว slump 23-24 cm.\nPCC เทแผ่นรั้ว New.ทับหลัง\n2โต๊ะ=20แผ่น\n=0.35คิว  (พร้อมเทครับ )",
			date:    "2026-01-21",
			factory: 2,
			code:    "A35",
			cement:  "0.35",
			qty:     "20",
			unit:    "แผ่น",
		},
		{
			name:    "fence pole",
			input:   "20/1/2026\nโรง4 สั่งคอนกรีต\nเสารั้ว A35-Fzc-I15Ns-C200=28ต้น\nจำนวนปูน=1.1คิว",
			date:    "2026-01-20",
			factory: 4,
			code:    "A35",
			cement:  "1.1",
			qty:     "28",
			unit:    "ต้น",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := ParseMessage(tc.input)
			if len(items) != 1 {
				t.Fatalf("len=%d", len(items))
			}
			got := items[0]
			if strv(got.OrderDate) != tc.date {
				t.Fatalf("date=%s", strv(got.OrderDate))
			}
			if got.FactoryID == nil || *got.FactoryID != tc.factory {
				t.Fatalf("factory=%v", got.FactoryID)
			}
			if strv(got.ProductCode) != tc.code {
				t.Fatalf("code=%s", strv(got.ProductCode))
			}
			if !got.CementQuantity.Decimal.Equal(dec(tc.cement)) {
				t.Fatalf("cement=%v", got.CementQuantity)
			}
			if !got.ProductQuantity.Decimal.Equal(dec(tc.qty)) || strv(got.ProductUnit) != tc.unit {
				t.Fatalf("qty=%v unit=%s", got.ProductQuantity, strv(got.ProductUnit))
			}
		})
	}
}

func TestParseMessageDeterministic(t *testing.T) {
	inputs := []string{
		"21/01/69\nโรง4 สั่งคอนกรีต\nA42-L-Wall-H200\nCounterfort 8 ตัว\nจำนวนปูน=0.7คิว\nรวมทั้งหมด = 0.7 คิว",
		"สั่งคอนกรีต โรงงาน4 A35-FZC-F60 จำนวน 6 ชิ้น A35-FZC-F35 จำนวน 6 ชิ้น จำนวนคอนกรีต=0.4 คิว",
		"hello there, nothing to see",
	}
	for _, in := range inputs {
		a := ParseMessage(in)
		b := ParseMessage(in)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("non-deterministic output for %q", in)
		}
		if IsConcreteOrderMessage(in) != IsConcreteOrderMessage(in) {
			t.Fatalf("classification flipped for %q", in)
		}
	}
}

func TestParseMessageCementOnlyOnFirstItem(t *testing.T) {
	inputs := []string{
		"โรง1 สั่งคอนกรีต A10 3 ชุด A11 4 คู่ A12 5 วง รวม 2 คิว",
		"โรง 3 A20-X 1 กล่อง A21-Y จำนวน 2 ลูก =0.5คิว",
		"สั่งคอนกรีต A30 10 ท่อน A31 2.5 แผ่น",
	}
	for _, in := range inputs {
		items := ParseMessage(in)
		if len(items) < 2 {
			t.Fatalf("want multiple items for %q, got %d", in, len(items))
		}
		for i, item := range items {
			if i > 0 && item.CementQuantity.Valid {
				t.Fatalf("item %d of %q carries cement", i, in)
			}
			if !strings.HasPrefix(strv(item.Notes), "รายการที่ ") {
				t.Fatalf("item %d notes=%s", i, strv(item.Notes))
			}
		}
	}
}

func TestDetectOrderMessage(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "too short", input: "A35 1คิว", want: false},
		{name: "single indicator", input: "พรุ่งนี้ส่งของ 5 คิว นะครับ", want: false},
		{name: "phrase and factory", input: "โรง 4 สั่งคอนกรีต ด่วนครับ", want: true},
		{name: "code and cubic", input: "เท A35 ได้ 1.2 คิว แล้ว", want: true},
		{name: "empty", input: "", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectOrderMessage(tc.input)
			if got.IsOrder != tc.want {
				t.Fatalf("isOrder=%v want %v (indicators=%v reason=%s)", got.IsOrder, tc.want, got.Indicators, got.Reason)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"21/01/69", "2026-01-21"},
		{"21/1/69", "2026-01-21"},
		{"20/1/2026", "2026-01-20"},
		{"15-12-68", "2025-12-15"},
		{"1.2.2569", "2026-02-01"},
		{"5/6/25", "2025-06-05"},
		{"วันที่ 3/4/43", "2000-04-03"},
		{"3/4/42", "2042-04-03"},
		{"no date here", ""},
		{"31/02/69", ""},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseDate(tc.input)
			if tc.want == "" {
				if got != nil {
					t.Fatalf("want nil, got %s", *got)
				}
				return
			}
			if got == nil || *got != tc.want {
				t.Fatalf("got %s want %s", strv(got), tc.want)
			}
		})
	}
}

func TestParseDatePreservesDayAndMonth(t *testing.T) {
	for _, in := range []string{"21/01/69", "9-11-2568", "28.02.24", "1/12/2025"} {
		got := ParseDate(in)
		if got == nil {
			t.Fatalf("no date for %q", in)
		}
		m := datePattern.FindStringSubmatch(in)
		parts := strings.Split(*got, "-")
		day, _ := strconv.Atoi(parts[2])
		month, _ := strconv.Atoi(parts[1])
		wantDay, _ := strconv.Atoi(m[1])
		wantMonth, _ := strconv.Atoi(m[2])
		if day != wantDay || month != wantMonth {
			t.Fatalf("%q -> %s changed day/month", in, *got)
		}
	}
}

func TestParseFactory(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"โรง4 สั่งคอนกรีต", 4, true},
		{"โรงงาน 12", 12, true},
		{"factory 3", 3, true},
		{"Factory7", 7, true},
		{"ไม่มีโรง", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseFactory(tc.input)
			if (got != nil) != tc.ok {
				t.Fatalf("got %v", got)
			}
			if tc.ok && *got != tc.want {
				t.Fatalf("got %d want %d", *got, tc.want)
			}
		})
	}
}

func TestParseSupervisor(t *testing.T) {
	long := strings.Repeat("ก", 60)
	cases := []struct {
		input string
		want  string
	}{
		{"ผู้ดูแล: สมชาย ใจดี", "สมชาย ใจดี"},
		{"ฝากพี่เอก ด้วยครับ", "เอก"},
		{"ผรม. สมศักดิ์ รับของ", "สมศักดิ์"},
		{"ผู้รับผิดชอบ: วิชัย", "วิชัย"},
		{"ผู้ดูแล:" + long, strings.Repeat("ก", 50)},
		{"ไม่มีชื่อ", ""},
		{"ฝากพี่เอก ผู้ดูแล: ", ""},
		{"ผรม.\u00a0สมศักดิ์\u00a0รับของ", "สมศักดิ์"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseSupervisor(tc.input)
			if tc.want == "" {
				if got != nil {
					t.Fatalf("want nil, got %s", *got)
				}
				return
			}
			if strv(got) != tc.want {
				t.Fatalf("got %q want %q", strv(got), tc.want)
			}
		})
	}
}

func TestParseCementQuantityPriority(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "grand total wins", input: "จำนวนปูน=0.5คิว\nเพิ่ม =0.2คิว\nรวม = 0.7 คิว", want: "0.7"},
		{name: "cement amount", input: "เท 3 คิว\nจำนวนปูน=0.5คิว", want: "0.5"},
		{name: "equals cubic", input: "เท 3 คิว แล้ว =1.5คิว", want: "1.5"},
		{name: "any cubic", input: "เทไป 1.2 คิว", want: "1.2"},
		{name: "none", input: "ไม่มีปริมาณ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseCementQuantity(tc.input)
			if tc.want == "" {
				if got.Valid {
					t.Fatalf("want empty, got %v", got.Decimal)
				}
				return
			}
			if !got.Valid || !got.Decimal.Equal(dec(tc.want)) {
				t.Fatalf("got %v want %s", got, tc.want)
			}
		})
	}
}

func TestParseProductQuantity(t *testing.T) {
	qty, unit := ParseProductQuantity("เสา 5 ต้น รวม =12ต้น")
	if !qty.Decimal.Equal(dec("12")) || strv(unit) != "ต้น" {
		t.Fatalf("qty=%v unit=%s", qty, strv(unit))
	}
	qty, unit = ParseProductQuantity("ไม่มีจำนวน")
	if qty.Valid || unit != nil {
		t.Fatal("expected empty quantity")
	}
}

func TestParseProductDetail(t *testing.T) {
	text := "21/01/69\nวันที่ 21/1/69\nโรง 4 สั่งคอนกรีต\nสั่งคอนกรีต ด่วน\n  เสารั้ว A35  \n\nslump 10\nรวมทั้งหมด 1 คิว"
	got := ParseProductDetail(text)
	if got != "เสารั้ว A35\nslump 10" {
		t.Fatalf("detail=%q", got)
	}
	if long := ParseProductDetail(strings.Repeat("ข", 600)); len([]rune(long)) != 500 {
		t.Fatalf("detail not truncated: %d", len([]rune(long)))
	}
}

func TestScanItemsRestartable(t *testing.T) {
	text := "A10 2 ชุด A11 3 ชุด"
	count := func() int {
		n := 0
		for range ScanItems(text) {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 2 || b != 2 {
		t.Fatalf("scan counts %d,%d", a, b)
	}
	for item := range ScanItems(text) {
		if item.Code != "A10" {
			t.Fatalf("first=%s", item.Code)
		}
		break
	}
}

func TestParseItemsNonBreakingSpaces(t *testing.T) {
	items := ParseItems("A35-X\u00a06 ชิ้น A36-Y\u00a07\u3000ชิ้น")
	if len(items) != 2 {
		t.Fatalf("items=%d", len(items))
	}
	if items[0].Code != "A35-X" || !items[0].Quantity.Decimal.Equal(dec("6")) {
		t.Fatalf("first=%+v", items[0])
	}
	if items[1].Code != "A36-Y" || !items[1].Quantity.Decimal.Equal(dec("7")) || strv(items[1].Unit) != "ชิ้น" {
		t.Fatalf("second=%+v", items[1])
	}

	qty, unit := ParseProductQuantity("เสา =\u00a012\u00a0ต้น")
	if !qty.Decimal.Equal(dec("12")) || strv(unit) != "ต้น" {
		t.Fatalf("qty=%v unit=%s", qty, strv(unit))
	}
	if got := ParseCementQuantity("รวมทั้งหมด\u00a0=\u00a00.7\u00a0คิว"); !got.Decimal.Equal(dec("0.7")) {
		t.Fatalf("cement=%v", got)
	}
	if got := ParseFactory("โรง\u00a03 สั่งคอนกรีต"); got == nil || *got != 3 {
		t.Fatalf("factory=%v", got)
	}
}
