package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pccmo/internal"
	"pccmo/internal/dedup"
	"pccmo/internal/util"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestDB(t *testing.T, c *clock) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "orders.db"), WithClock(c.now), WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleItem(raw string) internal.OrderItem {
	factory := 1
	return internal.OrderItem{
		OrderDate:       util.StringPtr("2025-12-15"),
		FactoryID:       &factory,
		ProductCode:     util.StringPtr("A42"),
		ProductDetail:   util.StringPtr("A42-L-Wall-H200 จำนวน 12 แผ่น"),
		ProductQuantity: decimal.NewNullDecimal(decimal.NewFromInt(12)),
		ProductUnit:     util.StringPtr("แผ่น"),
		CementQuantity:  decimal.NewNullDecimal(decimal.RequireFromString("0.7")),
		RawMessage:      raw,
		LineGroupID:     util.StringPtr("G1"),
		LineUserID:      util.StringPtr("U1"),
	}
}

func TestInsertAndGetOrder(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	ctx := context.Background()

	id, err := db.InsertOrder(ctx, sampleItem("raw"), internal.SourceLine, "trace-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.GetOrder(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("order not found")
	}
	if util.Deref(got.ProductCode) != "A42" || got.FactoryID == nil || *got.FactoryID != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got.CementQuantity.Valid || got.CementQuantity.Decimal.String() != "0.7" {
		t.Fatalf("cement=%v", got.CementQuantity)
	}
	if got.LoadedQuantity.Valid || got.Supervisor != nil {
		t.Fatalf("expected absent fields to stay null")
	}
	if got.CreatedAt != "2025-12-15 02:00:00" {
		t.Fatalf("createdAt=%q", got.CreatedAt)
	}
	if got.Synced || got.Source != "line" {
		t.Fatalf("synced=%v source=%q", got.Synced, got.Source)
	}

	missing, err := db.GetOrder(ctx, id+100)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing order")
	}
}

func TestDuplicateMessageWithinWindow(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	guard := dedup.NewGuard(db, dedup.WithClock(c.now))
	ctx := context.Background()

	first, err := db.InsertOrder(ctx, sampleItem("same text"), internal.SourceLine, "")
	if err != nil {
		t.Fatal(err)
	}

	c.advance(time.Minute)
	got, err := guard.IsDuplicateMessage(ctx, "same text", dedup.Identity{GroupID: "G1"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != first {
		t.Fatalf("got=%v want %d", got, first)
	}
}

func TestDuplicateMessageOutsideWindow(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	guard := dedup.NewGuard(db, dedup.WithClock(c.now))
	ctx := context.Background()

	if _, err := db.InsertOrder(ctx, sampleItem("same text"), internal.SourceLine, ""); err != nil {
		t.Fatal(err)
	}

	c.advance(11 * time.Minute)
	got, err := guard.IsDuplicateMessage(ctx, "same text", dedup.Identity{GroupID: "G1"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no duplicate, got %d", *got)
	}
}

func TestDuplicateMessageIdentityScope(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	guard := dedup.NewGuard(db, dedup.WithClock(c.now))
	ctx := context.Background()

	direct := sampleItem("direct")
	direct.LineGroupID = nil
	direct.LineUserID = util.StringPtr("U9")
	if _, err := db.InsertOrder(ctx, direct, internal.SourceLine, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertOrder(ctx, sampleItem("group"), internal.SourceLine, ""); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		raw  string
		id   dedup.Identity
		want bool
	}{
		{"same user direct", "direct", dedup.Identity{UserID: "U9"}, true},
		{"other group", "group", dedup.Identity{GroupID: "G2"}, false},
		{"user of group record", "group", dedup.Identity{UserID: "U1"}, false},
		{"same group", "group", dedup.Identity{GroupID: "G1", UserID: "U5"}, true},
	}
	for _, tc := range cases {
		got, err := guard.IsDuplicateMessage(ctx, tc.raw, tc.id, 10)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if (got != nil) != tc.want {
			t.Fatalf("%s: got=%v want duplicate=%v", tc.name, got, tc.want)
		}
	}
}

func TestDuplicateItemShape(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	guard := dedup.NewGuard(db, dedup.WithClock(c.now))
	ctx := context.Background()

	item := sampleItem("first")
	item.Supervisor = nil
	item.CementQuantity = decimal.NullDecimal{}
	id, err := db.InsertOrder(ctx, item, internal.SourceLine, "")
	if err != nil {
		t.Fatal(err)
	}

	c.advance(5 * time.Minute)
	again := item
	again.RawMessage = "resent with a typo"
	got, err := guard.IsDuplicateItem(ctx, again, 30)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != id {
		t.Fatalf("got=%v want %d", got, id)
	}

	other := item
	other.CementQuantity = decimal.NewNullDecimal(decimal.RequireFromString("0.5"))
	got, err = guard.IsDuplicateItem(ctx, other, 30)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("different cement should not match, got %d", *got)
	}

	c.advance(26 * time.Minute)
	got, err = guard.IsDuplicateItem(ctx, again, 30)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected window to have passed, got %d", *got)
	}
}

func TestListAndCountOrders(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	ctx := context.Background()

	for i, date := range []string{"2025-12-14", "2025-12-15", "2025-12-16"} {
		item := sampleItem("m" + date)
		item.OrderDate = util.StringPtr(date)
		f := i + 1
		item.FactoryID = &f
		if _, err := db.InsertOrder(ctx, item, internal.SourceLine, ""); err != nil {
			t.Fatal(err)
		}
		c.advance(time.Second)
	}

	all, err := db.ListOrders(ctx, internal.OrderFilter{}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len=%d", len(all))
	}
	if util.Deref(all[0].OrderDate) != "2025-12-16" {
		t.Fatalf("expected newest first, got %s", util.Deref(all[0].OrderDate))
	}

	f := internal.OrderFilter{StartDate: "2025-12-15", FactoryIDs: []int{2, 3}}
	n, err := db.CountOrders(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count=%d", n)
	}

	page, err := db.ListOrders(ctx, internal.OrderFilter{Search: "2025-12-14"}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Fatalf("search len=%d", len(page))
	}
}

func TestSyncedFlag(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	ctx := context.Background()

	a, _ := db.InsertOrder(ctx, sampleItem("a"), internal.SourceLine, "")
	c.advance(time.Second)
	b, _ := db.InsertOrder(ctx, sampleItem("b"), internal.SourceLine, "")

	if err := db.MarkSynced(ctx, []int64{a}); err != nil {
		t.Fatal(err)
	}
	pending, err := db.ListUnsyncedOrders(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != b {
		t.Fatalf("pending=%+v", pending)
	}
}

func TestSummaries(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	ctx := context.Background()

	add := func(date string, factory int, code string, cement string) {
		item := sampleItem(date + code + cement)
		item.OrderDate = util.StringPtr(date)
		item.FactoryID = &factory
		item.ProductCode = util.StringPtr(code)
		if cement == "" {
			item.CementQuantity = decimal.NullDecimal{}
		} else {
			item.CementQuantity = decimal.NewNullDecimal(decimal.RequireFromString(cement))
		}
		if _, err := db.InsertOrder(ctx, item, internal.SourceLine, ""); err != nil {
			t.Fatal(err)
		}
	}
	add("2025-12-15", 1, "A42", "0.5")
	add("2025-12-15", 1, "A35", "")
	add("2025-12-15", 2, "A35", "2")
	add("2025-11-30", 2, "A35", "1")

	daily, err := db.DailySummary(ctx, "2025-12-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 2 {
		t.Fatalf("len=%d", len(daily))
	}
	if util.Deref(daily[0].GroupKey) != "1" || daily[0].OrderCount != 2 || daily[0].TotalCement.String() != "0.5" {
		t.Fatalf("factory 1 row=%+v", daily[0])
	}

	byProduct, err := db.SummaryByMonth(ctx, "2025-12", "product")
	if err != nil {
		t.Fatal(err)
	}
	if len(byProduct) != 2 || util.Deref(byProduct[0].GroupKey) != "A35" {
		t.Fatalf("byProduct=%+v", byProduct)
	}

	if _, err := db.SummaryByDate(ctx, "2025-12-15", "supervisor"); err == nil {
		t.Fatal("expected error for unknown group")
	}
}

func TestMissingQuantityBackfill(t *testing.T) {
	c := &clock{t: time.Date(2025, 12, 15, 2, 0, 0, 0, time.UTC)}
	db := openTestDB(t, c)
	ctx := context.Background()

	item := sampleItem("A35 20 แผ่น")
	item.ProductQuantity = decimal.NullDecimal{}
	item.ProductUnit = nil
	id, _ := db.InsertOrder(ctx, item, internal.SourceLine, "")
	if _, err := db.InsertOrder(ctx, sampleItem("complete"), internal.SourceLine, ""); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListOrdersMissingQuantity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending=%+v", pending)
	}

	if err := db.UpdateProductQuantity(ctx, id, decimal.NewNullDecimal(decimal.NewFromInt(20)), util.StringPtr("แผ่น")); err != nil {
		t.Fatal(err)
	}
	pending, err = db.ListOrdersMissingQuantity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("len=%d", len(pending))
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t, &clock{t: time.Now()})

	v, err := db.GetMetadata("sheets.last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected nil, got %q", *v)
	}
	if err := db.SetMetadata("sheets.last_sync_at", "2025-12-15T02:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMetadata("sheets.last_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || *v != "2025-12-15T02:00:00Z" {
		t.Fatalf("value=%v", v)
	}
}
