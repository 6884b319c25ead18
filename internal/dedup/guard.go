package dedup

import (
	"context"
	"strconv"
	"strings"
	"time"

	"pccmo/internal"
	"pccmo/internal/util"
)

const (
	DefaultMessageWindowMin = 10
	DefaultItemWindowMin    = 30
)

// Identity is the sender a stored record is keyed on. A group id, when
// present, takes precedence over the user id.
type Identity struct {
	GroupID string
	UserID  string
}

func NewIdentity(groupID, userID *string) Identity {
	return Identity{
		GroupID: strings.TrimSpace(util.Deref(groupID)),
		UserID:  strings.TrimSpace(util.Deref(userID)),
	}
}

func (i Identity) Empty() bool { return i.GroupID == "" && i.UserID == "" }

// ByGroup reports whether records are matched on the group id. Otherwise they
// are matched on the user id among records that carry no group.
func (i Identity) ByGroup() bool { return i.GroupID != "" }

type MessageQuery struct {
	RawMessage string
	Identity   Identity
	Since      time.Time
}

// ItemQuery holds the identity tuple of an item with absent values replaced
// by sentinels: empty string for text, 0 for the cement quantity.
type ItemQuery struct {
	OrderDate      string
	FactoryID      string
	ProductCode    string
	ProductDetail  string
	CementQuantity float64
	Identity       Identity
	Since          time.Time
}

// Finder is the read side of storage the guard depends on. Both lookups
// return the id of the most recent matching record, or nil.
type Finder interface {
	FindRecentByRawMessage(ctx context.Context, q MessageQuery) (*int64, error)
	FindRecentByItemShape(ctx context.Context, q ItemQuery) (*int64, error)
}

type Guard struct {
	finder Finder
	now    func() time.Time
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(finder Finder, opts ...Option) *Guard {
	g := &Guard{finder: finder, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsDuplicateMessage returns the id of a record stored within windowMinutes
// with the same raw text and sender. Without any sender identity the check is
// skipped.
func (g *Guard) IsDuplicateMessage(ctx context.Context, rawText string, id Identity, windowMinutes int) (*int64, error) {
	if id.Empty() {
		return nil, nil
	}
	return g.finder.FindRecentByRawMessage(ctx, MessageQuery{
		RawMessage: rawText,
		Identity:   id,
		Since:      g.since(windowMinutes),
	})
}

// IsDuplicateItem returns the id of a record stored within windowMinutes that
// has the same date, factory, product code, detail, cement quantity and sender.
func (g *Guard) IsDuplicateItem(ctx context.Context, item internal.OrderItem, windowMinutes int) (*int64, error) {
	id := NewIdentity(item.LineGroupID, item.LineUserID)
	if id.Empty() {
		return nil, nil
	}
	return g.finder.FindRecentByItemShape(ctx, BuildItemQuery(item, id, g.since(windowMinutes)))
}

func BuildItemQuery(item internal.OrderItem, id Identity, since time.Time) ItemQuery {
	q := ItemQuery{
		OrderDate:     util.Deref(item.OrderDate),
		ProductCode:   util.Deref(item.ProductCode),
		ProductDetail: util.Deref(item.ProductDetail),
		Identity:      id,
		Since:         since,
	}
	if item.FactoryID != nil {
		q.FactoryID = strconv.Itoa(*item.FactoryID)
	}
	if item.CementQuantity.Valid {
		q.CementQuantity = item.CementQuantity.Decimal.InexactFloat64()
	}
	return q
}

func (g *Guard) since(windowMinutes int) time.Time {
	return g.now().Add(-time.Duration(windowMinutes) * time.Minute)
}
