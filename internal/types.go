package internal

import "github.com/shopspring/decimal"

type MessageSource string

const (
	SourceLine MessageSource = "line"
	SourceMail MessageSource = "mail"
	SourceCLI  MessageSource = "cli"
)

// OrderItem is one product line extracted from an order message. Every item
// of a message shares OrderDate, FactoryID, Supervisor and RawMessage.
type OrderItem struct {
	OrderDate       *string
	FactoryID       *int
	ProductCode     *string
	ProductDetail   *string
	ProductQuantity decimal.NullDecimal
	ProductUnit     *string
	CementQuantity  decimal.NullDecimal
	LoadedQuantity  decimal.NullDecimal
	Difference      decimal.NullDecimal
	Supervisor      *string
	Notes           *string
	RawMessage      string

	LineUserID  *string
	LineGroupID *string
}

type StoredOrder struct {
	OrderItem
	ID        int64
	Source    string
	Synced    bool
	CreatedAt string
}

type OrderFilter struct {
	StartDate    string
	EndDate      string
	FactoryIDs   []int
	ProductCodes []string
	Supervisors  []string
	LineGroupIDs []string
	LineUserIDs  []string
	Synced       *bool
	MinCement    *float64
	MaxCement    *float64
	Search       string
}

// FilterOptions lists the distinct values the dashboard can filter on.
type FilterOptions struct {
	FactoryIDs   []int    `json:"factoryIds"`
	ProductCodes []string `json:"productCodes"`
	Supervisors  []string `json:"supervisors"`
}

type SummaryRow struct {
	GroupKey    *string         `json:"groupKey"`
	OrderCount  int             `json:"orderCount"`
	TotalCement decimal.Decimal `json:"totalCement"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
