package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used by the account-data provider.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component, stored as midnight UTC.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ============================================================
// Provider transactions
// ============================================================

// ExternalTransaction is a transaction synced from the account-data provider.
// Amount keeps the provider's sign convention.
type ExternalTransaction struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PaymentChannel string          `json:"paymentChannel"`
	AccountID      string          `json:"accountId"`
	Amount         decimal.Decimal `json:"amount"`
	Pending        bool            `json:"pending"`
	Category       string          `json:"category"`
	Date           Date            `json:"date"`
	Image          string          `json:"image,omitempty"`
}

// ============================================================
// Merged feed
// ============================================================

// Transaction sources.
const (
	SourceProvider = "provider"
	SourceTransfer = "transfer"
)

// Transfer directions, relative to the bank under inspection.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Transaction is one entry of an account's merged, date-ordered feed. It is
// built either from an ExternalTransaction or from a Transfer.
type Transaction struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	PaymentChannel string          `json:"paymentChannel"`
	Category       string          `json:"category"`
	Source         string          `json:"source"`
	Direction      string          `json:"type,omitempty"` // transfers only
	AccountID      string          `json:"accountId,omitempty"`
	Pending        bool            `json:"pending,omitempty"`
	Image          string          `json:"image,omitempty"`
}

// TransactionPage is a window over an already merged feed.
type TransactionPage struct {
	Data       []Transaction `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}
