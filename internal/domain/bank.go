package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Linked connections (banks)
// ============================================================

// Bank is a stored link between a user and one external financial institution.
// It is read-only from the aggregation pipeline's perspective.
type Bank struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"-"` // provider credential, never serialized
	ItemID           string    `json:"item_id,omitempty"`
	AccountID        string    `json:"account_id,omitempty"`
	FundingSourceURL string    `json:"funding_source_url,omitempty"`
	ShareableID      string    `json:"shareable_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// ============================================================
// Locally recorded transfers
// ============================================================

// Transfer is a peer-to-peer transfer recorded by this system between two banks.
type Transfer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Channel        string          `json:"channel"`
	Category       string          `json:"category"`
	SenderBankID   string          `json:"sender_bank_id"`
	ReceiverBankID string          `json:"receiver_bank_id"`
	Email          string          `json:"email,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ============================================================
// Users
// ============================================================

// User is the signed-in identity resolved from a session token.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
