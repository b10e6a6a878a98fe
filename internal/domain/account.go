package domain

import "github.com/shopspring/decimal"

// ============================================================
// Accounts (live snapshots from the account-data provider)
// ============================================================

// Account is a point-in-time read of one linked account. It is recomputed on
// every request and never persisted.
type Account struct {
	ID               string              `json:"id"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance"`
	CurrentBalance   decimal.NullDecimal `json:"currentBalance"`
	InstitutionID    string              `json:"institutionId"`
	Name             string              `json:"name"`
	OfficialName     string              `json:"officialName,omitempty"`
	Mask             string              `json:"mask"`
	Type             string              `json:"type"`
	Subtype          string              `json:"subtype"`
	BankID           string              `json:"appwriteItemId"`
	ShareableID      string              `json:"shareableId"`
	Institution      *Institution        `json:"institution,omitempty"`
}

// Institution holds the metadata of a financial institution.
type Institution struct {
	ID           string `json:"institution_id"`
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	Logo         string `json:"logo,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
}

// AccountsResult is the per-user aggregate returned by GET /v1/accounts.
type AccountsResult struct {
	Data                []Account       `json:"data"`
	TotalBanks          int             `json:"totalBanks"`
	TotalCurrentBalance decimal.Decimal `json:"totalCurrentBalance"`
}

// AccountDetail bundles one account with its merged transaction feed.
type AccountDetail struct {
	Data         Account       `json:"data"`
	Transactions []Transaction `json:"transactions"`
	// Degraded is set when institution metadata could not be resolved.
	Degraded bool `json:"degraded,omitempty"`
}
