package domain

// ============================================================
// Account-data provider payloads
// These are the flattened shapes returned by port.AccountDataProvider
// implementations, before the gateway converts them into Account and
// ExternalTransaction.
// ============================================================

// ProviderAccount is one account from a provider accounts call.
// Balances are nil when the provider omits them.
type ProviderAccount struct {
	AccountID        string
	AvailableBalance *float64
	CurrentBalance   *float64
	Name             string
	OfficialName     string
	Mask             string
	Type             string
	Subtype          string
}

// ProviderAccounts is the result of a provider accounts call for one credential.
type ProviderAccounts struct {
	Accounts      []ProviderAccount
	ItemID        string
	InstitutionID string
}

// ProviderTransaction is one added record of a transaction sync page.
type ProviderTransaction struct {
	TransactionID  string
	Name           string
	PaymentChannel string
	AccountID      string
	Amount         float64
	Pending        bool
	Categories     []string
	Date           string // YYYY-MM-DD
	LogoURL        string
}

// SyncPage is one page of the provider's cursor-based transaction sync.
type SyncPage struct {
	Added      []ProviderTransaction
	HasMore    bool
	NextCursor string
}
