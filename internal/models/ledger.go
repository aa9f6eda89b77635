package models

// LedgerEntry is one product line of the accounting warehouse ledger.
type LedgerEntry struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}
