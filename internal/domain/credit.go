package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// One credit buys one AI generation attempt. The balance lives on the user
// profile; every movement is mirrored into a ledger for the audit trail.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a credit operation.
type TransactionType string

const (
	TxSpend  TransactionType = "SPEND"  // consumed by a gate pass
	TxRefund TransactionType = "REFUND" // returned after a failed generation
	TxGrant  TransactionType = "GRANT"  // admin or signup top-up
	TxBonus  TransactionType = "BONUS"  // promotional credit
)

// LedgerEntry is a single row in the credit ledger.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        TransactionType `json:"type"`
	EntryType   EntryType       `json:"entry_type"`
	UserID      string          `json:"user_id"`
	Amount      int64           `json:"amount"`
	LogID       string          `json:"log_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Balance     int64           `json:"balance"`
}

// GateResult is the outcome of a credit gate decision.
// When Allowed is false no log was created and no balance was touched.
type GateResult struct {
	Allowed   bool   `json:"allowed"`
	LogID     string `json:"log_id,omitempty"`
	Remaining int64  `json:"remaining"`
}
