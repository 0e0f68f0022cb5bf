package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeUse    TransactionType = "USE"
	TransactionTypeCancel TransactionType = "CANCEL"
)

type TransactionResult string

const (
	TransactionResultSuccess TransactionResult = "SUCCESS"
	TransactionResultFailure TransactionResult = "FAILURE"
)

// Transaction is the immutable audit record of a balance operation attempt.
// Records are written exactly once and never updated; failed attempts are
// logged as new FAILURE records, not retried in place.
//
// TransactionID is the externally visible identifier. The database primary key
// stays internal so transaction volume is not leaked through the API.
type Transaction struct {
	ID              int64             `json:"-"`
	TransactionID   string            `json:"transaction_id"`
	Type            TransactionType   `json:"transaction_type"`
	Result          TransactionResult `json:"transaction_result"`
	AccountID       int64             `json:"-"`
	Amount          int64             `json:"amount"`
	BalanceSnapshot int64             `json:"balance_snapshot"`
	TransactedAt    time.Time         `json:"transacted_at"`
}

// NewTransactionID returns a fresh 32-character identifier. Generated per
// attempt; identifiers are never reused, even for failure records.
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
