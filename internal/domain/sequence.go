package domain

import "time"

// Sequence records a generated account number. Rows are immutable once
// written; uniqueness is enforced by the store.
type Sequence struct {
	ID            string
	AccountNumber string
	CreatedAt     time.Time
}
