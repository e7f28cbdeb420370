package dto

import "time"

// AccountNumberResponse returns a generated or looked-up account number.
type AccountNumberResponse struct {
	AccountNumber string    `json:"account_number"`
	CreatedAt     time.Time `json:"created_at"`
}
