package domain

import "time"

// OrphanIdentity describes an identity-provider account whose local
// persistence failed after registration succeeded. It is the unit of work
// for the compensation queue.
type OrphanIdentity struct {
	AuthID     string    `json:"auth_id"`
	Email      string    `json:"email"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}
