package events

import (
	"time"

	"github.com/spec-kit/user-provisioning/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated            EventType = "user_created"
	EventUserStatusChanged      EventType = "user_status_changed"
	EventUserUpdated            EventType = "user_updated"
	EventAccountNumberGenerated EventType = "account_number_generated"
	EventProvisioningOrphaned   EventType = "provisioning_orphaned"
)

// Event represents a domain event emitted by services. UserID is empty for
// events that never reached local persistence (orphaned registrations).
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	AuthID string            `json:"auth_id"`
	Email  string            `json:"email"`
	Status domain.UserStatus `json:"status"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// UserUpdatedPayload payload.
type UserUpdatedPayload struct {
	Email     string `json:"email"`
	ContactNo string `json:"contact_no"`
}

// AccountNumberGeneratedPayload payload.
type AccountNumberGeneratedPayload struct {
	AccountNumber string `json:"account_number"`
	Attempts      int    `json:"attempts"`
}

// ProvisioningOrphanedPayload marks an identity registered externally whose
// local persistence failed.
type ProvisioningOrphanedPayload struct {
	Orphan domain.OrphanIdentity `json:"orphan"`
}
