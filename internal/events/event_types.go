package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasi-app/auth-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded      EventType = "auth.login.succeeded"
	EventLoginFailed         EventType = "auth.login.failed"
	EventOTPIssued           EventType = "auth.otp.issued"
	EventOTPVerified         EventType = "auth.otp.verified"
	EventOTPRejected         EventType = "auth.otp.rejected"
	EventAccountCreated      EventType = "account.created"
	EventAccountStatusChange EventType = "account.status_changed"
	EventAccountRolesChange  EventType = "account.roles_changed"
)

// AllEventTypes lists every type the service emits.
var AllEventTypes = []EventType{
	EventLoginSucceeded,
	EventLoginFailed,
	EventOTPIssued,
	EventOTPVerified,
	EventOTPRejected,
	EventAccountCreated,
	EventAccountStatusChange,
	EventAccountRolesChange,
}

// Event represents a domain event emitted by services. Subject is the account id when known,
// otherwise the phone or email the attempt was made for.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginPayload payload.
type LoginPayload struct {
	Method    domain.LoginMethod `json:"method"`
	Partition domain.Partition   `json:"partition,omitempty"`
	AccountID string             `json:"account_id,omitempty"`
	Outcome   string             `json:"outcome"`
	ClientIP  string             `json:"client_ip,omitempty"`
}

// OTPIssuedPayload payload. The code itself is never published.
type OTPIssuedPayload struct {
	AccountID string           `json:"account_id"`
	Partition domain.Partition `json:"partition"`
	Phone     string           `json:"phone"`
	ExpiresAt time.Time        `json:"expires_at"`
	Delivered bool             `json:"delivered"`
}

// OTPVerifiedPayload payload.
type OTPVerifiedPayload struct {
	AccountID string           `json:"account_id"`
	Partition domain.Partition `json:"partition"`
	Phone     string           `json:"phone"`
}

// OTPRejectedPayload payload.
type OTPRejectedPayload struct {
	Phone    string `json:"phone"`
	Reason   string `json:"reason"`
	Failures int64  `json:"failures"`
}

// AccountCreatedPayload payload.
type AccountCreatedPayload struct {
	Partition domain.Partition     `json:"partition"`
	Email     string               `json:"email"`
	Roles     []domain.Role        `json:"roles"`
	Status    domain.AccountStatus `json:"status"`
}

// AccountStatusChangedPayload payload.
type AccountStatusChangedPayload struct {
	Partition domain.Partition     `json:"partition"`
	OldStatus domain.AccountStatus `json:"old_status"`
	NewStatus domain.AccountStatus `json:"new_status"`
}

// AccountRolesChangedPayload payload.
type AccountRolesChangedPayload struct {
	Partition domain.Partition `json:"partition"`
	OldRoles  []domain.Role    `json:"old_roles"`
	NewRoles  []domain.Role    `json:"new_roles"`
}
