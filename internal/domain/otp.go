package domain

import "time"

// OTP code bounds, inclusive.
const (
	OTPCodeMin = 100000
	OTPCodeMax = 999999
)

// OneTimeCode is a pending phone verification.
type OneTimeCode struct {
	ID         string
	AccountID  string
	Partition  Partition
	Phone      string
	Code       string
	ExpiresAt  time.Time
	Consumed   bool
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the code may still be consumed at now.
func (c *OneTimeCode) Usable(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

// OTPIssue is returned to callers after issuance. It intentionally omits the code.
type OTPIssue struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}
