package domain

import "time"

// Identity is the account projection returned after successful validation. It never carries
// the password hash.
type Identity struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	Phone       string        `json:"phone,omitempty"`
	Roles       []Role        `json:"roles"`
	Status      AccountStatus `json:"status"`
	Partition   Partition     `json:"partition"`
	Profile     *Profile      `json:"profile,omitempty"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
}

// IdentityOf projects an account, dropping the hash.
func IdentityOf(a *Account) *Identity {
	id := &Identity{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		Phone:       a.Phone,
		Roles:       append([]Role(nil), a.Roles...),
		Status:      a.Status,
		Partition:   a.Partition,
		LastLoginAt: a.LastLoginAt,
	}
	if a.Profile != (Profile{}) {
		profile := a.Profile
		id.Profile = &profile
	}
	return id
}

// Session is what a successful login hands back to the caller.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  *Identity
}

// LoginMethod distinguishes the two authentication paths.
type LoginMethod string

const (
	LoginMethodPassword LoginMethod = "password"
	LoginMethodOTP      LoginMethod = "otp"
)

// LoginAttempt is an audit record of one authentication attempt.
type LoginAttempt struct {
	ID         string
	Method     LoginMethod
	Partition  Partition
	Identifier string
	AccountID  *string
	Outcome    string
	ClientIP   string
	UserAgent  string
	OccurredAt time.Time
}

// ClientMeta describes the caller for auditing.
type ClientMeta struct {
	IP        string
	UserAgent string
}
