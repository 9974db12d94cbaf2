package domain

import (
	"strings"
	"time"
)

// Partition identifies which logical collection an account lives in.
type Partition string

const (
	PartitionUser     Partition = "user"
	PartitionCustomer Partition = "customer"
	PartitionCompany  Partition = "company"
)

// Partitions lists every partition in OTP phone lookup order.
var Partitions = []Partition{PartitionCustomer, PartitionCompany, PartitionUser}

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	switch p {
	case PartitionUser, PartitionCustomer, PartitionCompany:
		return true
	}
	return false
}

// AccountStatus represents lifecycle states for an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusPending   AccountStatus = "PENDING"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusRejected  AccountStatus = "REJECTED"
)

// Valid reports whether s is one of the enumerated statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusPending, AccountStatusSuspended, AccountStatusRejected:
		return true
	}
	return false
}

// Role is a tag granting access to parts of the platform.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleCarrier  Role = "carrier"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role tag.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleCarrier, RoleCustomer:
		return true
	}
	return false
}

// DefaultRoles returns the roles a freshly created account in p receives.
func DefaultRoles(p Partition) []Role {
	switch p {
	case PartitionUser:
		return []Role{RoleAdmin}
	case PartitionCompany:
		return []Role{RoleCarrier}
	default:
		return []Role{RoleCustomer}
	}
}

// Account is a login-capable identity.
type Account struct {
	ID           string
	Partition    Partition
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Roles        []Role
	Status       AccountStatus
	Profile      Profile
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile carries partition-specific fields.
type Profile struct {
	CompanyName string `json:"company_name,omitempty"`
	TaxNumber   string `json:"tax_number,omitempty"`
	Address     string `json:"address,omitempty"`
}

// NormalizeEmail trims and lowercases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// RoleStrings converts roles to their string tags.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
