package dto

import (
	"strings"
	"time"

	"github.com/tasi-app/auth-service/internal/domain"
)

// LoginRequest payload for password login.
type LoginRequest struct {
	Partition string `json:"partition" validate:"required,oneof=user customer company"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,max=128"`
}

// Normalize trims surrounding whitespace. Case folding of the email happens in the domain.
func (r *LoginRequest) Normalize() {
	r.Partition = strings.TrimSpace(r.Partition)
	r.Email = strings.TrimSpace(r.Email)
}

// OTPRequest payload for requesting a code.
type OTPRequest struct {
	Phone string `json:"phone" validate:"required,min=8,max=32"`
}

func (r *OTPRequest) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
}

// OTPVerifyRequest payload for verifying a code.
type OTPVerifyRequest struct {
	Phone string `json:"phone" validate:"required,min=8,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (r *OTPVerifyRequest) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
	r.Code = strings.TrimSpace(r.Code)
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Account   *domain.Identity `json:"account"`
}

// OTPIssueResponse confirms issuance without revealing the code.
type OTPIssueResponse struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PrincipalResponse describes the caller behind a session token.
type PrincipalResponse struct {
	AccountID string           `json:"account_id"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
	Roles     []domain.Role    `json:"roles"`
	Partition domain.Partition `json:"partition"`
	ExpiresAt time.Time        `json:"expires_at"`
}
