package dto

import (
	"strings"

	"github.com/tasi-app/auth-service/internal/domain"
)

// CreateAccountRequest payload for admin account creation.
type CreateAccountRequest struct {
	Partition   string   `json:"partition" validate:"required,oneof=user customer company"`
	Email       string   `json:"email" validate:"required,email,max=254"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	Name        string   `json:"name" validate:"required,max=120"`
	Phone       string   `json:"phone" validate:"omitempty,min=8,max=32"`
	Roles       []string `json:"roles" validate:"omitempty,dive,oneof=admin driver carrier customer"`
	Status      string   `json:"status" validate:"omitempty,oneof=ACTIVE PENDING SUSPENDED REJECTED"`
	CompanyName string   `json:"company_name" validate:"max=200"`
	TaxNumber   string   `json:"tax_number" validate:"max=32"`
	Address     string   `json:"address" validate:"max=500"`
}

// Normalize trims identity fields before validation.
func (r *CreateAccountRequest) Normalize() {
	r.Partition = strings.TrimSpace(r.Partition)
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
}

// UpdateStatusRequest payload for status transitions.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PENDING SUSPENDED REJECTED"`
}

// UpdateRolesRequest payload for role assignment.
type UpdateRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=admin driver carrier customer"`
}

// ToRoles converts wire role tags.
func ToRoles(tags []string) []domain.Role {
	if len(tags) == 0 {
		return nil
	}
	roles := make([]domain.Role, len(tags))
	for i, tag := range tags {
		roles[i] = domain.Role(tag)
	}
	return roles
}
