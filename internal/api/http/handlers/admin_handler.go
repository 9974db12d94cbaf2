package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/api/dto"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/service"
)

// AccountAdmin is the account administration surface.
type AccountAdmin interface {
	Create(ctx context.Context, in service.CreateAccountInput) (*domain.Identity, error)
	Get(ctx context.Context, partition domain.Partition, id string) (*domain.Identity, error)
	SetStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) (*domain.Identity, error)
	SetRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) (*domain.Identity, error)
}

// AdminHandler exposes admin-only account management.
type AdminHandler struct {
	accounts AccountAdmin
}

// NewAdminHandler constructs handler.
func NewAdminHandler(accounts AccountAdmin) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

// CreateAccount handles POST /api/admin/accounts.
func (h *AdminHandler) CreateAccount(c *fiber.Ctx) error {
	var req dto.CreateAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	identity, err := h.accounts.Create(c.UserContext(), service.CreateAccountInput{
		Partition: domain.Partition(req.Partition),
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Phone:     req.Phone,
		Roles:     dto.ToRoles(req.Roles),
		Status:    domain.AccountStatus(req.Status),
		Profile: domain.Profile{
			CompanyName: req.CompanyName,
			TaxNumber:   req.TaxNumber,
			Address:     req.Address,
		},
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, identity)
}

// GetAccount handles GET /api/admin/accounts/:partition/:id.
func (h *AdminHandler) GetAccount(c *fiber.Ctx) error {
	identity, err := h.accounts.Get(c.UserContext(), domain.Partition(c.Params("partition")), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, identity)
}

// UpdateStatus handles PATCH /api/admin/accounts/:partition/:id/status.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	identity, err := h.accounts.SetStatus(c.UserContext(), domain.Partition(c.Params("partition")), c.Params("id"), domain.AccountStatus(req.Status))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, identity)
}

// UpdateRoles handles PUT /api/admin/accounts/:partition/:id/roles.
func (h *AdminHandler) UpdateRoles(c *fiber.Ctx) error {
	var req dto.UpdateRolesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	identity, err := h.accounts.SetRoles(c.UserContext(), domain.Partition(c.Params("partition")), c.Params("id"), dto.ToRoles(req.Roles))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, identity)
}
