package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

// AccountReader loads an account projection.
type AccountReader interface {
	Get(ctx context.Context, partition domain.Partition, id string) (*domain.Identity, error)
}

// CarrierHandler serves the carrier portal identity.
type CarrierHandler struct {
	accounts AccountReader
}

// NewCarrierHandler constructs handler.
func NewCarrierHandler(accounts AccountReader) *CarrierHandler {
	return &CarrierHandler{accounts: accounts}
}

// Profile handles GET /api/carrier/profile.
func (h *CarrierHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	identity, err := h.accounts.Get(c.UserContext(), principal.Partition, principal.AccountID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, identity)
}
