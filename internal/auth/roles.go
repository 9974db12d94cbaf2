package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/domain"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

// RequireRole ensures the principal placed by the gate holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		if !principal.HasRole(allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures some principal is present.
func RequireAuthenticated() fiber.Handler {
	return RequireRole()
}
