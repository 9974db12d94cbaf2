package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/domain"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func clientMeta(c *fiber.Ctx) domain.ClientMeta {
	return domain.ClientMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}
