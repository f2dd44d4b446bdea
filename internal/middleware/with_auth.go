package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// RequireIdentity rejects requests for which Identity found no caller.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "caller identity required")
		}
		return c.Next()
	}
}
