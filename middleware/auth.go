package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity set by the Gateway. The
// identity provider is external: the engine only ever sees the opaque
// X-User-ID, passed explicitly to every service call — never read from
// ambient state.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
