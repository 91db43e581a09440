package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/auralane/render-service/pkg/response"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers set by
// the edge gateway after it has authenticated the request. Token
// verification itself is the gateway's concern, not this service's.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", userID)
		return c.Next()
	}
}

// DevAuthMiddleware substitutes a fixed identity when no gateway fronts
// the service (local development and tests).
func DevAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			userID = "local-dev"
		}
		c.Locals("userId", userID)
		return c.Next()
	}
}

// GetUserID returns the authenticated user ID from the request context.
func GetUserID(c *fiber.Ctx) string {
	if v, ok := c.Locals("userId").(string); ok {
		return v
	}
	return ""
}
