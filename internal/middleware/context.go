package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type contextKey string

// UserIDKey carries the authenticated user ID in a request context.
const UserIDKey contextKey = "userID"

// RequestIDKey carries the request ID in a request context.
const RequestIDKey contextKey = "requestID"

// ContextMiddleware propagates the Fiber request ID into the user context so
// downstream services and the GORM logger can attach it to log lines.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid := c.Locals("requestid"); rid != nil {
			ctx := context.WithValue(c.UserContext(), RequestIDKey, rid)
			c.SetUserContext(ctx)
		}
		return c.Next()
	}
}
