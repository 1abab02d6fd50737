package middleware

import (
	"context"
	"strings"

	"realblog/internal/auth"
	"realblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// AuthRequired rejects requests that do not carry a valid bearer token.
func AuthRequired(authn auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		userID, err := authn.Authenticate(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		setUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets anonymous requests through.
func OptionalAuth(authn auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if userID, err := authn.Authenticate(token); err == nil {
				setUser(c, userID)
			}
		}
		return c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or 0 for anonymous requests.
func CurrentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}
