package middleware

import (
	"strings"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "user_id"
	localEmail  = "email"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// A missing or malformed Authorization header yields 401; a token that fails
// verification yields 403.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return models.ErrMissingToken
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return models.ErrTokenFormat
		}

		identity, err := authService.VerifyToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return &models.DomainError{
				Kind:    models.KindForbidden,
				Message: models.ErrInvalidToken.Message,
				Err:     err,
			}
		}

		// Store the identity in Fiber context for subsequent handlers
		c.Locals(localUserID, identity.UserID)
		c.Locals(localEmail, identity.Email)

		return c.Next()
	}
}

// AdminRequired rejects callers whose account is not an administrator. It must
// run after AuthRequired.
func AdminRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authService.RequireAdmin(c.UserContext(), UserID(c)); err != nil {
			return err
		}
		return c.Next()
	}
}

// UserID returns the id of the authenticated caller, or "" outside
// AuthRequired.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
