package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/signup", h.HandleSignup)
	router.Post("/login", h.HandleLogin)
}

// HandleSignup handles new user registration.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var input services.SignupInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	token, user, err := h.authService.Signup(c.UserContext(), input)
	if err != nil {
		return err
	}

	return success(c, fiber.StatusCreated, fiber.Map{
		"message": "User registered successfully",
		"token":   token,
		"userId":  user.ID,
	})
}

// HandleLogin handles user login and returns a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	token, userID, err := h.authService.Login(c.UserContext(), input)
	if err != nil {
		return err
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Login successful",
		"token":   token,
		"userId":  userID,
	})
}
