package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

type addToCartRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// removeFromCartRequest defaults Quantity to one unit when it is omitted.
type removeFromCartRequest struct {
	ProductID int  `json:"productId"`
	Quantity  *int `json:"quantity"`
}

// RegisterRoutes registers the cart routes; all of them require a token.
func (h *CartHandler) RegisterRoutes(api fiber.Router, guards Guards) {
	cart := api.Group("/cart", guards.User)
	cart.Get("/", h.HandleGetCart)
	cart.Delete("/", h.HandleClearCart)
	cart.Post("/add", h.HandleAddToCart)
	cart.Post("/remove", h.HandleRemoveFromCart)
}

// HandleGetCart returns the cart with products resolved from the catalog.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	items, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"cart": nonNil(items)})
}

// HandleAddToCart adds a quantity of a product, merging with an existing line.
func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req addToCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	cart, err := h.service.AddToCart(c.UserContext(), middleware.UserID(c), req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Product added to cart",
		"cart":    nonNil(cart.Lines),
	})
}

// HandleRemoveFromCart decrements a line, dropping it when nothing is left.
func (h *CartHandler) HandleRemoveFromCart(c *fiber.Ctx) error {
	var req removeFromCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ProductID < 1 {
		return models.ErrProductIDRequired
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.service.RemoveFromCart(c.UserContext(), middleware.UserID(c), req.ProductID, quantity)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Product removed from cart",
		"cart":    nonNil(cart.Lines),
	})
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.ClearCart(c.UserContext(), middleware.UserID(c)); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Cart cleared",
		"cart":    []models.CartLine{},
	})
}
