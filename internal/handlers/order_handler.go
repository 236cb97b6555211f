package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(api fiber.Router, guards Guards) {
	api.Post("/order", guards.User, h.HandlePlaceOrder)
	api.Get("/my-orders", guards.User, h.HandleMyOrders)
	api.Get("/orders/:id", guards.User, h.HandleGetOrder)

	admin := api.Group("/admin/orders", guards.User, guards.Admin)
	admin.Get("/", h.HandleListAllOrders)
	admin.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandlePlaceOrder records an order for the caller.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var input services.PlaceOrderInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	order, err := h.service.PlaceOrder(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{
		"message": "Order placed successfully",
		"order":   order,
	})
}

// HandleMyOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrdersForUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"orders": nonNil(orders)})
}

// HandleGetOrder retrieves one of the caller's orders by its ID.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"order": order})
}

// HandleListAllOrders retrieves every order.
func (h *OrderHandler) HandleListAllOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListAllOrders(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"orders": nonNil(orders)})
}

// HandleUpdateOrderStatus moves an order along its status progression.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Order status updated",
		"order":   order,
	})
}
