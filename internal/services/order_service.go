package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PricingPolicy decides where order line names and prices come from.
type PricingPolicy string

const (
	// PricingClient stores the lines exactly as the caller submitted them.
	PricingClient PricingPolicy = "client"
	// PricingCatalog re-reads every line from the catalog and recomputes the total.
	PricingCatalog PricingPolicy = "catalog"
)

// Routing keys of the events published for orders.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// EventPublisher publishes order events. *rabbitmq.Client satisfies it.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderOptions configures an OrderService.
type OrderOptions struct {
	Pricing          PricingPolicy
	ClearCartOnPlace bool
	Exchange         string
}

// OrderLineInput is one product line of a place-order request.
type OrderLineInput struct {
	ProductID int     `json:"productId" validate:"required,gte=1"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
}

// PlaceOrderInput is the payload of a place-order request.
type PlaceOrderInput struct {
	Name        string           `json:"name" validate:"required"`
	Number      string           `json:"number" validate:"required,max=50"`
	Products    []OrderLineInput `json:"products" validate:"required,min=1,dive"`
	Address     string           `json:"address" validate:"required"`
	TotalAmount float64          `json:"totalAmount" validate:"required,gt=0"`
	PaymentMode string           `json:"paymentMode" validate:"required,oneof=COD UPI Card Mock"`
}

// OrderEvent is the body of every published order event.
type OrderEvent struct {
	Type        string             `json:"type"`
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	Status      models.OrderStatus `json:"status"`
	Previous    models.OrderStatus `json:"previousStatus,omitempty"`
	TotalAmount float64            `json:"totalAmount"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	carts       *CartService
	publisher   EventPublisher
	opts        OrderOptions
	logger      zerolog.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are published.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, carts *CartService, publisher EventPublisher, opts OrderOptions, logger zerolog.Logger) *OrderService {
	if opts.Pricing == "" {
		opts.Pricing = PricingClient
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		carts:       carts,
		publisher:   publisher,
		opts:        opts,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// PlaceOrder records a new pending order for userID.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, input PlaceOrderInput) (*models.Order, error) {
	if err := validateStruct(input, models.ErrOrderFieldsMissing); err != nil {
		return nil, err
	}
	// Client-priced lines keep the submitted name as the only record of what
	// was bought.
	if s.opts.Pricing != PricingCatalog {
		if err := requireLineNames(input.Products); err != nil {
			return nil, err
		}
	}

	items := make([]models.ProductItem, len(input.Products))
	for i, line := range input.Products {
		items[i] = models.ProductItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		}
	}
	total := input.TotalAmount

	if s.opts.Pricing == PricingCatalog {
		var err error
		if total, err = s.reprice(ctx, items); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID:      userID,
		Name:        input.Name,
		Number:      input.Number,
		Products:    items,
		Address:     input.Address,
		TotalAmount: total,
		PaymentMode: models.PaymentMode(input.PaymentMode),
		Status:      models.OrderStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, models.NewInternalError("failed to create order", err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Float64("total", order.TotalAmount).
		Msg("order placed")

	if s.opts.ClearCartOnPlace && s.carts != nil {
		if err := s.carts.ClearCart(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to clear cart after order")
		}
	}

	s.publish(EventOrderPlaced, OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  order.CreatedAt,
	})
	return order, nil
}

func requireLineNames(lines []OrderLineInput) error {
	fields := map[string]string{}
	for i, line := range lines {
		if strings.TrimSpace(line.Name) == "" {
			fields[fmt.Sprintf("products[%d].name", i)] = "required"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &models.DomainError{
		Kind:    models.KindValidation,
		Message: models.ErrOrderFieldsMissing.Message,
		Fields:  fields,
		Err:     models.ErrOrderFieldsMissing,
	}
}

// reprice overwrites each line's name and price from the catalog and returns
// the recomputed total.
func (s *OrderService) reprice(ctx context.Context, items []models.ProductItem) (float64, error) {
	total := decimal.Zero
	for i := range items {
		product, err := s.productRepo.GetByProductID(ctx, items[i].ProductID)
		if err != nil {
			return 0, productError(err, "failed to price order line")
		}
		items[i].Name = product.Name
		items[i].Price = product.NewPrice

		line := decimal.NewFromFloat(product.NewPrice).Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64(), nil
}

// ListOrdersForUser returns the user's orders, newest first.
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError("failed to fetch orders", err)
	}
	return orders, nil
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, orderError(err, "failed to fetch order")
	}
	if order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

// ListAllOrders returns every order, newest first.
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		return nil, models.NewInternalError("failed to fetch orders", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to status if the transition is allowed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, models.ErrUnknownOrderStatus
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, orderError(err, "failed to fetch order")
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, models.ErrIllegalTransition
	}

	previous := order.Status
	if err := s.orderRepo.UpdateStatus(ctx, orderID, previous, status); err != nil {
		// Someone else moved the order after it was read.
		if errors.Is(err, repositories.ErrStale) {
			return nil, models.ErrIllegalTransition
		}
		return nil, orderError(err, "failed to update order status")
	}
	order.Status = status
	order.UpdatedAt = time.Now()

	s.logger.Info().
		Str("order_id", orderID).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("order status updated")

	s.publish(EventOrderStatusChanged, OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      status,
		Previous:    previous,
		TotalAmount: order.TotalAmount,
		OccurredAt:  order.UpdatedAt,
	})
	return order, nil
}

// publish sends an event after the change has been stored. Failures are
// logged; the order itself already succeeded.
func (s *OrderService) publish(routingKey string, event OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.Type = routingKey
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", event.OrderID).Msg("failed to marshal order event")
		return
	}
	if err := s.publisher.Publish(s.opts.Exchange, routingKey, body); err != nil {
		s.logger.Warn().Err(err).Str("order_id", event.OrderID).Str("event", routingKey).Msg("failed to publish order event")
		return
	}
	s.logger.Debug().Str("order_id", event.OrderID).Str("event", routingKey).Msg("order event published")
}

func orderError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ErrOrderNotFound
	}
	return models.NewInternalError(message, err)
}
