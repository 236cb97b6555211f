package repositories

import (
	"context"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus moves an order from one status to another. It returns ErrStale
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
}

// newestFirst orders by creation time, then by id. Order ids are UUIDv7, which
// sort in creation order within a process, so ties keep insertion order.
const newestFirst = "created_at DESC, id DESC"

// newOrderID returns a time-ordered order id.
func newOrderID() string {
	return uuid.Must(uuid.NewV7()).String()
}
