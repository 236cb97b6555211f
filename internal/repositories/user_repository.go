package repositories

import (
	"context"

	"storefront/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

// CartRepository persists the cart embedded in a user.
type CartRepository interface {
	// LoadCart returns the user's cart with its current version.
	// It returns ErrNotFound when the user does not exist.
	LoadCart(ctx context.Context, userID string) (*models.Cart, error)

	// SaveCart replaces the user's cart lines if cart.Version still matches the
	// stored version, then advances cart.Version. It returns ErrStale when another
	// writer saved first.
	SaveCart(ctx context.Context, cart *models.Cart) error
}
