package repositories

import (
	"context"

	"storefront/internal/models"
)

// IDPolicy selects how the catalog assigns dense product ids.
type IDPolicy string

const (
	// IDPolicyMax assigns max(existing ids)+1. Deleting the highest product lets
	// its id be handed out again.
	IDPolicyMax IDPolicy = "max"
	// IDPolicySequence also honours a persisted high-water mark, so ids are
	// never reused.
	IDPolicySequence IDPolicy = "sequence"
)

const productSequence = "product"

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByCategory(ctx context.Context, category string) ([]models.Product, error)
	GetByProductID(ctx context.Context, productID int) (*models.Product, error)
	GetByProductIDs(ctx context.Context, productIDs []int) ([]models.Product, error)
	// GetNewest returns up to limit products, most recently added first.
	GetNewest(ctx context.Context, limit int) ([]models.Product, error)
	MaxProductID(ctx context.Context) (int, error)
	// Create assigns product.ProductID according to the repository's IDPolicy
	// and stores the product.
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	// DeleteByProductID removes the product and returns what was deleted.
	DeleteByProductID(ctx context.Context, productID int) (*models.Product, error)
}

func nextProductID(policy IDPolicy, maxID, highWater int) int {
	if policy == IDPolicySequence && highWater > maxID {
		return highWater + 1
	}
	return maxID + 1
}
