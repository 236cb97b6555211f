package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products  map[int]models.Product
	inserted  map[int]int64 // insertion sequence, breaks creation-time ties
	seq       int64
	highWater int
	policy    IDPolicy
	mu        sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository(policy IDPolicy) *MockProductRepository {
	if policy == "" {
		policy = IDPolicyMax
	}
	return &MockProductRepository{
		products: make(map[int]models.Product),
		inserted: make(map[int]int64),
		policy:   policy,
	}
}

// GetAll returns all products ordered by catalog id.
func (r *MockProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	return r.filter(func(models.Product) bool { return true }), nil
}

// GetByCategory returns the products of one category.
func (r *MockProductRepository) GetByCategory(_ context.Context, category string) ([]models.Product, error) {
	return r.filter(func(p models.Product) bool { return p.Category == category }), nil
}

func (r *MockProductRepository) filter(keep func(models.Product) bool) []models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			productList = append(productList, p)
		}
	}
	sort.Slice(productList, func(i, j int) bool {
		return productList[i].ProductID < productList[j].ProductID
	})
	return productList
}

// GetByProductID returns a product by its catalog id.
func (r *MockProductRepository) GetByProductID(_ context.Context, productID int) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return &product, nil
}

// GetByProductIDs returns the listed products that exist.
func (r *MockProductRepository) GetByProductIDs(_ context.Context, productIDs []int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.products[id]; ok {
			productList = append(productList, p)
		}
	}
	return productList, nil
}

// GetNewest returns up to limit products, most recently added first.
func (r *MockProductRepository) GetNewest(_ context.Context, limit int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool {
		a, b := productList[i], productList[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return r.inserted[a.ProductID] > r.inserted[b.ProductID]
	})
	if limit >= 0 && len(productList) > limit {
		productList = productList[:limit]
	}
	return productList, nil
}

// MaxProductID returns the highest catalog id in use.
func (r *MockProductRepository) MaxProductID(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxLocked(), nil
}

func (r *MockProductRepository) maxLocked() int {
	maxID := 0
	for id := range r.products {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// Create assigns the next catalog id and adds the product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ProductID = nextProductID(r.policy, r.maxLocked(), r.highWater)
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.Date.IsZero() {
		product.Date = time.Now()
	}
	if product.ProductID > r.highWater {
		r.highWater = product.ProductID
	}
	r.seq++
	r.inserted[product.ProductID] = r.seq
	r.products[product.ProductID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ProductID]
	if !ok {
		return fmt.Errorf("product %d for update: %w", product.ProductID, ErrNotFound)
	}
	existing.Name = product.Name
	existing.Image = product.Image
	existing.Category = product.Category
	existing.NewPrice = product.NewPrice
	existing.OldPrice = product.OldPrice
	existing.Available = product.Available
	r.products[product.ProductID] = existing
	return nil
}

// DeleteByProductID removes a product by its catalog id.
func (r *MockProductRepository) DeleteByProductID(_ context.Context, productID int) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d for deletion: %w", productID, ErrNotFound)
	}
	delete(r.products, productID)
	delete(r.inserted, productID)
	return &product, nil
}
