package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db     *gorm.DB
	policy IDPolicy
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB, policy IDPolicy) *GORMProductRepository {
	if policy == "" {
		policy = IDPolicyMax
	}
	return &GORMProductRepository{
		db:     db,
		policy: policy,
	}
}

// GetAll retrieves all products ordered by catalog id.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := r.db.WithContext(ctx).Order("product_id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByCategory retrieves the products of one category.
func (r *GORMProductRepository) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("product_id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get products in category %s: %w", category, err)
	}
	return products, nil
}

// GetByProductID retrieves a single product by its catalog id.
func (r *GORMProductRepository) GetByProductID(ctx context.Context, productID int) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "product_id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", productID, translate(err))
	}
	return &product, nil
}

// GetByProductIDs retrieves every product whose catalog id is listed. Missing
// ids are skipped.
func (r *GORMProductRepository) GetByProductIDs(ctx context.Context, productIDs []int) ([]models.Product, error) {
	products := []models.Product{}
	if len(productIDs) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get products by ids: %w", err)
	}
	return products, nil
}

// GetNewest retrieves the most recently added products.
func (r *GORMProductRepository) GetNewest(ctx context.Context, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("product_id DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get newest products: %w", err)
	}
	return products, nil
}

// MaxProductID returns the highest catalog id in use, or 0 for an empty catalog.
func (r *GORMProductRepository) MaxProductID(ctx context.Context) (int, error) {
	return maxProductID(r.db.WithContext(ctx))
}

func maxProductID(db *gorm.DB) (int, error) {
	var maxID int64
	row := db.Model(&models.Product{}).Select("COALESCE(MAX(product_id), 0)").Row()
	if err := row.Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read max product id: %w", err)
	}
	return int(maxID), nil
}

// Create assigns the next catalog id and inserts the product in one transaction.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		maxID, err := maxProductID(tx)
		if err != nil {
			return err
		}

		highWater := 0
		if r.policy == IDPolicySequence {
			var seq models.Sequence
			err := tx.First(&seq, "name = ?", productSequence).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			highWater = seq.Value
		}

		product.ProductID = nextProductID(r.policy, maxID, highWater)
		if product.ID == "" {
			product.ID = uuid.New().String()
		}
		if product.Date.IsZero() {
			product.Date = time.Now()
		}
		if err := tx.Create(product).Error; err != nil {
			return err
		}

		if r.policy != IDPolicySequence {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&models.Sequence{Name: productSequence, Value: product.ProductID}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err))
	}
	return nil
}

// Update overwrites the mutable fields of the product with the same catalog id.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ?", product.ProductID).
		Select("name", "image", "category", "new_price", "old_price", "available").
		Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d for update: %w", product.ProductID, ErrNotFound)
	}
	return nil
}

// DeleteByProductID deletes a product by its catalog id.
func (r *GORMProductRepository) DeleteByProductID(ctx context.Context, productID int) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, "product_id = ?", productID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "product_id = ?", productID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete product %d: %w", productID, translate(err))
	}
	return &product, nil
}
