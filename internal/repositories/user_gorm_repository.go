package repositories

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository and CartRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Cart == nil {
		user.Cart = []models.CartLine{}
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GORMUserRepository) first(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Cart", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&user, query, arg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user where %s: %w", query, translate(err))
	}
	return &user, nil
}

// UpdateRole changes the role of an existing user.
func (r *GORMUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("failed to update role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// LoadCart reads the cart lines of a user in insertion order.
func (r *GORMUserRepository) LoadCart(ctx context.Context, userID string) (*models.Cart, error) {
	db := r.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "cart_version").First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart owner %s: %w", userID, translate(err))
	}

	lines := []models.CartLine{}
	if err := db.Where("user_id = ?", userID).Order("position ASC").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart lines for %s: %w", userID, err)
	}

	return &models.Cart{UserID: userID, Version: user.CartVersion, Lines: lines}, nil
}

// SaveCart bumps the user's cart version only if it still equals cart.Version,
// then rewrites the lines in the same transaction.
func (r *GORMUserRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	lines := make([]models.CartLine, len(cart.Lines))
	for i, line := range cart.Lines {
		lines[i] = models.CartLine{
			UserID:    cart.UserID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Position:  i,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND cart_version = ?", cart.UserID, cart.Version).
			Updates(map[string]interface{}{
				"cart_version": gorm.Expr("cart_version + 1"),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", cart.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStale
		}

		if err := tx.Where("user_id = ?", cart.UserID).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save cart for user %s: %w", cart.UserID, translate(err))
	}

	cart.Version++
	cart.Lines = lines
	return nil
}
