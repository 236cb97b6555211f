package services

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/rs/zerolog"
)

const defaultCartAttempts = 5

// CartService handles the cart embedded in each user.
//
// Writes to one user's cart are serialized by a per-user lock inside the
// process. Across processes the repository's version check rejects stale
// writes, which are retried against fresh state.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	locks    *keyedMutex
	attempts int
	logger   zerolog.Logger
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		locks:    newKeyedMutex(),
		attempts: defaultCartAttempts,
		logger:   logger.With().Str("service", "cart").Logger(),
	}
}

// AddToCart adds quantity units of a product, merging into an existing line.
func (s *CartService) AddToCart(ctx context.Context, userID string, productID, quantity int) (*models.Cart, error) {
	if productID < 1 {
		return nil, models.ErrInvalidProductID
	}
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	if _, err := s.products.GetByProductID(ctx, productID); err != nil {
		return nil, productError(err, "failed to get product")
	}

	cart, err := s.mutate(ctx, userID, func(c *models.Cart) error {
		return c.Add(productID, quantity)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user_id", userID).Int("product_id", productID).Int("quantity", quantity).Msg("added to cart")
	return cart, nil
}

// RemoveFromCart takes quantity units of a product out of the cart, dropping
// the line once nothing is left.
func (s *CartService) RemoveFromCart(ctx context.Context, userID string, productID, quantity int) (*models.Cart, error) {
	if productID < 1 {
		return nil, models.ErrInvalidProductID
	}
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, func(c *models.Cart) error {
		if !c.Remove(productID, quantity) {
			return models.ErrCartLineNotFound
		}
		return nil
	})
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func(c *models.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// GetCart returns the cart lines with their products resolved from the live
// catalog. Lines whose product has been removed carry a nil product.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	cart, err := s.carts.LoadCart(ctx, userID)
	if err != nil {
		return nil, cartError(err)
	}

	ids := make([]int, len(cart.Lines))
	for i, line := range cart.Lines {
		ids[i] = line.ProductID
	}
	products, err := s.products.GetByProductIDs(ctx, ids)
	if err != nil {
		return nil, models.NewInternalError("failed to load cart products", err)
	}
	byID := make(map[int]models.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	items := make([]models.CartItem, len(cart.Lines))
	for i, line := range cart.Lines {
		item := models.CartItem{ProductID: line.ProductID, Quantity: line.Quantity}
		if p, ok := byID[line.ProductID]; ok {
			item.Product = &p
		}
		items[i] = item
	}
	return items, nil
}

// mutate applies fn to a copy of the user's cart and saves it, retrying when
// another writer saved in between. fn runs again on the fresh state.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*models.Cart) error) (*models.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	for attempt := 0; attempt < s.attempts; attempt++ {
		loaded, err := s.carts.LoadCart(ctx, userID)
		if err != nil {
			return nil, cartError(err)
		}

		working := loaded.Clone()
		if err := fn(working); err != nil {
			return nil, err
		}

		err = s.carts.SaveCart(ctx, working)
		if err == nil {
			return working, nil
		}
		if !errors.Is(err, repositories.ErrStale) {
			return nil, cartError(err)
		}
		s.logger.Debug().Str("user_id", userID).Int("attempt", attempt+1).Msg("stale cart, retrying")
	}
	return nil, models.ErrCartBusy
}

func cartError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ErrUserNotFound
	}
	return models.NewInternalError("failed to access cart", err)
}
