package services

import (
	"context"
	"errors"
	"sync"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/storage"

	"github.com/rs/zerolog"
)

// NewCollectionSize is how many products the new-collection listing returns.
const NewCollectionSize = 8

const createAttempts = 3

// ProductInput is the payload of an add-product request. Image is a URL from a
// previous upload; it is ignored when a file is attached.
type ProductInput struct {
	Name      string  `json:"name" form:"name" validate:"required,max=255"`
	Category  string  `json:"category" form:"category" validate:"required,max=100"`
	NewPrice  float64 `json:"new_price" form:"new_price" validate:"required,gt=0"`
	OldPrice  float64 `json:"old_price" form:"old_price" validate:"required,gt=0"`
	Image     string  `json:"image" form:"image"`
	Available *bool   `json:"available" form:"available"`
}

// ProductPatch lists the fields to change on an existing product. Nil fields
// are left untouched.
type ProductPatch struct {
	Name      *string  `json:"name" validate:"omitnil,min=1,max=255"`
	Category  *string  `json:"category" validate:"omitnil,min=1,max=100"`
	Image     *string  `json:"image" validate:"omitnil,min=1"`
	NewPrice  *float64 `json:"new_price" validate:"omitnil,gt=0"`
	OldPrice  *float64 `json:"old_price" validate:"omitnil,gt=0"`
	Available *bool    `json:"available"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	images storage.ImageStore
	// mu serializes id assignment within the process.
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, images storage.ImageStore, logger zerolog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		images: images,
		logger: logger.With().Str("service", "product").Logger(),
	}
}

// ListAll retrieves all products.
func (s *ProductService) ListAll(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, models.NewInternalError("failed to list products", err)
	}
	return products, nil
}

// ListByCategory retrieves the products of one category.
func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	products, err := s.repo.GetByCategory(ctx, category)
	if err != nil {
		return nil, models.NewInternalError("failed to list products", err)
	}
	return products, nil
}

// Get retrieves a single product by its catalog id.
func (s *ProductService) Get(ctx context.Context, id int) (*models.Product, error) {
	product, err := s.repo.GetByProductID(ctx, id)
	if err != nil {
		return nil, productError(err, "failed to get product")
	}
	return product, nil
}

// NewCollection returns the most recently added products.
func (s *ProductService) NewCollection(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetNewest(ctx, NewCollectionSize)
	if err != nil {
		return nil, models.NewInternalError("failed to list new collection", err)
	}
	return products, nil
}

// UploadImage stores an image and returns its public URL.
func (s *ProductService) UploadImage(ctx context.Context, img storage.Image) (string, error) {
	url, err := s.images.Save(ctx, img)
	if err != nil {
		if models.KindOf(err) == models.KindValidation {
			return "", err
		}
		return "", models.NewInternalError("failed to store image", err)
	}
	s.logger.Info().Str("url", url).Msg("image uploaded")
	return url, nil
}

// Create validates input, stores the attached image if any, and adds the
// product under the next catalog id.
func (s *ProductService) Create(ctx context.Context, input ProductInput, image *storage.Image) (*models.Product, error) {
	if err := validateStruct(input, models.ErrMissingFields); err != nil {
		return nil, err
	}

	imageURL := input.Image
	if image != nil {
		url, err := s.UploadImage(ctx, *image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}
	if imageURL == "" {
		return nil, models.ErrImageRequired
	}

	available := true
	if input.Available != nil {
		available = *input.Available
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		product := &models.Product{
			Name:      input.Name,
			Category:  input.Category,
			Image:     imageURL,
			NewPrice:  input.NewPrice,
			OldPrice:  input.OldPrice,
			Available: available,
		}
		err = s.repo.Create(ctx, product)
		if err == nil {
			s.logger.Info().Int("product_id", product.ProductID).Str("name", product.Name).Msg("product created")
			return product, nil
		}
		// Another instance took the same id first.
		if !errors.Is(err, repositories.ErrDuplicate) {
			break
		}
		s.logger.Warn().Int("attempt", attempt+1).Msg("product id collision, retrying")
	}
	return nil, models.NewInternalError("failed to create product", err)
}

// Update applies patch to the product with catalog id id.
func (s *ProductService) Update(ctx context.Context, id int, patch ProductPatch) (*models.Product, error) {
	if id < 1 {
		return nil, models.ErrInvalidProductID
	}
	if err := validateStruct(patch, models.ErrMissingFields); err != nil {
		return nil, err
	}

	product, err := s.repo.GetByProductID(ctx, id)
	if err != nil {
		return nil, productError(err, "failed to get product")
	}

	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Category != nil {
		product.Category = *patch.Category
	}
	if patch.Image != nil {
		product.Image = *patch.Image
	}
	if patch.NewPrice != nil {
		product.NewPrice = *patch.NewPrice
	}
	if patch.OldPrice != nil {
		product.OldPrice = *patch.OldPrice
	}
	if patch.Available != nil {
		product.Available = *patch.Available
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, productError(err, "failed to update product")
	}
	s.logger.Info().Int("product_id", id).Msg("product updated")
	return product, nil
}

// Delete removes the product with catalog id id.
func (s *ProductService) Delete(ctx context.Context, id int) (*models.Product, error) {
	if id < 1 {
		return nil, models.ErrProductIDRequired
	}
	product, err := s.repo.DeleteByProductID(ctx, id)
	if err != nil {
		return nil, productError(err, "failed to delete product")
	}
	s.logger.Info().Int("product_id", id).Msg("product removed")
	return product, nil
}

func productError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ErrProductNotFound
	}
	return models.NewInternalError(message, err)
}
