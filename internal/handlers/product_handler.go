package handlers

import (
	"fmt"
	"mime/multipart"

	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

type updateProductRequest struct {
	ID int `json:"id"`
	services.ProductPatch
}

type removeProductRequest struct {
	ID int `json:"id" form:"id"`
}

// RegisterRoutes registers the catalog routes under the API group.
func (h *ProductHandler) RegisterRoutes(api fiber.Router, guards Guards) {
	api.Get("/allproducts", h.HandleListAll)
	api.Get("/products/:category", h.HandleListByCategory)
	api.Get("/product/:id", h.HandleGetProduct)
	api.Get("/newcollections", h.HandleNewCollection)

	api.Post("/upload", guards.User, guards.Admin, h.HandleUpload)
	api.Post("/addproduct", guards.User, guards.Admin, h.HandleAddProduct)
	api.Post("/updateproduct", guards.User, guards.Admin, h.HandleUpdateProduct)
	api.Post("/removeproduct", guards.User, guards.Admin, h.HandleRemoveProduct)
}

// RegisterLegacyRoutes registers the unprefixed paths older clients still call.
func (h *ProductHandler) RegisterLegacyRoutes(root fiber.Router, guards Guards) {
	root.Get("/allproducts", func(c *fiber.Ctx) error {
		return c.Redirect("/api/allproducts")
	})
	root.Get("/products/:category", func(c *fiber.Ctx) error {
		return c.Redirect("/api/products/" + c.Params("category"))
	})
	root.Post("/removeproduct", guards.User, guards.Admin, h.HandleRemoveProduct)
}

// HandleListAll returns every product as a bare JSON array.
func (h *ProductHandler) HandleListAll(c *fiber.Ctx) error {
	products, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(products))
}

// HandleListByCategory returns the products of one category.
func (h *ProductHandler) HandleListByCategory(c *fiber.Ctx) error {
	products, err := h.service.ListByCategory(c.UserContext(), c.Params("category"))
	if err != nil {
		return err
	}
	return c.JSON(nonNil(products))
}

// HandleGetProduct returns a single product by its numeric id.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return models.ErrInvalidProductID
	}
	product, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleNewCollection returns the newest products.
func (h *ProductHandler) HandleNewCollection(c *fiber.Ctx) error {
	products, err := h.service.NewCollection(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(products))
}

// HandleUpload stores the file sent in the "product" field and returns its URL.
func (h *ProductHandler) HandleUpload(c *fiber.Ctx) error {
	fh := formFile(c, "product", "image")
	if fh == nil {
		return models.ErrNoFileUploaded
	}

	img, closeFn, err := openImage(fh)
	if err != nil {
		return err
	}
	defer closeFn()

	url, err := h.service.UploadImage(c.UserContext(), img)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"image_url": url})
}

// HandleAddProduct creates a product from a multipart form with an optional
// "image" file, or from JSON carrying an image URL.
func (h *ProductHandler) HandleAddProduct(c *fiber.Ctx) error {
	var input services.ProductInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	var img *storage.Image
	if fh := formFile(c, "image"); fh != nil {
		opened, closeFn, err := openImage(fh)
		if err != nil {
			return err
		}
		defer closeFn()
		img = &opened
	}

	product, err := h.service.Create(c.UserContext(), input, img)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{
		"message": "Product added successfully",
		"product": product,
	})
}

// HandleUpdateProduct changes the fields present in the body of the product
// named by "id".
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req updateProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ID < 1 {
		return models.ErrProductIDRequired
	}

	product, err := h.service.Update(c.UserContext(), req.ID, req.ProductPatch)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

// HandleRemoveProduct deletes the product named by "id".
func (h *ProductHandler) HandleRemoveProduct(c *fiber.Ctx) error {
	var req removeProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.service.Delete(c.UserContext(), req.ID)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": fmt.Sprintf("Product with ID %d removed successfully", req.ID),
		"product": product,
	})
}

// formFile returns the first file found under one of fields, or nil when the
// request carries none.
func formFile(c *fiber.Ctx, fields ...string) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		// Not a multipart request.
		return nil
	}
	for _, field := range fields {
		if files := form.File[field]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func openImage(fh *multipart.FileHeader) (storage.Image, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return storage.Image{}, nil, models.NewInternalError("failed to read upload", err)
	}
	img := storage.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
		Size:        fh.Size,
	}
	return img, func() { f.Close() }, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
