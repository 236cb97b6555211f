package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, body []byte) error {
	args := m.Called(exchange, routingKey, body)
	return args.Error(0)
}

type orderFixture struct {
	users     *repositories.MockUserRepository
	products  *repositories.MockProductRepository
	orders    *repositories.MockOrderRepository
	carts     *services.CartService
	publisher *MockPublisher
	userID    string
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		users:     repositories.NewMockUserRepository(),
		products:  repositories.NewMockProductRepository(repositories.IDPolicyMax),
		orders:    repositories.NewMockOrderRepository(),
		publisher: new(MockPublisher),
	}
	f.carts = services.NewCartService(f.users, f.products, zerolog.Nop())

	user := &models.User{Username: "buyer", Email: "buyer@example.com", Password: "x"}
	require.NoError(t, f.users.Create(context.Background(), user))
	f.userID = user.ID

	require.NoError(t, f.products.Create(context.Background(), &models.Product{
		Name: "Striped Shirt", Category: "men", Image: "http://cdn/a.png", NewPrice: 19.99, OldPrice: 30, Available: true,
	}))
	require.NoError(t, f.products.Create(context.Background(), &models.Product{
		Name: "Wool Jacket", Category: "men", Image: "http://cdn/b.png", NewPrice: 0.1, OldPrice: 1, Available: true,
	}))
	return f
}

func (f *orderFixture) service(opts services.OrderOptions) *services.OrderService {
	return services.NewOrderService(f.orders, f.products, f.carts, f.publisher, opts, zerolog.Nop())
}

func placeOrderInput() services.PlaceOrderInput {
	return services.PlaceOrderInput{
		Name:    "Ada",
		Number:  "555-0100",
		Address: "1 Main St",
		Products: []services.OrderLineInput{
			{ProductID: 1, Name: "Whatever", Price: 1, Quantity: 2},
			{ProductID: 2, Name: "Jacket", Price: 0.1, Quantity: 3},
		},
		TotalAmount: 2.3,
		PaymentMode: "COD",
	}
}

func TestOrderService_PlaceOrder_ClientPricing(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", "orders", services.EventOrderPlaced, mock.Anything).Return(nil).Once()
	service := f.service(services.OrderOptions{Exchange: "orders"})

	order, err := service.PlaceOrder(context.Background(), f.userID, placeOrderInput())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 2.3, order.TotalAmount)
	require.Len(t, order.Products, 2)
	assert.Equal(t, "Whatever", order.Products[0].Name)
	assert.Equal(t, 1.0, order.Products[0].Price)
	f.publisher.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_CatalogPricing(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	service := f.service(services.OrderOptions{Pricing: services.PricingCatalog})

	order, err := service.PlaceOrder(context.Background(), f.userID, placeOrderInput())
	require.NoError(t, err)

	assert.Equal(t, "Striped Shirt", order.Products[0].Name)
	assert.Equal(t, 19.99, order.Products[0].Price)
	// 19.99*2 + 0.1*3 computed without float drift
	assert.Equal(t, 40.28, order.TotalAmount)

	// Names come from the catalog, so the caller may leave them out.
	unnamed := placeOrderInput()
	unnamed.Products[0].Name = ""
	order, err = service.PlaceOrder(context.Background(), f.userID, unnamed)
	require.NoError(t, err)
	assert.Equal(t, "Striped Shirt", order.Products[0].Name)

	input := placeOrderInput()
	input.Products[1].ProductID = 77
	_, err = service.PlaceOrder(context.Background(), f.userID, input)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	f := newOrderFixture(t)
	service := f.service(services.OrderOptions{})

	tests := []struct {
		name      string
		modify    func(*services.PlaceOrderInput)
		wantErr   error
		wantField string
	}{
		{"missing name", func(in *services.PlaceOrderInput) { in.Name = "" }, models.ErrOrderFieldsMissing, "name"},
		{"no products", func(in *services.PlaceOrderInput) { in.Products = nil }, models.ErrOrderFieldsMissing, "products"},
		{"missing address", func(in *services.PlaceOrderInput) { in.Address = "" }, models.ErrOrderFieldsMissing, "address"},
		{"unknown payment mode", func(in *services.PlaceOrderInput) { in.PaymentMode = "Barter" }, nil, "paymentMode"},
		{"zero quantity line", func(in *services.PlaceOrderInput) { in.Products[0].Quantity = 0 }, models.ErrOrderFieldsMissing, "products[0].quantity"},
		{"negative total", func(in *services.PlaceOrderInput) { in.TotalAmount = -1 }, nil, "totalAmount"},
		{"unnamed line", func(in *services.PlaceOrderInput) { in.Products[1].Name = " " }, models.ErrOrderFieldsMissing, "products[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := placeOrderInput()
			tt.modify(&input)

			_, err := service.PlaceOrder(context.Background(), f.userID, input)
			require.Error(t, err)
			assert.Equal(t, models.KindValidation, models.KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			var de *models.DomainError
			require.True(t, errors.As(err, &de))
			assert.Contains(t, de.Fields, tt.wantField)
		})
	}

	orders, err := service.ListAllOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_ClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, f.userID, 1, 2)
	require.NoError(t, err)

	_, err = f.service(services.OrderOptions{}).PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)
	items, err := f.carts.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, items, 1, "cart is kept unless configured otherwise")

	_, err = f.service(services.OrderOptions{ClearCartOnPlace: true}).PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)
	items, err = f.carts.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	order, err := f.service(services.OrderOptions{}).PlaceOrder(context.Background(), f.userID, placeOrderInput())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestOrderService_GetOrderOwnership(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	service := f.service(services.OrderOptions{})
	ctx := context.Background()

	order, err := service.PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)

	got, err := service.GetOrder(ctx, f.userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = service.GetOrder(ctx, "someone-else", order.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	_, err = service.GetOrder(ctx, f.userID, "missing")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	mine, err := service.ListOrdersForUser(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := service.ListOrdersForUser(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, services.EventOrderPlaced, mock.Anything).Return(nil)
	service := f.service(services.OrderOptions{Exchange: "orders"})
	ctx := context.Background()

	order, err := service.PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)

	f.publisher.On("Publish", "orders", services.EventOrderStatusChanged, mock.MatchedBy(func(body []byte) bool {
		var event services.OrderEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return false
		}
		return event.OrderID == order.ID &&
			event.Type == services.EventOrderStatusChanged &&
			event.Previous == models.OrderStatusPending &&
			event.Status == models.OrderStatusProcessing
	})).Return(nil).Once()

	updated, err := service.UpdateStatus(ctx, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)
	f.publisher.AssertExpectations(t)

	_, err = service.UpdateStatus(ctx, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	_, err = service.UpdateStatus(ctx, order.ID, "lost")
	assert.ErrorIs(t, err, models.ErrUnknownOrderStatus)

	_, err = service.UpdateStatus(ctx, "missing", models.OrderStatusShipped)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestOrderService_CancelledOrderIsFinal(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	service := f.service(services.OrderOptions{})
	ctx := context.Background()

	order, err := service.PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)

	_, err = service.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	_, err = service.UpdateStatus(ctx, order.ID, models.OrderStatusProcessing)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
}

func TestOrderService_SnapshotSurvivesCatalogChanges(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	service := f.service(services.OrderOptions{Pricing: services.PricingCatalog})
	ctx := context.Background()

	order, err := service.PlaceOrder(ctx, f.userID, placeOrderInput())
	require.NoError(t, err)

	_, err = f.products.DeleteByProductID(ctx, 1)
	require.NoError(t, err)

	got, err := service.GetOrder(ctx, f.userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Striped Shirt", got.Products[0].Name)
	assert.Equal(t, 19.99, got.Products[0].Price)
}

func TestOrderService_WithoutPublisher(t *testing.T) {
	f := newOrderFixture(t)
	service := services.NewOrderService(f.orders, f.products, f.carts, nil, services.OrderOptions{}, zerolog.Nop())

	order, err := service.PlaceOrder(context.Background(), f.userID, placeOrderInput())
	require.NoError(t, err)
	_, err = service.UpdateStatus(context.Background(), order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
}

func TestStorefrontFlow(t *testing.T) {
	ctx := context.Background()
	users := repositories.NewMockUserRepository()
	products := repositories.NewMockProductRepository(repositories.IDPolicyMax)
	orders := repositories.NewMockOrderRepository()

	auth := services.NewAuthService(users, newHasher(), "flow-secret", time.Hour, zerolog.Nop())
	catalog := services.NewProductService(products, new(MockImageStore), zerolog.Nop())
	carts := services.NewCartService(users, products, zerolog.Nop())
	ordering := services.NewOrderService(orders, products, carts, nil, services.OrderOptions{}, zerolog.Nop())

	token, _, err := auth.Signup(ctx, services.SignupInput{Username: "a", Email: "a@x.io", Password: "p"})
	require.NoError(t, err)
	identity, err := auth.VerifyToken(token)
	require.NoError(t, err)

	product, err := catalog.Create(ctx, services.ProductInput{
		Name: "Tee", Category: "women", NewPrice: 10, OldPrice: 15, Image: "http://cdn/tee.png",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, product.ProductID)

	_, err = carts.AddToCart(ctx, identity.UserID, 1, 2)
	require.NoError(t, err)
	_, err = carts.AddToCart(ctx, identity.UserID, 1, 1)
	require.NoError(t, err)

	items, err := carts.GetCart(ctx, identity.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	order, err := ordering.PlaceOrder(ctx, identity.UserID, services.PlaceOrderInput{
		Name: "A", Number: "1", Address: "Somewhere", PaymentMode: "COD", TotalAmount: 30,
		Products: []services.OrderLineInput{{ProductID: 1, Name: "Tee", Price: 10, Quantity: 3}},
	})
	require.NoError(t, err)

	list, err := ordering.ListOrdersForUser(ctx, identity.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)
	assert.Equal(t, models.OrderStatusPending, list[0].Status)
}
