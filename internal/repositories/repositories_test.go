package repositories_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type store struct {
	users    repositories.UserRepository
	carts    repositories.CartRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
}

type storeFactory func(t *testing.T, policy repositories.IDPolicy) store

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"gorm": func(t *testing.T, policy repositories.IDPolicy) store {
			db := setupTestDB(t)
			users := repositories.NewGORMUserRepository(db)
			return store{
				users:    users,
				carts:    users,
				products: repositories.NewGORMProductRepository(db, policy),
				orders:   repositories.NewGORMOrderRepository(db),
			}
		},
		"memory": func(_ *testing.T, policy repositories.IDPolicy) store {
			users := repositories.NewMockUserRepository()
			return store{
				users:    users,
				carts:    users,
				products: repositories.NewMockProductRepository(policy),
				orders:   repositories.NewMockOrderRepository(),
			}
		},
	}
}

func forEachStore(t *testing.T, policy repositories.IDPolicy, fn func(t *testing.T, s store)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t, policy))
		})
	}
}

func newUser(name string) *models.User {
	return &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "hash",
	}
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		user := newUser("alice")
		require.NoError(t, s.users.Create(ctx, user))
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, models.RoleUser, user.Role)

		byEmail, err := s.users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.NotNil(t, byEmail.Cart)
		assert.Empty(t, byEmail.Cart)

		byName, err := s.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)

		_, err = s.users.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		require.NoError(t, s.users.Create(ctx, newUser("alice")))

		dup := newUser("alice2")
		dup.Email = "alice@example.com"
		err := s.users.Create(ctx, dup)
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})
}

func TestUserRepository_UpdateRole(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		user := newUser("bob")
		require.NoError(t, s.users.Create(ctx, user))

		require.NoError(t, s.users.UpdateRole(ctx, user.ID, models.RoleAdmin))
		got, err := s.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAdmin())

		err = s.users.UpdateRole(ctx, "missing", models.RoleAdmin)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestCartRepository_SaveAndLoad(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		user := newUser("carol")
		require.NoError(t, s.users.Create(ctx, user))

		cart, err := s.carts.LoadCart(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, cart.Lines)

		cart.Add(7, 2)
		cart.Add(3, 1)
		cart.Add(7, 1)
		require.NoError(t, s.carts.SaveCart(ctx, cart))
		assert.Equal(t, int64(1), cart.Version)

		loaded, err := s.carts.LoadCart(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Lines, 2)
		assert.Equal(t, 7, loaded.Lines[0].ProductID)
		assert.Equal(t, 3, loaded.Lines[0].Quantity)
		assert.Equal(t, 3, loaded.Lines[1].ProductID)
		assert.Equal(t, int64(1), loaded.Version)

		withCart, err := s.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, withCart.Cart, 2)
	})
}

func TestCartRepository_StaleVersion(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		user := newUser("dave")
		require.NoError(t, s.users.Create(ctx, user))

		first, err := s.carts.LoadCart(ctx, user.ID)
		require.NoError(t, err)
		second, err := s.carts.LoadCart(ctx, user.ID)
		require.NoError(t, err)

		first.Add(1, 1)
		require.NoError(t, s.carts.SaveCart(ctx, first))

		second.Add(2, 1)
		err = s.carts.SaveCart(ctx, second)
		assert.ErrorIs(t, err, repositories.ErrStale)

		loaded, err := s.carts.LoadCart(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Lines, 1)
		assert.Equal(t, 1, loaded.Lines[0].ProductID)
	})
}

func TestCartRepository_UnknownUser(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		_, err := s.carts.LoadCart(ctx, "missing")
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		err = s.carts.SaveCart(ctx, &models.Cart{UserID: "missing"})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func newProduct(name, category string) *models.Product {
	return &models.Product{
		Name:      name,
		Image:     "http://localhost/images/" + name + ".png",
		Category:  category,
		NewPrice:  10,
		OldPrice:  12,
		Available: true,
	}
}

func TestProductRepository_IDAssignment(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()

		maxID, err := s.products.MaxProductID(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, maxID)

		for i, name := range []string{"a", "b", "c"} {
			p := newProduct(name, "women")
			require.NoError(t, s.products.Create(ctx, p))
			assert.Equal(t, i+1, p.ProductID)
			assert.NotEmpty(t, p.ID)
			assert.False(t, p.Date.IsZero())
		}

		// deleting the highest id lets it be assigned again
		deleted, err := s.products.DeleteByProductID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "c", deleted.Name)

		p := newProduct("d", "men")
		require.NoError(t, s.products.Create(ctx, p))
		assert.Equal(t, 3, p.ProductID)
	})
}

func TestProductRepository_SequencePolicyNeverReuses(t *testing.T) {
	forEachStore(t, repositories.IDPolicySequence, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, name := range []string{"a", "b"} {
			require.NoError(t, s.products.Create(ctx, newProduct(name, "kid")))
		}
		_, err := s.products.DeleteByProductID(ctx, 2)
		require.NoError(t, err)

		p := newProduct("c", "kid")
		require.NoError(t, s.products.Create(ctx, p))
		assert.Equal(t, 3, p.ProductID)
	})
}

func TestProductRepository_Queries(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, p := range []*models.Product{
			newProduct("shirt", "men"),
			newProduct("dress", "women"),
			newProduct("jacket", "men"),
		} {
			require.NoError(t, s.products.Create(ctx, p))
			time.Sleep(2 * time.Millisecond)
		}

		all, err := s.products.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{all[0].ProductID, all[1].ProductID, all[2].ProductID})

		men, err := s.products.GetByCategory(ctx, "men")
		require.NoError(t, err)
		require.Len(t, men, 2)
		assert.Equal(t, "shirt", men[0].Name)

		none, err := s.products.GetByCategory(ctx, "kid")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)

		newest, err := s.products.GetNewest(ctx, 2)
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, "jacket", newest[0].Name)
		assert.Equal(t, "dress", newest[1].Name)

		some, err := s.products.GetByProductIDs(ctx, []int{1, 3, 99})
		require.NoError(t, err)
		assert.Len(t, some, 2)

		_, err = s.products.GetByProductID(ctx, 99)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestProductRepository_UpdateAndDelete(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		p := newProduct("hat", "men")
		require.NoError(t, s.products.Create(ctx, p))

		p.Name = "cap"
		p.NewPrice = 7.5
		p.Available = false
		require.NoError(t, s.products.Update(ctx, p))

		got, err := s.products.GetByProductID(ctx, p.ProductID)
		require.NoError(t, err)
		assert.Equal(t, "cap", got.Name)
		assert.Equal(t, 7.5, got.NewPrice)
		assert.False(t, got.Available)

		missing := newProduct("ghost", "men")
		missing.ProductID = 42
		assert.ErrorIs(t, s.products.Update(ctx, missing), repositories.ErrNotFound)

		_, err = s.products.DeleteByProductID(ctx, 42)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func newOrder(userID string) *models.Order {
	return &models.Order{
		UserID:  userID,
		Name:    "Alice",
		Number:  "555-0100",
		Address: "1 Main St",
		Products: []models.ProductItem{
			{ProductID: 2, Name: "dress", Price: 40, Quantity: 1},
			{ProductID: 1, Name: "shirt", Price: 15, Quantity: 2},
		},
		TotalAmount: 70,
		PaymentMode: models.PaymentModeCOD,
		Status:      models.OrderStatusPending,
	}
}

func TestOrderRepository_CreateAndList(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()

		first := newOrder("u1")
		require.NoError(t, s.orders.Create(ctx, first))
		assert.NotEmpty(t, first.ID)
		time.Sleep(2 * time.Millisecond)
		second := newOrder("u1")
		require.NoError(t, s.orders.Create(ctx, second))
		require.NoError(t, s.orders.Create(ctx, newOrder("u2")))

		mine, err := s.orders.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, second.ID, mine[0].ID)
		assert.Equal(t, first.ID, mine[1].ID)

		got, err := s.orders.GetByID(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, got.Products, 2)
		assert.Equal(t, "dress", got.Products[0].Name)
		assert.Equal(t, "shirt", got.Products[1].Name)

		all, err := s.orders.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := s.orders.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = s.orders.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestOrderRepository_SameTimestampKeepsInsertionOrder(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		at := time.Now().UTC().Truncate(time.Microsecond)

		var ids []string
		for i := 0; i < 5; i++ {
			order := newOrder("u1")
			order.CreatedAt = at
			require.NoError(t, s.orders.Create(ctx, order))
			ids = append(ids, order.ID)
		}

		mine, err := s.orders.ListByUser(ctx, "u1")
		require.NoError(t, err)
		all, err := s.orders.GetAll(ctx)
		require.NoError(t, err)

		for _, list := range [][]models.Order{mine, all} {
			require.Len(t, list, 5)
			for i, order := range list {
				assert.Equal(t, ids[len(ids)-1-i], order.ID)
			}
		}
	})
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	forEachStore(t, repositories.IDPolicyMax, func(t *testing.T, s store) {
		ctx := context.Background()
		order := newOrder("u1")
		require.NoError(t, s.orders.Create(ctx, order))

		require.NoError(t, s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusProcessing))

		err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
		assert.ErrorIs(t, err, repositories.ErrStale)

		err = s.orders.UpdateStatus(ctx, "missing", models.OrderStatusPending, models.OrderStatusProcessing)
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		got, err := s.orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusProcessing, got.Status)
		assert.Equal(t, 70.0, got.TotalAmount)
	})
}

func TestOrderRepository_SnapshotIsolation(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	ctx := context.Background()
	order := newOrder("u1")
	require.NoError(t, repo.Create(ctx, order))

	order.Products[0].Name = "mutated"
	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "dress", got.Products[0].Name)
}
