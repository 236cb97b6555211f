package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository and
// CartRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user, enforcing unique username and email.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Cart = []models.CartLine{}

	r.users[user.ID] = cloneUser(*user)
	return nil
}

// GetByUsername returns a user by username.
func (r *MockUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username }, "username "+username)
}

// GetByEmail returns a user by email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }, "email "+email)
}

// GetByID returns a user by ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	u := cloneUser(user)
	return &u, nil
}

func (r *MockUserRepository) find(match func(models.User) bool, desc string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			u := cloneUser(user)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with %s: %w", desc, ErrNotFound)
}

// UpdateRole changes a user's role.
func (r *MockUserRepository) UpdateRole(_ context.Context, id string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	user.Role = role
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// LoadCart returns a copy of the user's cart.
func (r *MockUserRepository) LoadCart(_ context.Context, userID string) (*models.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("cart owner %s: %w", userID, ErrNotFound)
	}
	cart := &models.Cart{UserID: userID, Version: user.CartVersion, Lines: user.Cart}
	return cart.Clone(), nil
}

// SaveCart stores the cart if its version is current.
func (r *MockUserRepository) SaveCart(_ context.Context, cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[cart.UserID]
	if !ok {
		return fmt.Errorf("cart owner %s: %w", cart.UserID, ErrNotFound)
	}
	if user.CartVersion != cart.Version {
		return fmt.Errorf("cart of %s: %w", cart.UserID, ErrStale)
	}

	lines := make([]models.CartLine, len(cart.Lines))
	for i, line := range cart.Lines {
		line.UserID = cart.UserID
		line.Position = i
		lines[i] = line
	}
	user.Cart = lines
	user.CartVersion++
	user.UpdatedAt = time.Now()
	r.users[cart.UserID] = user

	cart.Version = user.CartVersion
	cart.Lines = make([]models.CartLine, len(lines))
	copy(cart.Lines, lines)
	return nil
}

func cloneUser(u models.User) models.User {
	lines := make([]models.CartLine, len(u.Cart))
	copy(lines, u.Cart)
	u.Cart = lines
	return u
}
