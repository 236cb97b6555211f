package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Claims are the JWT claims issued at signup and login.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the caller proven by a verified token.
type Identity struct {
	UserID string
	Email  string
}

// SignupInput is the payload of a signup request.
type SignupInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// LoginInput is the payload of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	hasher    *PasswordHasher
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, hasher *PasswordHasher, jwtSecret string, tokenTTL time.Duration, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("service", "auth").Logger(),
	}
}

// Signup registers a new user and returns a token for it.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (string, *models.User, error) {
	if err := validateStruct(input, models.ErrMissingFields); err != nil {
		return "", nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, input.Email); err == nil {
		return "", nil, models.ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return "", nil, models.NewInternalError("failed to look up email", err)
	}
	if _, err := s.userRepo.GetByUsername(ctx, input.Username); err == nil {
		return "", nil, models.ErrUsernameTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return "", nil, models.NewInternalError("failed to look up username", err)
	}

	hashed, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return "", nil, models.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
		Role:     models.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same email or username.
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", nil, models.ErrEmailTaken
		}
		return "", nil, models.NewInternalError("failed to register user", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return token, user, nil
}

// Login checks the credentials and returns a token and the user's id.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (string, string, error) {
	if err := validateStruct(input, models.ErrCredentialsMissing); err != nil {
		return "", "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", "", models.ErrUserNotFound
		}
		return "", "", models.NewInternalError("failed to look up user", err)
	}

	ok, err := s.hasher.Compare(ctx, user.Password, input.Password)
	if err != nil {
		return "", "", models.NewInternalError("failed to verify password", err)
	}
	if !ok {
		return "", "", models.ErrInvalidPassword
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", "", err
	}
	return token, user.ID, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", models.NewInternalError("failed to generate token", err)
	}
	return tokenString, nil
}

// VerifyToken parses and validates a token, returning the identity it carries.
func (s *AuthService) VerifyToken(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, models.ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		s.logger.Debug().Err(err).Msg("token validation failed")
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, models.ErrInvalidToken
	}

	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// ResolveUser loads the user behind a verified identity.
func (s *AuthService) ResolveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, models.NewInternalError("failed to load user", err)
	}
	return user, nil
}

// RequireAdmin fails with a forbidden error unless the user is an administrator.
func (s *AuthService) RequireAdmin(ctx context.Context, userID string) error {
	user, err := s.ResolveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.ErrAdminRequired
		}
		return err
	}
	if !user.IsAdmin() {
		return models.ErrAdminRequired
	}
	return nil
}

// CreateAdmin promotes the user registered under email, or registers a new
// administrator when there is none. It reports whether a user was created.
func (s *AuthService) CreateAdmin(ctx context.Context, input SignupInput) (*models.User, bool, error) {
	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		if err := s.userRepo.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return nil, false, models.NewInternalError("failed to promote user", err)
		}
		existing.Role = models.RoleAdmin
		s.logger.Info().Str("user_id", existing.ID).Msg("user promoted to admin")
		return existing, false, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, false, models.NewInternalError("failed to look up email", err)
	}

	if err := validateStruct(input, models.ErrMissingFields); err != nil {
		return nil, false, err
	}

	hashed, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, false, models.NewInternalError("failed to hash password", err)
	}
	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
		Role:     models.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, false, models.ErrUsernameTaken
		}
		return nil, false, models.NewInternalError("failed to create admin", err)
	}
	s.logger.Info().Str("user_id", user.ID).Msg("admin created")
	return user, true, nil
}
