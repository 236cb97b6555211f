package models

import "errors"

// ErrorKind classifies domain failures so transports can map them to status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// DomainError is a business-rule failure carrying a client-safe message.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string // per-field validation failures
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, message)
}

func NewNotFoundError(message string) *DomainError {
	return NewDomainError(KindNotFound, message)
}

func NewConflictError(message string) *DomainError {
	return NewDomainError(KindConflict, message)
}

// NewInternalError wraps an unexpected failure. The cause is kept for logs only.
func NewInternalError(message string, err error) *DomainError {
	return &DomainError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first DomainError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Common domain errors
var (
	ErrMissingFields      = NewValidationError("All fields are required")
	ErrInvalidQuantity    = NewValidationError("Quantity must be a positive integer")
	ErrQuantityTooLarge   = NewValidationError("Quantity is too large")
	ErrInvalidProductID   = NewValidationError("Invalid productId")
	ErrEmailTaken         = NewConflictError("User already exists")
	ErrUsernameTaken      = NewConflictError("Username already taken")
	ErrUserNotFound       = NewNotFoundError("User not found")
	ErrProductNotFound    = NewNotFoundError("Product not found")
	ErrCartLineNotFound   = NewNotFoundError("Product not found in cart")
	ErrOrderNotFound      = NewNotFoundError("Order not found")
	ErrInvalidPassword    = NewDomainError(KindAuth, "Invalid password")
	ErrMissingToken       = NewDomainError(KindAuth, "No token provided")
	ErrTokenFormat        = NewDomainError(KindAuth, "Invalid token format")
	ErrInvalidToken       = NewDomainError(KindAuth, "Failed to authenticate token")
	ErrAdminRequired      = NewDomainError(KindForbidden, "Administrator access required")
	ErrIllegalTransition  = NewConflictError("Order status transition not allowed")
	ErrUnsupportedImage   = NewValidationError("Unsupported image type")
	ErrImageRequired      = NewValidationError("Product image is required")
	ErrCartBusy           = NewConflictError("Cart was modified concurrently, please retry")
	ErrUnknownOrderStatus = NewValidationError("Unknown order status")
	ErrCredentialsMissing = NewValidationError("Email and password are required")
	ErrOrderFieldsMissing = NewValidationError("Missing required fields")
	ErrProductIDRequired  = NewValidationError("Product ID is required")
	ErrNoFileUploaded     = NewValidationError("No file uploaded")
	ErrInvalidBody        = NewValidationError("Invalid request body")
)
