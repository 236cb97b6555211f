package models

import "time"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentMode records how the customer intends to pay. Nothing is settled.
type PaymentMode string

const (
	PaymentModeCOD  PaymentMode = "COD"
	PaymentModeUPI  PaymentMode = "UPI"
	PaymentModeCard PaymentMode = "Card"
	PaymentModeMock PaymentMode = "Mock"
)

// next lists the forward step of each non-terminal status.
var next = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo allows one step forward along
// pending -> processing -> shipped -> delivered, or cancellation from
// pending and processing.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to == OrderStatusCancelled {
		return s == OrderStatusPending || s == OrderStatusProcessing
	}
	return next[s] == to
}

// Valid reports whether m is one of the accepted payment modes.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCOD, PaymentModeUPI, PaymentModeCard, PaymentModeMock:
		return true
	}
	return false
}

// ProductItem is a product snapshot captured when the order was placed. It is
// never joined back to the live catalog.
type ProductItem struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	OrderID   string  `json:"-" gorm:"type:varchar(36);index;not null"`
	Position  int     `json:"-" gorm:"not null"`
	ProductID int     `json:"productId" gorm:"not null"`
	Name      string  `json:"name" gorm:"type:text"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity" gorm:"not null"`
}

// TableName keeps order lines in their own table rather than "product_items".
func (ProductItem) TableName() string {
	return "order_items"
}

// Order is an immutable record of a purchase. Only Status and UpdatedAt change
// after creation.
type Order struct {
	ID          string        `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string        `json:"userId" gorm:"type:varchar(36);index;not null"`
	Name        string        `json:"name" gorm:"type:text;not null"`
	Number      string        `json:"number" gorm:"type:varchar(50);not null"`
	Products    []ProductItem `json:"products" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Address     string        `json:"address" gorm:"type:text;not null"`
	TotalAmount float64       `json:"totalAmount" gorm:"not null"`
	PaymentMode PaymentMode   `json:"paymentMode" gorm:"type:varchar(10);not null"`
	Status      OrderStatus   `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
