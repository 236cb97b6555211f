package models

import "math"

// CartLine is one (product, quantity) pair in a user's cart. A cart never holds
// two lines for the same product.
type CartLine struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	UserID    string `json:"-" gorm:"type:varchar(36);uniqueIndex:idx_cart_user_product;not null"`
	ProductID int    `json:"productId" gorm:"uniqueIndex:idx_cart_user_product;not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
	Position  int    `json:"-" gorm:"not null"`
}

// Cart is a user's cart loaded for a read-modify-write cycle. Version is the
// optimistic lock token that must still match when the cart is saved.
type Cart struct {
	UserID  string
	Version int64
	Lines   []CartLine
}

// CartItem is a cart line with its product resolved from the live catalog.
// Product is nil when the product has been removed since it was added.
type CartItem struct {
	ProductID int      `json:"productId"`
	Product   *Product `json:"product"`
	Quantity  int      `json:"quantity"`
}

// Clone returns a deep copy so callers can mutate lines without touching the
// loaded state.
func (c *Cart) Clone() *Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return &Cart{UserID: c.UserID, Version: c.Version, Lines: lines}
}

func (c *Cart) indexOf(productID int) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID int) (CartLine, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Add merges quantity into the existing line for productID or appends a new one.
func (c *Cart) Add(productID, quantity int) error {
	if i := c.indexOf(productID); i >= 0 {
		if c.Lines[i].Quantity > math.MaxInt-quantity {
			return ErrQuantityTooLarge
		}
		c.Lines[i].Quantity += quantity
		return nil
	}
	c.Lines = append(c.Lines, CartLine{
		UserID:    c.UserID,
		ProductID: productID,
		Quantity:  quantity,
	})
	c.renumber()
	return nil
}

// Remove takes quantity units of productID out of the cart. The line is dropped
// when its quantity would reach zero or below. It reports false when the cart
// has no line for productID.
func (c *Cart) Remove(productID, quantity int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	if c.Lines[i].Quantity <= quantity {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		c.renumber()
		return true
	}
	c.Lines[i].Quantity -= quantity
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

func (c *Cart) renumber() {
	for i := range c.Lines {
		c.Lines[i].Position = i
	}
}
