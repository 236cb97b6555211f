package models

import "time"

// Product represents a catalog entry. ID is the storage key; ProductID is the
// dense integer id used in URLs, carts and orders.
type Product struct {
	ID        string    `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	ProductID int       `json:"id" gorm:"column:product_id;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Image     string    `json:"image" gorm:"type:text;not null"`
	Category  string    `json:"category" gorm:"type:varchar(100);index;not null"`
	NewPrice  float64   `json:"new_price" gorm:"not null"`
	OldPrice  float64   `json:"old_price" gorm:"not null"`
	Available bool      `json:"available" gorm:"not null"`
	Date      time.Time `json:"date" gorm:"column:created_at;index;not null"`
}

// Sequence persists a named high-water mark, used by the catalog when product
// ids must never be reused.
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(50)"`
	Value int    `gorm:"not null"`
}
