package models

import "time"

// Role controls access to administrative routes.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a customer account. The cart is embedded in the user and is
// always present, possibly empty.
type User struct {
	ID          string     `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	Username    string     `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email       string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password    string     `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Role        Role       `json:"role" gorm:"type:varchar(20);not null"`
	Cart        []CartLine `json:"cart" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CartVersion int64      `json:"-" gorm:"not null"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user may call catalog mutation routes.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
