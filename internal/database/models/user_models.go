package models

import "time"

const (
	RoleOperator = "operator"
	RoleCourier  = "courier"
)

// User is a dashboard/courier account, not a storefront customer.
type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	FullName  string `gorm:"type:varchar(128);not null"`
	Role      string `gorm:"type:varchar(16);not null"`
	IsActive  bool   `gorm:"default:true"`
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Customer struct {
	ID       uint    `gorm:"primaryKey;autoIncrement"`
	Name     string  `gorm:"type:varchar(128);not null"`
	Phone    string  `gorm:"type:varchar(32);uniqueIndex;not null"`
	Email    *string `gorm:"type:varchar(128)"`
	IsMember bool    `gorm:"not null;default:false"`

	// Lifetime completed orders, bumped exactly once per COMPLETED
	// transition.
	TotalOrders int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
