package models

import "time"

type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixed        DiscountType = "FIXED"
	DiscountFreeDelivery DiscountType = "FREE_DELIVERY"
)

type Promo struct {
	ID          uint         `gorm:"primaryKey;autoIncrement"`
	Code        string       `gorm:"type:varchar(32);uniqueIndex;not null"`
	Description *string      `gorm:"type:text"`
	Type        DiscountType `gorm:"type:varchar(16);not null"`

	// Percentage value for PERCENTAGE, rupiah amount for FIXED,
	// ignored for FREE_DELIVERY.
	Value       int64  `gorm:"not null"`
	MinPurchase int64  `gorm:"not null"`
	MaxDiscount *int64 // percentage type only

	UsageLimit   *int // nil means unlimited
	PerUserLimit *int
	UsageCount   int `gorm:"not null;default:0"`

	StartsAt *time.Time
	EndsAt   *time.Time
	IsActive bool `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PromoUsage is the per-(promo, customer) redemption ledger. A row is
// written once per successfully placed order, in the same transaction
// that bumps the global counter.
type PromoUsage struct {
	ID         uint  `gorm:"primaryKey;autoIncrement"`
	PromoID    uint  `gorm:"index;not null"`
	CustomerID uint  `gorm:"index;not null"`
	OrderID    uint  `gorm:"not null"`
	Discount   int64 `gorm:"not null"`
	UsedAt     time.Time
}
