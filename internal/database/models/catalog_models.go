package models

import "time"

type Menu struct {
	ID       uint    `gorm:"primaryKey;autoIncrement"`
	Name     string  `gorm:"type:varchar(128);not null"`
	Price    int64   `gorm:"not null"`
	Category *string `gorm:"type:varchar(64)"`
	ImageURL *string `gorm:"type:varchar(256)"`
	IsActive bool    `gorm:"not null"`

	// Lifetime quantity ordered, bumped once per order line.
	OrderCount int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoreSetting is a single-row table holding store-wide knobs. The
// configured delivery fee is the base; membership overrides layer on
// top of it.
type StoreSetting struct {
	ID                   uint   `gorm:"primaryKey"`
	StoreName            string `gorm:"type:varchar(128);not null"`
	BaseDeliveryFee      int64  `gorm:"not null"`
	NonMemberDeliveryFee int64  `gorm:"not null"`
	MemberDeliveryFee    int64  `gorm:"not null"`
	UpdatedAt            time.Time
}
