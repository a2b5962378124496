package models

import "time"

type OrderStatus string

const (
	OrderPlaced         OrderStatus = "PLACED"
	OrderPaymentPending OrderStatus = "PAYMENT_PENDING"
	OrderProcessing     OrderStatus = "PROCESSING"
	OrderOnDelivery     OrderStatus = "ON_DELIVERY"
	OrderReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type DeliveryMethod string

const (
	HomeDelivery DeliveryMethod = "HOME_DELIVERY"
	Pickup       DeliveryMethod = "PICKUP"
)

type Order struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Number     string `gorm:"uniqueIndex;not null"`
	CustomerID uint   `gorm:"index;not null"`
	CourierID  *uint

	DeliveryMethod DeliveryMethod `gorm:"type:varchar(16);not null"`
	Address        *string        `gorm:"type:text"`
	Notes          *string        `gorm:"type:text"`

	// Membership captured at creation time, never re-read from the
	// customer record.
	IsMember bool `gorm:"not null"`

	Subtotal    int64   `gorm:"not null"`
	DeliveryFee int64   `gorm:"not null"`
	Discount    int64   `gorm:"not null"`
	Total       int64   `gorm:"not null"`
	PromoCode   *string `gorm:"type:varchar(32)"`

	Status OrderStatus `gorm:"type:varchar(24);not null;index"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	Items    []OrderItem `gorm:"foreignKey:OrderID"`
	Payment  *Payment    `gorm:"foreignKey:OrderID"`
	Customer *Customer   `gorm:"foreignKey:CustomerID"`
}

type OrderItem struct {
	ID      uint `gorm:"primaryKey;autoIncrement"`
	OrderID uint `gorm:"index;not null"`
	MenuID  uint `gorm:"not null"`

	// Name and price are snapshots: later menu edits must not alter
	// historical orders.
	MenuName  string  `gorm:"type:varchar(128);not null"`
	Quantity  int     `gorm:"not null"`
	UnitPrice int64   `gorm:"not null"`
	Subtotal  int64   `gorm:"not null"`
	Note      *string `gorm:"type:text"`

	CreatedAt time.Time
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentVerified   PaymentStatus = "VERIFIED"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentHandedOver PaymentStatus = "HANDED_OVER"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentFailed || s == PaymentHandedOver || s == PaymentRefunded
}

type PaymentMethod string

const (
	PayCash         PaymentMethod = "CASH"
	PayBankTransfer PaymentMethod = "BANK_TRANSFER"
	PayQRIS         PaymentMethod = "QRIS"
	PayEWallet      PaymentMethod = "EWALLET"
)

// Digital reports whether the method settles through an uploaded
// transfer proof rather than cash in the field.
func (m PaymentMethod) Digital() bool {
	return m != PayCash
}

func (m PaymentMethod) Known() bool {
	switch m {
	case PayCash, PayBankTransfer, PayQRIS, PayEWallet:
		return true
	}
	return false
}

type Payment struct {
	ID      uint          `gorm:"primaryKey;autoIncrement"`
	OrderID uint          `gorm:"uniqueIndex;not null"`
	Amount  int64         `gorm:"not null"`
	Method  PaymentMethod `gorm:"type:varchar(16);not null"`
	Status  PaymentStatus `gorm:"type:varchar(16);not null;index"`

	ProofImage *string `gorm:"type:varchar(256)"`
	VerifiedBy *string `gorm:"type:varchar(64)"`
	VerifiedAt *time.Time
	VerifyNote *string `gorm:"type:text"`

	PaidAt          *time.Time
	CollectedBy     *uint
	CourierHandedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
