// Package repository exposes storage as named conditional-update
// operations instead of generic read/write, so every state flip is a
// single compare-and-swap at the storage layer. Operations that guard
// on a current status return (false, nil) when the guard does not hold;
// the caller turns that into a conflict.
package repository

import (
	"context"
	"time"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

type OrderFilter struct {
	Status *models.OrderStatus
	Limit  int
	Offset int
}

type Store interface {
	// Catalog.
	ListMenus(ctx context.Context, activeOnly bool) ([]models.Menu, error)
	MenusByIDs(ctx context.Context, ids []uint) ([]models.Menu, error)
	CreateMenu(ctx context.Context, m *models.Menu) error
	UpdateMenu(ctx context.Context, m *models.Menu) error
	AddMenuOrders(ctx context.Context, menuID uint, qty int) error

	// Customers.
	CustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	CustomerByID(ctx context.Context, id uint) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomerContact(ctx context.Context, id uint, name string, email *string) error
	AddCustomerOrder(ctx context.Context, id uint) error

	// Promos. RedeemPromo increments the usage counter only while it is
	// under the cap, in one statement.
	PromoByCode(ctx context.Context, code string) (*models.Promo, error)
	CreatePromo(ctx context.Context, p *models.Promo) error
	UpdatePromo(ctx context.Context, p *models.Promo) error
	ListPromos(ctx context.Context) ([]models.Promo, error)
	RedeemPromo(ctx context.Context, promoID uint) (bool, error)
	PromoUseCount(ctx context.Context, promoID, customerID uint) (int, error)
	RecordPromoUse(ctx context.Context, u *models.PromoUsage) error

	// Orders. CreateOrder assigns the day-scoped order number and
	// persists items and the payment record together with the order.
	CreateOrder(ctx context.Context, o *models.Order) error
	OrderByID(ctx context.Context, id uint) (*models.Order, error)
	OrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	AdvanceOrder(ctx context.Context, id uint, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	CompleteOrder(ctx context.Context, id uint, from []models.OrderStatus, at time.Time) (bool, error)
	SetOrderCourier(ctx context.Context, id, courierID uint) (bool, error)

	// Payments.
	PaymentByID(ctx context.Context, id uint) (*models.Payment, error)
	PaymentByOrderID(ctx context.Context, orderID uint) (*models.Payment, error)
	AttachPaymentProof(ctx context.Context, id uint, ref string) (bool, error)
	VerifyPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error)
	FailPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error)
	MarkPaidCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error)
	HandOverCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error)
	RefundPayment(ctx context.Context, id uint, at time.Time) (bool, error)

	// Accounts.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	TouchUserLogin(ctx context.Context, id uint, at time.Time) error

	// Settings.
	StoreSettings(ctx context.Context) (*models.StoreSetting, error)

	// Atomic runs fn against a store bound to one transaction; partial
	// effects are rolled back when fn errors.
	Atomic(ctx context.Context, fn func(Store) error) error
}
