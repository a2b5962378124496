package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

type gormStore struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// -- Catalog --

func (s *gormStore) ListMenus(ctx context.Context, activeOnly bool) ([]models.Menu, error) {
	var menus []models.Menu
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&menus).Error; err != nil {
		return nil, err
	}
	return menus, nil
}

func (s *gormStore) MenusByIDs(ctx context.Context, ids []uint) ([]models.Menu, error) {
	var menus []models.Menu
	if len(ids) == 0 {
		return menus, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&menus).Error; err != nil {
		return nil, err
	}
	return menus, nil
}

func (s *gormStore) CreateMenu(ctx context.Context, m *models.Menu) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormStore) UpdateMenu(ctx context.Context, m *models.Menu) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *gormStore) AddMenuOrders(ctx context.Context, menuID uint, qty int) error {
	return s.db.WithContext(ctx).Model(&models.Menu{}).
		Where("id = ?", menuID).
		Update("order_count", gorm.Expr("order_count + ?", qty)).Error
}

// -- Customers --

func (s *gormStore) CustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("customer")
		}
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) CustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("customer")
		}
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *gormStore) UpdateCustomerContact(ctx context.Context, id uint, name string, email *string) error {
	fields := map[string]interface{}{"name": name}
	if email != nil {
		fields["email"] = *email
	}
	return s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).Updates(fields).Error
}

func (s *gormStore) AddCustomerOrder(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).
		Update("total_orders", gorm.Expr("total_orders + 1")).Error
}

// -- Promos --

func (s *gormStore) PromoByCode(ctx context.Context, code string) (*models.Promo, error) {
	var p models.Promo
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("promo")
		}
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) CreatePromo(ctx context.Context, p *models.Promo) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *gormStore) UpdatePromo(ctx context.Context, p *models.Promo) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *gormStore) ListPromos(ctx context.Context) ([]models.Promo, error) {
	var promos []models.Promo
	if err := s.db.WithContext(ctx).Order("code").Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func (s *gormStore) RedeemPromo(ctx context.Context, promoID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Promo{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", promoID).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) PromoUseCount(ctx context.Context, promoID, customerID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PromoUsage{}).
		Where("promo_id = ? AND customer_id = ?", promoID, customerID).
		Count(&n).Error
	return int(n), err
}

func (s *gormStore) RecordPromoUse(ctx context.Context, u *models.PromoUsage) error {
	return s.db.WithContext(ctx).Create(u).Error
}

// -- Orders --

func (s *gormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	day := time.Now().UTC().Format("20060102")
	// Serialize number generation for the day. Without the lock two
	// checkouts can count the same total and mint the same sequence,
	// and the unique index then fails one of them. The lock is held
	// until the surrounding transaction commits.
	if err := s.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "order-number-"+day).Error; err != nil {
		return fmt.Errorf("lock order numbering: %w", err)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("number LIKE ?", "ORD-"+day+"-%").
		Count(&count).Error; err != nil {
		return fmt.Errorf("count today's orders: %w", err)
	}
	o.Number = fmt.Sprintf("ORD-%s-%03d", day, count+1)
	if o.Status == "" {
		o.Status = models.OrderPlaced
	}
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *gormStore) OrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Payment").Preload("Customer").
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("order")
		}
		return nil, err
	}
	return &o, nil
}

func (s *gormStore) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").Preload("Payment").Preload("Customer").
		Where("number = ?", number).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("order")
		}
		return nil, err
	}
	return &o, nil
}

func (s *gormStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	q := s.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	err := q.Preload("Items").Preload("Payment").
		Order("created_at DESC").
		Offset(f.Offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *gormStore) AdvanceOrder(ctx context.Context, id uint, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) CompleteOrder(ctx context.Context, id uint, from []models.OrderStatus, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":       models.OrderCompleted,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) SetOrderCourier(ctx context.Context, id, courierID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status NOT IN ?", id, []models.OrderStatus{models.OrderCompleted, models.OrderCancelled}).
		Update("courier_id", courierID)
	return res.RowsAffected > 0, res.Error
}

// -- Payments --

func (s *gormStore) PaymentByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("payment")
		}
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) PaymentByOrderID(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("payment")
		}
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) AttachPaymentProof(ctx context.Context, id uint, ref string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Update("proof_image", ref)
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) VerifyPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":      models.PaymentVerified,
			"verified_by": verifier,
			"verified_at": at,
			"verify_note": note,
			"paid_at":     at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) FailPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error) {
	fields := map[string]interface{}{
		"status":      models.PaymentFailed,
		"verified_at": at,
		"verify_note": note,
	}
	if verifier != "" {
		fields["verified_by"] = verifier
	}
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) MarkPaidCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":       models.PaymentPaid,
			"paid_at":      at,
			"collected_by": courierID,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) HandOverCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND collected_by = ? AND courier_handed_at IS NULL",
			id, models.PaymentPaid, courierID).
		Updates(map[string]interface{}{
			"status":            models.PaymentHandedOver,
			"courier_handed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) RefundPayment(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []models.PaymentStatus{models.PaymentVerified, models.PaymentPaid}).
		Updates(map[string]interface{}{
			"status":      models.PaymentRefunded,
			"verified_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// -- Accounts --

func (s *gormStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

func (s *gormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *gormStore) TouchUserLogin(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Update("last_login", at).Error
}

// -- Settings --

func (s *gormStore) StoreSettings(ctx context.Context) (*models.StoreSetting, error) {
	var st models.StoreSetting
	if err := s.db.WithContext(ctx).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFound("store settings")
		}
		return nil, err
	}
	return &st, nil
}

// -- Transactions --

func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
