package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

// Memory backs the service when no DB_DSN is configured and the
// unit tests. A single mutex stands in for the database's atomicity, so
// every guarded update keeps its compare-and-swap meaning.
type Memory struct {
	mu   *sync.Mutex
	inTx bool
	data *memData
}

type memData struct {
	menus     map[uint]*models.Menu
	customers map[uint]*models.Customer
	promos    map[uint]*models.Promo
	usages    []models.PromoUsage
	orders    map[uint]*models.Order
	payments  map[uint]*models.Payment
	users     map[uint]*models.User
	settings  models.StoreSetting

	menuSeq, customerSeq, promoSeq, usageSeq uint
	orderSeq, itemSeq, paymentSeq, userSeq   uint
}

func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &memData{
			menus:     make(map[uint]*models.Menu),
			customers: make(map[uint]*models.Customer),
			promos:    make(map[uint]*models.Promo),
			orders:    make(map[uint]*models.Order),
			payments:  make(map[uint]*models.Payment),
			users:     make(map[uint]*models.User),
			settings: models.StoreSetting{
				ID:                   1,
				StoreName:            "Warung Enin",
				BaseDeliveryFee:      5000,
				NonMemberDeliveryFee: 2000,
				MemberDeliveryFee:    0,
			},
		},
	}
}

func (s *Memory) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Memory) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// No rollback: callers order their conditional updates so the
	// guarded one runs first, and the whole callback holds the lock.
	return fn(&Memory{mu: s.mu, inTx: true, data: s.data})
}

// -- Catalog --

func (s *Memory) ListMenus(ctx context.Context, activeOnly bool) ([]models.Menu, error) {
	defer s.lock()()
	out := make([]models.Menu, 0, len(s.data.menus))
	for _, m := range s.data.menus {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) MenusByIDs(ctx context.Context, ids []uint) ([]models.Menu, error) {
	defer s.lock()()
	out := make([]models.Menu, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.data.menus[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Memory) AddMenuOrders(ctx context.Context, menuID uint, qty int) error {
	defer s.lock()()
	if m, ok := s.data.menus[menuID]; ok {
		m.OrderCount += qty
	}
	return nil
}

func (s *Memory) CreateMenu(ctx context.Context, m *models.Menu) error {
	defer s.lock()()
	s.data.menuSeq++
	m.ID = s.data.menuSeq
	m.CreatedAt = time.Now()
	cp := *m
	s.data.menus[m.ID] = &cp
	return nil
}

func (s *Memory) UpdateMenu(ctx context.Context, m *models.Menu) error {
	defer s.lock()()
	if _, ok := s.data.menus[m.ID]; !ok {
		return core.NotFound("menu")
	}
	cp := *m
	s.data.menus[m.ID] = &cp
	return nil
}

// -- Customers --

func (s *Memory) CustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	defer s.lock()()
	for _, c := range s.data.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, core.NotFound("customer")
}

func (s *Memory) CustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	defer s.lock()()
	c, ok := s.data.customers[id]
	if !ok {
		return nil, core.NotFound("customer")
	}
	cp := *c
	return &cp, nil
}

func (s *Memory) CreateCustomer(ctx context.Context, c *models.Customer) error {
	defer s.lock()()
	s.data.customerSeq++
	c.ID = s.data.customerSeq
	c.CreatedAt = time.Now()
	cp := *c
	s.data.customers[c.ID] = &cp
	return nil
}

func (s *Memory) UpdateCustomerContact(ctx context.Context, id uint, name string, email *string) error {
	defer s.lock()()
	c, ok := s.data.customers[id]
	if !ok {
		return core.NotFound("customer")
	}
	c.Name = name
	if email != nil {
		c.Email = email
	}
	return nil
}

func (s *Memory) AddCustomerOrder(ctx context.Context, id uint) error {
	defer s.lock()()
	if c, ok := s.data.customers[id]; ok {
		c.TotalOrders++
	}
	return nil
}

// -- Promos --

func (s *Memory) PromoByCode(ctx context.Context, code string) (*models.Promo, error) {
	defer s.lock()()
	for _, p := range s.data.promos {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, core.NotFound("promo")
}

func (s *Memory) CreatePromo(ctx context.Context, p *models.Promo) error {
	defer s.lock()()
	for _, existing := range s.data.promos {
		if existing.Code == p.Code {
			return core.Conflict("promo code already exists")
		}
	}
	s.data.promoSeq++
	p.ID = s.data.promoSeq
	p.CreatedAt = time.Now()
	cp := *p
	s.data.promos[p.ID] = &cp
	return nil
}

func (s *Memory) UpdatePromo(ctx context.Context, p *models.Promo) error {
	defer s.lock()()
	if _, ok := s.data.promos[p.ID]; !ok {
		return core.NotFound("promo")
	}
	cp := *p
	s.data.promos[p.ID] = &cp
	return nil
}

func (s *Memory) ListPromos(ctx context.Context) ([]models.Promo, error) {
	defer s.lock()()
	out := make([]models.Promo, 0, len(s.data.promos))
	for _, p := range s.data.promos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Memory) RedeemPromo(ctx context.Context, promoID uint) (bool, error) {
	defer s.lock()()
	p, ok := s.data.promos[promoID]
	if !ok {
		return false, nil
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return false, nil
	}
	p.UsageCount++
	return true, nil
}

func (s *Memory) PromoUseCount(ctx context.Context, promoID, customerID uint) (int, error) {
	defer s.lock()()
	n := 0
	for _, u := range s.data.usages {
		if u.PromoID == promoID && u.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (s *Memory) RecordPromoUse(ctx context.Context, u *models.PromoUsage) error {
	defer s.lock()()
	s.data.usageSeq++
	u.ID = s.data.usageSeq
	s.data.usages = append(s.data.usages, *u)
	return nil
}

// -- Orders --

func (s *Memory) CreateOrder(ctx context.Context, o *models.Order) error {
	defer s.lock()()
	day := time.Now().UTC().Format("20060102")
	seq := 1
	for _, existing := range s.data.orders {
		if strings.HasPrefix(existing.Number, "ORD-"+day+"-") {
			seq++
		}
	}
	o.Number = fmt.Sprintf("ORD-%s-%03d", day, seq)
	if o.Status == "" {
		o.Status = models.OrderPlaced
	}
	s.data.orderSeq++
	o.ID = s.data.orderSeq
	o.CreatedAt = time.Now()
	for i := range o.Items {
		s.data.itemSeq++
		o.Items[i].ID = s.data.itemSeq
		o.Items[i].OrderID = o.ID
	}
	if o.Payment != nil {
		s.data.paymentSeq++
		o.Payment.ID = s.data.paymentSeq
		o.Payment.OrderID = o.ID
		o.Payment.CreatedAt = o.CreatedAt
		cp := *o.Payment
		s.data.payments[cp.ID] = &cp
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	s.data.orders[o.ID] = &cp
	return nil
}

func (s *Memory) orderCopy(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	for _, p := range s.data.payments {
		if p.OrderID == o.ID {
			pc := *p
			cp.Payment = &pc
			break
		}
	}
	if c, ok := s.data.customers[o.CustomerID]; ok {
		cc := *c
		cp.Customer = &cc
	}
	return &cp
}

func (s *Memory) OrderByID(ctx context.Context, id uint) (*models.Order, error) {
	defer s.lock()()
	o, ok := s.data.orders[id]
	if !ok {
		return nil, core.NotFound("order")
	}
	return s.orderCopy(o), nil
}

func (s *Memory) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	defer s.lock()()
	for _, o := range s.data.orders {
		if o.Number == number {
			return s.orderCopy(o), nil
		}
	}
	return nil, core.NotFound("order")
}

func (s *Memory) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	defer s.lock()()
	out := make([]models.Order, 0, len(s.data.orders))
	for _, o := range s.data.orders {
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *s.orderCopy(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (s *Memory) AdvanceOrder(ctx context.Context, id uint, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	defer s.lock()()
	o, ok := s.data.orders[id]
	if !ok || !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *Memory) CompleteOrder(ctx context.Context, id uint, from []models.OrderStatus, at time.Time) (bool, error) {
	defer s.lock()()
	o, ok := s.data.orders[id]
	if !ok || !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = models.OrderCompleted
	o.CompletedAt = &at
	o.UpdatedAt = at
	return true, nil
}

func (s *Memory) SetOrderCourier(ctx context.Context, id, courierID uint) (bool, error) {
	defer s.lock()()
	o, ok := s.data.orders[id]
	if !ok || o.Status.Terminal() {
		return false, nil
	}
	o.CourierID = &courierID
	return true, nil
}

func statusIn(s models.OrderStatus, set []models.OrderStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// -- Payments --

func (s *Memory) PaymentByID(ctx context.Context, id uint) (*models.Payment, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok {
		return nil, core.NotFound("payment")
	}
	cp := *p
	return &cp, nil
}

func (s *Memory) PaymentByOrderID(ctx context.Context, orderID uint) (*models.Payment, error) {
	defer s.lock()()
	for _, p := range s.data.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, core.NotFound("payment")
}

func (s *Memory) AttachPaymentProof(ctx context.Context, id uint, ref string) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.ProofImage = &ref
	return true, nil
}

func (s *Memory) VerifyPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentVerified
	p.VerifiedBy = &verifier
	p.VerifiedAt = &at
	p.PaidAt = &at
	if note != "" {
		p.VerifyNote = &note
	}
	return true, nil
}

func (s *Memory) FailPayment(ctx context.Context, id uint, verifier, note string, at time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentFailed
	p.VerifiedAt = &at
	if verifier != "" {
		p.VerifiedBy = &verifier
	}
	if note != "" {
		p.VerifyNote = &note
	}
	return true, nil
}

func (s *Memory) MarkPaidCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentPaid
	p.PaidAt = &at
	p.CollectedBy = &courierID
	return true, nil
}

func (s *Memory) HandOverCash(ctx context.Context, id, courierID uint, at time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentPaid || p.CourierHandedAt != nil {
		return false, nil
	}
	if p.CollectedBy == nil || *p.CollectedBy != courierID {
		return false, nil
	}
	p.Status = models.PaymentHandedOver
	p.CourierHandedAt = &at
	return true, nil
}

func (s *Memory) RefundPayment(ctx context.Context, id uint, at time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || (p.Status != models.PaymentVerified && p.Status != models.PaymentPaid) {
		return false, nil
	}
	p.Status = models.PaymentRefunded
	p.VerifiedAt = &at
	return true, nil
}

// -- Accounts --

func (s *Memory) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.data.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.NotFound("user")
}

func (s *Memory) CreateUser(ctx context.Context, u *models.User) error {
	defer s.lock()()
	s.data.userSeq++
	u.ID = s.data.userSeq
	u.CreatedAt = time.Now()
	cp := *u
	s.data.users[u.ID] = &cp
	return nil
}

func (s *Memory) TouchUserLogin(ctx context.Context, id uint, at time.Time) error {
	defer s.lock()()
	if u, ok := s.data.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

// -- Settings --

func (s *Memory) StoreSettings(ctx context.Context) (*models.StoreSetting, error) {
	defer s.lock()()
	cp := s.data.settings
	return &cp, nil
}
