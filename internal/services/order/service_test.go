package order_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/notify"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
	"github.com/imamnura/warung-enin-sub000/internal/services/pricing"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
)

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Dispatch(ctx context.Context, ev notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capture) last() notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return notify.Event{}
	}
	return c.events[len(c.events)-1]
}

type OrderServiceSuite struct {
	suite.Suite
	ctx    context.Context
	store  *repository.Memory
	events *capture
	svc    *order.Service
}

func TestOrderService(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemory()
	s.events = &capture{}

	menus := []*models.Menu{
		{Name: "Nasi Goreng Spesial", Price: 14000, IsActive: true},
		{Name: "Es Teh Manis", Price: 5000, IsActive: true},
		{Name: "Sate Ayam", Price: 20000, IsActive: false},
	}
	for _, m := range menus {
		s.Require().NoError(s.store.CreateMenu(s.ctx, m))
	}

	validator := promo.NewValidator(s.store)
	calc := pricing.NewCalculator(pricing.FeePolicy{Base: 5000, Member: 0, NonMember: 2000}, validator)
	s.svc = order.NewService(s.store, calc, s.events)
}

func strPtr(v string) *string { return &v }
func intPtr(n int) *int       { return &n }

func (s *OrderServiceSuite) checkoutReq() order.CheckoutRequest {
	return order.CheckoutRequest{
		CustomerName:   "Budi Santoso",
		CustomerPhone:  "081234567890",
		DeliveryMethod: models.HomeDelivery,
		Address:        strPtr("Jl. Merdeka No. 1"),
		PaymentMethod:  models.PayCash,
		Items: []order.CartItem{
			{MenuID: 1, Quantity: 2},
			{MenuID: 2, Quantity: 3},
		},
	}
}

func (s *OrderServiceSuite) placeOrder(req order.CheckoutRequest) *models.Order {
	res, err := s.svc.Checkout(s.ctx, req)
	s.Require().NoError(err)
	o, err := s.store.OrderByID(s.ctx, res.OrderID)
	s.Require().NoError(err)
	return o
}

func (s *OrderServiceSuite) TestCheckoutCashDelivery() {
	res, err := s.svc.Checkout(s.ctx, s.checkoutReq())
	s.Require().NoError(err)

	s.Equal(models.OrderPlaced, res.Status)
	s.Equal(int64(45000), res.Total)
	s.Regexp(`^ORD-\d{8}-\d{3}$`, res.OrderNumber)

	o, err := s.store.OrderByID(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(int64(43000), o.Subtotal)
	s.Equal(int64(2000), o.DeliveryFee)
	s.False(o.IsMember)
	s.Len(o.Items, 2)
	s.Equal("Nasi Goreng Spesial", o.Items[0].MenuName)
	s.Equal(int64(28000), o.Items[0].Subtotal)

	s.Require().NotNil(o.Payment)
	s.Equal(models.PaymentPending, o.Payment.Status)
	s.Equal(models.PayCash, o.Payment.Method)
	s.Equal(o.Total, o.Payment.Amount)

	ev := s.events.last()
	s.Equal(notify.EventOrderCreated, ev.Event)
	s.Equal(notify.AudienceOperator, ev.Audience)
	s.Equal(res.OrderNumber, ev.OrderNumber)
}

func (s *OrderServiceSuite) TestCheckoutMemberFeeWaived() {
	s.Require().NoError(s.store.CreateCustomer(s.ctx, &models.Customer{
		Name: "Budi Santoso", Phone: "081234567890", IsMember: true,
	}))

	res, err := s.svc.Checkout(s.ctx, s.checkoutReq())
	s.Require().NoError(err)
	s.Equal(int64(43000), res.Total)

	o, err := s.store.OrderByID(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.True(o.IsMember)
	s.Equal(int64(0), o.DeliveryFee)
}

func (s *OrderServiceSuite) TestCheckoutValidation() {
	req := s.checkoutReq()
	req.Address = nil
	_, err := s.svc.Checkout(s.ctx, req)
	s.True(core.IsInvalid(err))

	req = s.checkoutReq()
	req.PaymentMethod = "CHEQUE"
	_, err = s.svc.Checkout(s.ctx, req)
	s.True(core.IsInvalid(err))

	req = s.checkoutReq()
	req.Items = nil
	_, err = s.svc.Checkout(s.ctx, req)
	s.True(core.IsInvalid(err))

	req = s.checkoutReq()
	req.Items = []order.CartItem{{MenuID: 3, Quantity: 1}}
	_, err = s.svc.Checkout(s.ctx, req)
	s.True(core.IsInvalid(err))
	s.EqualError(err, "menu 3 is not available")
}

func (s *OrderServiceSuite) TestCheckoutSnapshotsMenuPrice() {
	o := s.placeOrder(s.checkoutReq())

	menus, err := s.store.MenusByIDs(s.ctx, []uint{1})
	s.Require().NoError(err)
	m := menus[0]
	m.Price = 99000
	s.Require().NoError(s.store.UpdateMenu(s.ctx, &m))

	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(int64(14000), got.Items[0].UnitPrice)
}

func (s *OrderServiceSuite) TestCheckoutPromoRecordsLedger() {
	s.Require().NoError(s.store.CreatePromo(s.ctx, &models.Promo{
		Code: "HEMAT20K", Type: models.DiscountFixed, Value: 20000, IsActive: true,
		PerUserLimit: intPtr(1),
	}))

	req := s.checkoutReq()
	req.PromoCode = "hemat20k"
	res, err := s.svc.Checkout(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(int64(25000), res.Total)

	o, err := s.store.OrderByID(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Require().NotNil(o.PromoCode)
	s.Equal("HEMAT20K", *o.PromoCode)

	p, err := s.store.PromoByCode(s.ctx, "HEMAT20K")
	s.Require().NoError(err)
	s.Equal(1, p.UsageCount)

	used, err := s.store.PromoUseCount(s.ctx, p.ID, o.CustomerID)
	s.Require().NoError(err)
	s.Equal(1, used)

	// Same customer is out of redemptions.
	_, err = s.svc.Checkout(s.ctx, req)
	s.True(core.IsRule(err))
	s.EqualError(err, "promo usage limit for this customer reached")
}

func (s *OrderServiceSuite) TestCheckoutPromoCapExhausted() {
	limit := 1
	s.Require().NoError(s.store.CreatePromo(s.ctx, &models.Promo{
		Code: "TERBATAS", Type: models.DiscountFixed, Value: 5000, IsActive: true,
		UsageLimit: &limit,
	}))

	req := s.checkoutReq()
	req.PromoCode = "TERBATAS"
	_, err := s.svc.Checkout(s.ctx, req)
	s.Require().NoError(err)

	other := s.checkoutReq()
	other.CustomerPhone = "089876543210"
	other.PromoCode = "TERBATAS"
	_, err = s.svc.Checkout(s.ctx, other)
	s.True(core.IsRule(err))
	s.EqualError(err, "promo usage limit reached")
}

func (s *OrderServiceSuite) TestConcurrentCheckoutsNeverOverspendPromo() {
	limit := 3
	s.Require().NoError(s.store.CreatePromo(s.ctx, &models.Promo{
		Code: "REBUTAN", Type: models.DiscountFixed, Value: 5000, IsActive: true,
		UsageLimit: &limit,
	}))

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := s.checkoutReq()
			req.CustomerPhone = fmt.Sprintf("0812345678%02d", i)
			req.PromoCode = "REBUTAN"
			_, err := s.svc.Checkout(s.ctx, req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	placed, rejected := 0, 0
	for err := range results {
		if err == nil {
			placed++
		} else {
			s.True(core.IsRule(err))
			rejected++
		}
	}
	s.Equal(limit, placed)
	s.Equal(8-limit, rejected)

	p, err := s.store.PromoByCode(s.ctx, "REBUTAN")
	s.Require().NoError(err)
	s.Equal(limit, p.UsageCount)
}

func (s *OrderServiceSuite) TestAcceptCashOrder() {
	o := s.placeOrder(s.checkoutReq())

	accepted, err := s.svc.Accept(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderProcessing, accepted.Status)

	// Cash stays unsettled until the courier collects it.
	p, err := s.store.PaymentByOrderID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPending, p.Status)

	_, err = s.svc.Accept(s.ctx, o.ID)
	s.True(core.IsConflict(err))
}

func (s *OrderServiceSuite) TestAcceptDigitalRejected() {
	req := s.checkoutReq()
	req.PaymentMethod = models.PayBankTransfer
	o := s.placeOrder(req)

	_, err := s.svc.Accept(s.ctx, o.ID)
	s.True(core.IsRule(err))
}

func (s *OrderServiceSuite) TestDeliveryFlow() {
	req := s.checkoutReq()
	req.PaymentMethod = models.PayBankTransfer
	o := s.placeOrder(req)

	payments := payment.NewService(s.store, s.events)
	p, err := payments.AttachProof(s.ctx, o.Number, "TRF-123")
	s.Require().NoError(err)
	s.Require().NoError(payments.Verify(s.ctx, p.ID, true, "siti", ""))

	s.Require().NoError(s.svc.AssignCourier(s.ctx, o.ID, 3))
	s.Require().NoError(s.svc.MarkOnDelivery(s.ctx, o.ID))

	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderOnDelivery, got.Status)

	s.Require().NoError(s.svc.Complete(s.ctx, o.ID))

	cust, err := s.store.CustomerByID(s.ctx, o.CustomerID)
	s.Require().NoError(err)
	s.Equal(1, cust.TotalOrders)

	// Replayed completion is a conflict and never double counts.
	err = s.svc.Complete(s.ctx, o.ID)
	s.True(core.IsConflict(err))
	cust, err = s.store.CustomerByID(s.ctx, o.CustomerID)
	s.Require().NoError(err)
	s.Equal(1, cust.TotalOrders)
}

func (s *OrderServiceSuite) TestCompleteCashRequiresCashConfirmation() {
	o := s.placeOrder(s.checkoutReq())
	_, err := s.svc.Accept(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.AssignCourier(s.ctx, o.ID, 3))
	s.Require().NoError(s.svc.MarkOnDelivery(s.ctx, o.ID))

	// The courier cannot close out a cash order while the money is
	// still uncollected.
	err = s.svc.Complete(s.ctx, o.ID)
	s.True(core.IsRule(err))

	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderOnDelivery, got.Status)

	// Confirming the cash settles the payment and completes the order.
	payments := payment.NewService(s.store, s.events)
	s.Require().NoError(payments.ConfirmCash(s.ctx, o.ID, 3))

	got, err = s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderCompleted, got.Status)

	p, err := s.store.PaymentByOrderID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, p.Status)
}

func (s *OrderServiceSuite) TestAdvanceRejectsIllegalEdges() {
	o := s.placeOrder(s.checkoutReq())

	// PLACED has no edge to COMPLETED.
	err := s.svc.Advance(s.ctx, o.ID, models.OrderCompleted)
	s.True(core.IsConflict(err))

	err = s.svc.Advance(s.ctx, o.ID, "MISPLACED")
	s.True(core.IsInvalid(err))

	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderPlaced, got.Status)
}

func (s *OrderServiceSuite) TestMarkOnDeliveryRequiresCourier() {
	o := s.placeOrder(s.checkoutReq())
	_, err := s.svc.Accept(s.ctx, o.ID)
	s.Require().NoError(err)

	err = s.svc.MarkOnDelivery(s.ctx, o.ID)
	s.True(core.IsRule(err))
}

func (s *OrderServiceSuite) TestMarkReadyPickupOnly() {
	req := s.checkoutReq()
	req.DeliveryMethod = models.Pickup
	req.Address = nil
	o := s.placeOrder(req)
	_, err := s.svc.Accept(s.ctx, o.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.MarkReady(s.ctx, o.ID))
	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderReadyForPickup, got.Status)

	// Home delivery orders cannot be marked ready.
	delivery := s.placeOrder(s.checkoutReq())
	_, err = s.svc.Accept(s.ctx, delivery.ID)
	s.Require().NoError(err)
	err = s.svc.MarkReady(s.ctx, delivery.ID)
	s.True(core.IsRule(err))

	// And pickup orders cannot go out for delivery.
	err = s.svc.MarkOnDelivery(s.ctx, o.ID)
	s.True(core.IsRule(err))
}

func (s *OrderServiceSuite) TestCancelFailsPendingPayment() {
	o := s.placeOrder(s.checkoutReq())

	s.Require().NoError(s.svc.Cancel(s.ctx, o.ID, "kitchen closed"))

	got, err := s.store.OrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderCancelled, got.Status)

	p, err := s.store.PaymentByOrderID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentFailed, p.Status)

	ev := s.events.last()
	s.Contains(ev.Message, "kitchen closed")
}

func (s *OrderServiceSuite) TestCancelTerminalConflict() {
	o := s.placeOrder(s.checkoutReq())
	s.Require().NoError(s.svc.Cancel(s.ctx, o.ID, ""))

	err := s.svc.Cancel(s.ctx, o.ID, "")
	s.True(core.IsConflict(err))
}

func (s *OrderServiceSuite) TestAssignCourierRules() {
	req := s.checkoutReq()
	req.DeliveryMethod = models.Pickup
	req.Address = nil
	pickup := s.placeOrder(req)

	err := s.svc.AssignCourier(s.ctx, pickup.ID, 3)
	s.True(core.IsRule(err))

	delivery := s.placeOrder(s.checkoutReq())
	s.Require().NoError(s.svc.Cancel(s.ctx, delivery.ID, ""))
	err = s.svc.AssignCourier(s.ctx, delivery.ID, 3)
	s.True(core.IsConflict(err))
}

func TestTransitionTable(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderPlaced, models.OrderPaymentPending, models.OrderProcessing,
		models.OrderOnDelivery, models.OrderReadyForPickup,
		models.OrderCompleted, models.OrderCancelled,
	}
	allowed := map[models.OrderStatus][]models.OrderStatus{
		models.OrderPlaced:         {models.OrderPaymentPending, models.OrderProcessing, models.OrderCancelled},
		models.OrderPaymentPending: {models.OrderProcessing, models.OrderCancelled},
		models.OrderProcessing:     {models.OrderOnDelivery, models.OrderReadyForPickup, models.OrderCompleted, models.OrderCancelled},
		models.OrderOnDelivery:     {models.OrderCompleted, models.OrderCancelled},
		models.OrderReadyForPickup: {models.OrderCompleted, models.OrderCancelled},
	}

	for _, from := range all {
		want := map[models.OrderStatus]bool{}
		for _, to := range allowed[from] {
			want[to] = true
		}
		for _, to := range all {
			if got := order.CanTransition(from, to); got != want[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want[to])
			}
		}
	}

	for _, terminal := range []models.OrderStatus{models.OrderCompleted, models.OrderCancelled} {
		if !terminal.Terminal() {
			t.Errorf("%s should be terminal", terminal)
		}
	}
}
