// Package order owns the order lifecycle: checkout and the status
// state machine advanced by operator and courier actions. Every status
// flip goes through a conditional update so concurrent actors cannot
// both win.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/notify"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/pricing"
)

type CartItem struct {
	MenuID   uint
	Quantity int
	Note     *string
}

type CheckoutRequest struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail *string

	DeliveryMethod models.DeliveryMethod
	Address        *string
	Notes          *string
	PaymentMethod  models.PaymentMethod
	PromoCode      string
	Items          []CartItem
}

// CheckoutResult is the storefront-facing shape: order identity and the
// amount due, nothing internal.
type CheckoutResult struct {
	OrderID     uint               `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	Total       int64              `json:"total"`
}

type Service struct {
	store    repository.Store
	calc     *pricing.Calculator
	dispatch notify.Dispatcher
	now      func() time.Time
}

func NewService(store repository.Store, calc *pricing.Calculator, dispatch notify.Dispatcher) *Service {
	return &Service{
		store:    store,
		calc:     calc,
		dispatch: dispatch,
		now:      time.Now,
	}
}

func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" {
		return CheckoutResult{}, core.Invalid("customer name and phone are required")
	}
	switch req.DeliveryMethod {
	case models.HomeDelivery:
		if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
			return CheckoutResult{}, core.Invalid("delivery address is required for home delivery")
		}
	case models.Pickup:
	default:
		return CheckoutResult{}, core.Invalid("unknown delivery method")
	}
	if !req.PaymentMethod.Known() {
		return CheckoutResult{}, core.Invalid("unknown payment method")
	}
	if len(req.Items) == 0 {
		return CheckoutResult{}, core.Invalid("cart is empty")
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	customer, err := s.upsertCustomer(ctx, req)
	if err != nil {
		return CheckoutResult{}, err
	}

	promoCode := strings.ToUpper(strings.TrimSpace(req.PromoCode))
	quote, err := s.calc.Quote(ctx, lines, req.DeliveryMethod, customer.IsMember, promoCode, customer.ID)
	if err != nil {
		return CheckoutResult{}, err
	}

	o := &models.Order{
		CustomerID:     customer.ID,
		DeliveryMethod: req.DeliveryMethod,
		Address:        req.Address,
		Notes:          req.Notes,
		IsMember:       customer.IsMember,
		Subtotal:       quote.Subtotal,
		DeliveryFee:    quote.DeliveryFee,
		Discount:       quote.Discount,
		Total:          quote.Total,
		Status:         models.OrderPlaced,
		Payment: &models.Payment{
			Amount: quote.Total,
			Method: req.PaymentMethod,
			Status: models.PaymentPending,
		},
	}
	if promoCode != "" {
		o.PromoCode = &promoCode
	}
	for _, l := range lines {
		o.Items = append(o.Items, models.OrderItem{
			MenuID:    l.MenuID,
			MenuName:  l.MenuName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.UnitPrice * int64(l.Quantity),
			Note:      l.Note,
		})
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		// The guarded increment runs before the insert so a lost race
		// on the last promo slot leaves nothing behind.
		var promoID uint
		if promoCode != "" {
			p, err := tx.PromoByCode(ctx, promoCode)
			if err != nil {
				return err
			}
			ok, err := tx.RedeemPromo(ctx, p.ID)
			if err != nil {
				return err
			}
			if !ok {
				// The validator saw headroom but a concurrent
				// checkout took the last slot.
				return core.Rule("promo usage limit reached")
			}
			promoID = p.ID
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		if promoCode != "" {
			if err := tx.RecordPromoUse(ctx, &models.PromoUsage{
				PromoID:    promoID,
				CustomerID: customer.ID,
				OrderID:    o.ID,
				Discount:   quote.Discount,
				UsedAt:     s.now(),
			}); err != nil {
				return err
			}
		}
		for _, l := range lines {
			if err := tx.AddMenuOrders(ctx, l.MenuID, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	s.dispatch.Dispatch(ctx, notify.Event{
		Event:       notify.EventOrderCreated,
		Audience:    notify.AudienceOperator,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		OrderStatus: string(o.Status),
		Total:       o.Total,
		Message:     fmt.Sprintf("new order from %s", customer.Name),
		OccurredAt:  s.now(),
	})

	return CheckoutResult{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status,
		Total:       o.Total,
	}, nil
}

func (s *Service) resolveLines(ctx context.Context, items []CartItem) ([]pricing.Line, error) {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuID)
	}
	menus, err := s.store.MenusByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		m, ok := byID[it.MenuID]
		if !ok || !m.IsActive {
			return nil, core.Invalid(fmt.Sprintf("menu %d is not available", it.MenuID))
		}
		lines = append(lines, pricing.Line{
			MenuID:    m.ID,
			MenuName:  m.Name,
			Quantity:  it.Quantity,
			UnitPrice: m.Price,
			Note:      it.Note,
		})
	}
	return lines, nil
}

// upsertCustomer finds a returning customer by phone and refreshes only
// name and email, or creates a new record. Membership and counters are
// never touched here.
func (s *Service) upsertCustomer(ctx context.Context, req CheckoutRequest) (*models.Customer, error) {
	existing, err := s.store.CustomerByPhone(ctx, req.CustomerPhone)
	if err == nil {
		if err := s.store.UpdateCustomerContact(ctx, existing.ID, req.CustomerName, req.CustomerEmail); err != nil {
			return nil, err
		}
		existing.Name = req.CustomerName
		return existing, nil
	}
	if !core.IsNotFound(err) {
		return nil, err
	}

	c := &models.Customer{
		Name:  req.CustomerName,
		Phone: req.CustomerPhone,
		Email: req.CustomerEmail,
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Accept moves a cash order into the kitchen. Digital orders reach
// PROCESSING through payment verification instead.
func (s *Service) Accept(ctx context.Context, orderID uint) (*models.Order, error) {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Payment != nil && o.Payment.Method.Digital() {
		return nil, core.Rule("digital orders are accepted through payment verification")
	}

	ok, err := s.store.AdvanceOrder(ctx, orderID, []models.OrderStatus{models.OrderPlaced}, models.OrderProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.Conflict("order cannot be accepted in its current state")
	}

	o.Status = models.OrderProcessing
	s.emitStatus(ctx, o, "your order is being prepared")
	return o, nil
}

func (s *Service) AssignCourier(ctx context.Context, orderID, courierID uint) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DeliveryMethod != models.HomeDelivery {
		return core.Rule("courier assignment requires a home delivery order")
	}

	ok, err := s.store.SetOrderCourier(ctx, orderID, courierID)
	if err != nil {
		return err
	}
	if !ok {
		return core.Conflict("order is already completed or cancelled")
	}
	return nil
}

func (s *Service) MarkOnDelivery(ctx context.Context, orderID uint) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DeliveryMethod != models.HomeDelivery {
		return core.Rule("only home delivery orders can be dispatched")
	}
	if o.CourierID == nil {
		return core.Rule("a courier must be assigned before dispatch")
	}

	ok, err := s.store.AdvanceOrder(ctx, orderID, []models.OrderStatus{models.OrderProcessing}, models.OrderOnDelivery)
	if err != nil {
		return err
	}
	if !ok {
		return core.Conflict("order is not in processing")
	}

	o.Status = models.OrderOnDelivery
	s.emitStatus(ctx, o, "your order is on the way")
	return nil
}

func (s *Service) MarkReady(ctx context.Context, orderID uint) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DeliveryMethod != models.Pickup {
		return core.Rule("only pickup orders can be marked ready")
	}

	ok, err := s.store.AdvanceOrder(ctx, orderID, []models.OrderStatus{models.OrderProcessing}, models.OrderReadyForPickup)
	if err != nil {
		return err
	}
	if !ok {
		return core.Conflict("order is not in processing")
	}

	o.Status = models.OrderReadyForPickup
	s.emitStatus(ctx, o, "your order is ready for pickup")
	return nil
}

// Complete closes out a fulfilled order. The customer's lifetime
// counter is incremented under the same compare-and-swap that wins the
// status flip, so a retried completion is a conflict, not a double
// count. Cash orders with money still outstanding must go through
// cash confirmation instead, which settles the payment and completes
// the order in one step.
func (s *Service) Complete(ctx context.Context, orderID uint) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Payment != nil && !o.Payment.Method.Digital() && o.Payment.Status == models.PaymentPending {
		return core.Rule("cash has not been collected, confirm cash to complete this order")
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		ok, err := tx.CompleteOrder(ctx, orderID,
			[]models.OrderStatus{models.OrderOnDelivery, models.OrderReadyForPickup}, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("order cannot be completed in its current state")
		}
		return tx.AddCustomerOrder(ctx, o.CustomerID)
	})
	if err != nil {
		return err
	}

	o.Status = models.OrderCompleted
	s.emitStatus(ctx, o, "your order is complete, thank you")
	return nil
}

func (s *Service) Cancel(ctx context.Context, orderID uint, reason string) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		ok, err := tx.AdvanceOrder(ctx, orderID, nonTerminal, models.OrderCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("order is already completed or cancelled")
		}
		if o.Payment != nil && o.Payment.Status == models.PaymentPending {
			if _, err := tx.FailPayment(ctx, o.Payment.ID, "", reason, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.Status = models.OrderCancelled
	msg := "your order was cancelled"
	if reason != "" {
		msg = "your order was cancelled: " + reason
	}
	s.emitStatus(ctx, o, msg)
	return nil
}

// Advance routes a generic target-status request from the dashboard to
// the matching operation. The transition table rejects illegal edges
// up front; each operation then re-checks its own preconditions under
// compare-and-swap.
func (s *Service) Advance(ctx context.Context, orderID uint, target models.OrderStatus) error {
	switch target {
	case models.OrderProcessing, models.OrderOnDelivery, models.OrderReadyForPickup,
		models.OrderCompleted, models.OrderCancelled:
	default:
		return core.Invalid("unknown target status")
	}

	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, target) {
		return core.Conflict(fmt.Sprintf("order cannot move from %s to %s", o.Status, target))
	}

	switch target {
	case models.OrderProcessing:
		_, err := s.Accept(ctx, orderID)
		return err
	case models.OrderOnDelivery:
		return s.MarkOnDelivery(ctx, orderID)
	case models.OrderReadyForPickup:
		return s.MarkReady(ctx, orderID)
	case models.OrderCompleted:
		return s.Complete(ctx, orderID)
	default:
		return s.Cancel(ctx, orderID, "")
	}
}

func (s *Service) Track(ctx context.Context, number string) (*models.Order, error) {
	return s.store.OrderByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, f repository.OrderFilter) ([]models.Order, int64, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *Service) emitStatus(ctx context.Context, o *models.Order, msg string) {
	s.dispatch.Dispatch(ctx, notify.Event{
		Event:       notify.EventOrderStatus,
		Audience:    notify.AudienceCustomer,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		OrderStatus: string(o.Status),
		Message:     msg,
		OccurredAt:  s.now(),
	})
}
