// Package payment reconciles payment state against the order
// lifecycle. Digital payments settle through proof upload and operator
// verification; cash settles in the field and is handed over later.
// The two paths never cross: applying one path's operation to the other
// method is rejected.
package payment

import (
	"context"
	"time"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/notify"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
)

type Service struct {
	store    repository.Store
	dispatch notify.Dispatcher
	now      func() time.Time
}

func NewService(store repository.Store, dispatch notify.Dispatcher) *Service {
	return &Service{store: store, dispatch: dispatch, now: time.Now}
}

// AttachProof records the uploaded transfer proof reference and moves
// the order into PAYMENT_PENDING. Re-uploading while still unverified
// replaces the proof.
func (s *Service) AttachProof(ctx context.Context, orderNumber, ref string) (*models.Payment, error) {
	o, err := s.store.OrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Payment == nil {
		return nil, core.NotFound("payment")
	}
	if !o.Payment.Method.Digital() {
		return nil, core.Rule("cash orders have no transfer proof")
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		ok, err := tx.AttachPaymentProof(ctx, o.Payment.ID, ref)
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("payment is already resolved")
		}
		if _, err := tx.AdvanceOrder(ctx, o.ID,
			[]models.OrderStatus{models.OrderPlaced}, models.OrderPaymentPending); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Payment.ProofImage = &ref
	s.emit(ctx, o, string(models.PaymentPending), notify.AudienceOperator, "transfer proof uploaded")
	return o.Payment, nil
}

// Verify resolves a digital payment. Approval requires an uploaded
// proof and flips the payment to VERIFIED and the order to PROCESSING;
// rejection fails the payment and cancels the order. Either way the
// PENDING precondition makes a second attempt a conflict.
func (s *Service) Verify(ctx context.Context, paymentID uint, approve bool, verifier, note string) error {
	p, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if !p.Method.Digital() {
		return core.Rule("cash payments are confirmed by the courier, not verified")
	}

	o, err := s.store.OrderByID(ctx, p.OrderID)
	if err != nil {
		return err
	}

	if approve {
		if p.ProofImage == nil {
			return core.Rule("cannot approve a payment without transfer proof")
		}
		err = s.store.Atomic(ctx, func(tx repository.Store) error {
			ok, err := tx.VerifyPayment(ctx, paymentID, verifier, note, s.now())
			if err != nil {
				return err
			}
			if !ok {
				return core.Conflict("payment is already verified or resolved")
			}
			ok, err = tx.AdvanceOrder(ctx, p.OrderID,
				[]models.OrderStatus{models.OrderPlaced, models.OrderPaymentPending}, models.OrderProcessing)
			if err != nil {
				return err
			}
			if !ok {
				return core.Conflict("order can no longer be moved to processing")
			}
			return nil
		})
		if err != nil {
			return err
		}
		o.Status = models.OrderProcessing
		s.emit(ctx, o, string(models.PaymentVerified), notify.AudienceCustomer, "payment verified, your order is being prepared")
		return nil
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		ok, err := tx.FailPayment(ctx, paymentID, verifier, note, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("payment is already verified or resolved")
		}
		ok, err = tx.AdvanceOrder(ctx, p.OrderID, nonTerminalOrder, models.OrderCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("order is already completed or cancelled")
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.Status = models.OrderCancelled
	msg := "payment rejected"
	if note != "" {
		msg += ": " + note
	}
	s.emit(ctx, o, string(models.PaymentFailed), notify.AudienceCustomer, msg)
	return nil
}

// ConfirmCash marks cash as collected by the courier. For cash orders
// collection is fulfilment, so the payment flips to PAID and the order
// to COMPLETED in the same transaction, and the customer's lifetime
// counter is bumped under that one compare-and-swap.
func (s *Service) ConfirmCash(ctx context.Context, orderID, courierID uint) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Payment == nil {
		return core.NotFound("payment")
	}
	if o.Payment.Method.Digital() {
		return core.Rule("digital payments are settled by verification, not cash confirmation")
	}
	switch o.Status {
	case models.OrderProcessing, models.OrderOnDelivery, models.OrderReadyForPickup:
	default:
		return core.Conflict("order is not out for fulfilment")
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		ok, err := tx.MarkPaidCash(ctx, o.Payment.ID, courierID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("cash already confirmed for this payment")
		}
		ok, err = tx.CompleteOrder(ctx, o.ID,
			[]models.OrderStatus{models.OrderProcessing, models.OrderOnDelivery, models.OrderReadyForPickup}, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return core.Conflict("order is not out for fulfilment")
		}
		return tx.AddCustomerOrder(ctx, o.CustomerID)
	})
	if err != nil {
		return err
	}

	o.Status = models.OrderCompleted
	s.emit(ctx, o, string(models.PaymentPaid), notify.AudienceCustomer, "payment received, order complete")
	return nil
}

// Handover books the collected cash into the till. Bookkeeping only:
// the order is untouched, and it can happen once per payment.
func (s *Service) Handover(ctx context.Context, paymentID, courierID uint) error {
	p, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Method.Digital() {
		return core.Rule("only cash payments are handed over")
	}

	ok, err := s.store.HandOverCash(ctx, paymentID, courierID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return core.Conflict("cash was not collected by this courier or is already handed over")
	}
	return nil
}

// Refund is an operator action for settled payments on orders that were
// cancelled after the money moved.
func (s *Service) Refund(ctx context.Context, paymentID uint, operator string) error {
	p, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	o, err := s.store.OrderByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if o.Status != models.OrderCancelled {
		return core.Rule("only payments on cancelled orders can be refunded")
	}

	ok, err := s.store.RefundPayment(ctx, paymentID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return core.Conflict("payment is not in a refundable state")
	}

	s.emit(ctx, o, string(models.PaymentRefunded), notify.AudienceCustomer, "your payment was refunded")
	return nil
}

func (s *Service) ByOrderNumber(ctx context.Context, orderNumber string) (*models.Payment, error) {
	o, err := s.store.OrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Payment == nil {
		return nil, core.NotFound("payment")
	}
	return o.Payment, nil
}

var nonTerminalOrder = []models.OrderStatus{
	models.OrderPlaced,
	models.OrderPaymentPending,
	models.OrderProcessing,
	models.OrderOnDelivery,
	models.OrderReadyForPickup,
}

func (s *Service) emit(ctx context.Context, o *models.Order, paymentStatus string, aud notify.Audience, msg string) {
	s.dispatch.Dispatch(ctx, notify.Event{
		Event:         notify.EventPaymentUpdate,
		Audience:      aud,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		OrderStatus:   string(o.Status),
		PaymentStatus: paymentStatus,
		Message:       msg,
		OccurredAt:    s.now(),
	})
}
