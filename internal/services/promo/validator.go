// Package promo validates promo codes and computes their discount
// effect. Validation never mutates usage counters; redemption happens
// on the order-creation path through the repository's guarded
// increment.
package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
)

type Result struct {
	Valid        bool
	Reason       string
	Discount     int64
	FreeDelivery bool
	Promo        *models.Promo
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

type Validator struct {
	store repository.Store
	now   func() time.Time
}

func NewValidator(store repository.Store) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate runs the eligibility checks in order, first failure wins.
// customerID 0 means the caller is previewing without a known customer;
// the per-user cap is skipped then (checkout always has one).
func (v *Validator) Validate(ctx context.Context, code string, subtotal int64, customerID uint) (Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return invalid("promo code is required"), nil
	}

	p, err := v.store.PromoByCode(ctx, code)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid("promo code not found"), nil
		}
		return Result{}, err
	}

	if !p.IsActive {
		return invalid("promo is not active"), nil
	}

	now := v.now()
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return invalid(fmt.Sprintf("promo starts at %s", p.StartsAt.Format("2006-01-02"))), nil
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return invalid("promo has expired"), nil
	}

	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return invalid("promo usage limit reached"), nil
	}

	if p.PerUserLimit != nil && customerID != 0 {
		used, err := v.store.PromoUseCount(ctx, p.ID, customerID)
		if err != nil {
			return Result{}, err
		}
		if used >= *p.PerUserLimit {
			return invalid("promo usage limit for this customer reached"), nil
		}
	}

	if subtotal < p.MinPurchase {
		return invalid(fmt.Sprintf("minimum purchase of Rp %d not met", p.MinPurchase)), nil
	}

	res := Result{Valid: true, Promo: p}
	switch p.Type {
	case models.DiscountPercentage:
		// Rounded down so the customer never gets more than entitled.
		amount := decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(p.Value)).
			Div(decimal.NewFromInt(100)).
			Floor().IntPart()
		if p.MaxDiscount != nil && amount > *p.MaxDiscount {
			amount = *p.MaxDiscount
		}
		res.Discount = amount
	case models.DiscountFixed:
		res.Discount = p.Value
	case models.DiscountFreeDelivery:
		res.FreeDelivery = true
	default:
		return invalid("unknown discount type"), nil
	}
	return res, nil
}
