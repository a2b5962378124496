// Package pricing derives the monetary breakdown of a cart: subtotal,
// delivery fee, promo discount and total. Amounts are integral rupiah.
package pricing

import (
	"context"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
)

type Line struct {
	MenuID    uint
	MenuName  string
	Quantity  int
	UnitPrice int64
	Note      *string
}

type Quote struct {
	Subtotal    int64
	DeliveryFee int64
	Discount    int64
	Total       int64
	PromoCode   string
}

// FeePolicy layers membership overrides on top of the store-wide base
// delivery fee: members have the fee waived, non-members pay the flat
// override when one is configured, the base otherwise.
type FeePolicy struct {
	Base      int64
	Member    int64
	NonMember int64
}

func FeesFromSettings(st *models.StoreSetting) FeePolicy {
	return FeePolicy{
		Base:      st.BaseDeliveryFee,
		Member:    st.MemberDeliveryFee,
		NonMember: st.NonMemberDeliveryFee,
	}
}

func (f FeePolicy) DeliveryFee(method models.DeliveryMethod, isMember bool) int64 {
	if method == models.Pickup {
		return 0
	}
	if isMember {
		return f.Member
	}
	if f.NonMember > 0 {
		return f.NonMember
	}
	return f.Base
}

type PromoChecker interface {
	Validate(ctx context.Context, code string, subtotal int64, customerID uint) (promo.Result, error)
}

type Calculator struct {
	fees   FeePolicy
	promos PromoChecker
}

func NewCalculator(fees FeePolicy, promos PromoChecker) *Calculator {
	return &Calculator{fees: fees, promos: promos}
}

// Quote prices a cart. It is deterministic for a given input and never
// mutates anything; promo validation inside it is read-only.
func (c *Calculator) Quote(ctx context.Context, lines []Line, method models.DeliveryMethod, isMember bool, promoCode string, customerID uint) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, core.Invalid("cart is empty")
	}

	var subtotal int64
	for _, l := range lines {
		if l.Quantity < 1 {
			return Quote{}, core.Invalid("item quantity must be at least 1")
		}
		if l.UnitPrice < 0 {
			return Quote{}, core.Invalid("item price must not be negative")
		}
		subtotal += l.UnitPrice * int64(l.Quantity)
	}

	q := Quote{
		Subtotal:    subtotal,
		DeliveryFee: c.fees.DeliveryFee(method, isMember),
	}

	if promoCode != "" {
		res, err := c.promos.Validate(ctx, promoCode, subtotal, customerID)
		if err != nil {
			return Quote{}, err
		}
		if !res.Valid {
			return Quote{}, core.Rule(res.Reason)
		}
		if res.FreeDelivery {
			q.DeliveryFee = 0
		} else {
			q.Discount = res.Discount
		}
		q.PromoCode = res.Promo.Code
	}

	if q.Discount > q.Subtotal+q.DeliveryFee {
		q.Discount = q.Subtotal + q.DeliveryFee
	}
	q.Total = q.Subtotal + q.DeliveryFee - q.Discount
	return q, nil
}
