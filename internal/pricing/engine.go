package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoItems is returned when an order is priced with an empty item list.
	ErrNoItems = errors.New("order has no items")
	// ErrCouponNotFound indicates the code does not resolve to any active coupon.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrLookupUnavailable indicates the coupon store could not be reached.
	ErrLookupUnavailable = errors.New("coupon lookup unavailable")
)

// ReasonMinOrder is the human-readable reason attached to an ineligible preview.
const ReasonMinOrder = "Minimum order not met"

// DeliveryMode selects how the order reaches the customer.
type DeliveryMode string

const (
	ModeDelivery DeliveryMode = "delivery"
	ModeTakeaway DeliveryMode = "takeaway"
)

// CouponKind distinguishes flat currency deductions from percentage discounts.
type CouponKind string

const (
	KindFlat    CouponKind = "flat"
	KindPercent CouponKind = "percent"
)

// LineItem is a single cart line. TotalPrice is caller-supplied and trusted for
// subtotal aggregation; boundary validation is the transport layer's job.
type LineItem struct {
	ItemID     string
	Title      string
	Variant    string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	ImageURL   string
}

// Coupon is a named discount rule. Value is currency units for flat coupons and
// a 0-100 percentage for percent coupons. Percent values above 100 are not
// clamped here; only the final total is floored at zero.
type Coupon struct {
	Code        string
	Description string
	Kind        CouponKind
	Value       decimal.Decimal
	MinOrder    decimal.Decimal
	Active      bool
}

// Quote is a fully resolved order total.
type Quote struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Preview is the outcome of applying a coupon against a bare subtotal.
type Preview struct {
	Applied  bool
	Discount decimal.Decimal
	Code     string
	Detail   string
	Reason   string
}

// CouponLookup resolves a coupon code to an active coupon record. The match is
// case-insensitive and implementations must only return active coupons. A false
// found flag means "no such coupon"; an error means the store itself failed.
type CouponLookup interface {
	FindActiveCouponByCode(ctx context.Context, code string) (Coupon, bool, error)
}

// FeeSchedule maps a delivery mode to its surcharge.
type FeeSchedule map[DeliveryMode]decimal.Decimal

// DefaultFeeSchedule returns the standing policy: flat 20 for delivery, free takeaway.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		ModeDelivery: decimal.NewFromInt(20),
		ModeTakeaway: decimal.Zero,
	}
}

// Fee returns the surcharge for the given mode, zero for unknown modes.
func (f FeeSchedule) Fee(mode DeliveryMode) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return f[mode]
}

// Engine computes order totals and coupon discounts. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	Coupons CouponLookup
	Fees    FeeSchedule
}

// NewEngine constructs an engine with the default fee schedule when none is given.
func NewEngine(lookup CouponLookup, fees FeeSchedule) *Engine {
	if fees == nil {
		fees = DefaultFeeSchedule()
	}
	return &Engine{Coupons: lookup, Fees: fees}
}

// PriceOrder resolves subtotal, discount, delivery fee and total for a cart.
// couponCode may be empty. An unknown or ineligible coupon yields a zero
// discount without error; only an unreachable lookup store is surfaced.
func (e *Engine) PriceOrder(ctx context.Context, items []LineItem, mode DeliveryMode, couponCode string) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, ErrNoItems
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	fee := e.Fees.Fee(mode)

	discount := decimal.Zero
	if code := canonicalCode(couponCode); code != "" {
		c, found, err := e.lookup(ctx, code)
		if err != nil {
			return Quote{}, err
		}
		if found && subtotal.GreaterThanOrEqual(c.MinOrder) {
			discount = c.discountFor(subtotal)
		}
	}
	discount = discount.Round(2)

	total := subtotal.Sub(discount).Add(fee)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Quote{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       total.Round(2),
	}, nil
}

// ApplyCouponPreview evaluates a coupon against a caller-supplied subtotal
// without touching delivery fees. An unresolvable code is an error; a resolved
// but ineligible coupon is a normal non-applied result with a reason.
func (e *Engine) ApplyCouponPreview(ctx context.Context, code string, subtotal decimal.Decimal) (Preview, error) {
	c, found, err := e.lookup(ctx, canonicalCode(code))
	if err != nil {
		return Preview{}, err
	}
	if !found {
		return Preview{}, ErrCouponNotFound
	}
	if subtotal.LessThan(c.MinOrder) {
		return Preview{Applied: false, Discount: decimal.Zero, Reason: ReasonMinOrder}, nil
	}
	return Preview{
		Applied:  true,
		Discount: c.discountFor(subtotal).Round(2),
		Code:     c.Code,
		Detail:   c.Description,
	}, nil
}

func (e *Engine) lookup(ctx context.Context, code string) (Coupon, bool, error) {
	if e.Coupons == nil {
		return Coupon{}, false, fmt.Errorf("coupon lookup not configured: %w", ErrLookupUnavailable)
	}
	c, found, err := e.Coupons.FindActiveCouponByCode(ctx, code)
	if err != nil {
		return Coupon{}, false, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	if found && !c.Active {
		return Coupon{}, false, nil
	}
	return c, found, nil
}

func (c Coupon) discountFor(subtotal decimal.Decimal) decimal.Decimal {
	if c.Kind == KindPercent {
		return subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
	}
	return c.Value
}

func canonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
