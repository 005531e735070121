package subscription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/layer-3/polkauth/ports"
	"github.com/shopspring/decimal"
)

// DefaultPeriod is the access bought by paying the price once
const DefaultPeriod = 30 * 24 * time.Hour

// MaxValidUntil caps how far into the future a subscription can reach
var MaxValidUntil = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

var maxDuration = decimal.NewFromInt(math.MaxInt64)

// ErrInvalidPrice is returned when the price per period is not positive
var ErrInvalidPrice = errors.New("subscription price must be positive")

// Calculator derives subscription expiry from the transfers an identity made.
// Each transfer buys amount/price periods, starting when it was made or when
// the previously bought time runs out, whichever is later.
type Calculator struct {
	source ports.TransferSource
	price  decimal.Decimal
	period time.Duration
}

// Option configures a Calculator
type Option func(*Calculator)

// WithPeriod overrides DefaultPeriod
func WithPeriod(period time.Duration) Option {
	return func(c *Calculator) { c.period = period }
}

// NewCalculator creates a Calculator charging price per period
func NewCalculator(source ports.TransferSource, price decimal.Decimal, opts ...Option) (*Calculator, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	c := &Calculator{
		source: source,
		price:  price,
		period: DefaultPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.period <= 0 {
		return nil, fmt.Errorf("subscription period must be positive, got %s", c.period)
	}
	return c, nil
}

var _ ports.SubscriptionLookup = (*Calculator)(nil)

// LookupSubscription returns the end of the paid access window, or nil when
// identity never paid.
func (c *Calculator) LookupSubscription(ctx context.Context, identity string) (*time.Time, error) {
	transfers, err := c.source.Transfers(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return c.ValidUntil(transfers), nil
}

// ValidUntil folds transfers into an expiry time
func (c *Calculator) ValidUntil(transfers []ports.Transfer) *time.Time {
	sorted := make([]ports.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if t.Amount.IsPositive() {
			sorted = append(sorted, t)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	period := decimal.NewFromInt(int64(c.period))
	var validUntil time.Time
	for _, t := range sorted {
		start := t.At
		if validUntil.After(start) {
			start = validUntil
		}
		validUntil = extend(start, period.Mul(t.Amount).Div(c.price))
	}
	return &validUntil
}

// extend adds bought nanoseconds to start, saturating at the longest
// time.Duration per transfer and at MaxValidUntil overall
func extend(start time.Time, bought decimal.Decimal) time.Time {
	d := time.Duration(math.MaxInt64)
	if bought.LessThan(maxDuration) {
		d = time.Duration(bought.IntPart())
	}
	end := start.Add(d)
	if end.After(MaxValidUntil) || end.Before(start) {
		return MaxValidUntil
	}
	return end
}
