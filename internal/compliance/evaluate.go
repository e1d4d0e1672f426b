package compliance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"limits/internal/core"
)

// LimitTier is one named cap. A zero Window marks the balance tier, which
// compares against the card's current balance instead of aggregated history.
type LimitTier struct {
	Name   string
	Cap    decimal.Decimal
	Window time.Duration
}

// IsBalance reports whether this tier caps the instantaneous balance rather
// than spend within a trailing window.
func (t LimitTier) IsBalance() bool {
	return t.Window == 0
}

// Caps carries the four configured limits. Values come from the caller's
// configuration; the engine holds no ambient limit state.
type Caps struct {
	Day     decimal.Decimal
	Month   decimal.Decimal
	Year    decimal.Decimal
	Balance decimal.Decimal
}

// DefaultTiers builds the conventional tier ordering: day, month, year,
// balance. Evaluation output preserves this order, so clients can rely on a
// deterministic display sequence.
func DefaultTiers(caps Caps) []LimitTier {
	return []LimitTier{
		{Name: "day", Cap: caps.Day, Window: 24 * time.Hour},
		{Name: "month", Cap: caps.Month, Window: 30 * 24 * time.Hour},
		{Name: "year", Cap: caps.Year, Window: 365 * 24 * time.Hour},
		{Name: "balance", Cap: caps.Balance},
	}
}

// Evaluate checks a proposed load amount against every tier and returns one
// Violation per breached cap, in tier order. All tiers are always evaluated;
// a load that breaks the daily cap and the balance cap reports both reasons
// in a single response.
//
// Windowed tiers compare the aggregated trailing-window spend plus the
// proposed amount against the cap. The balance tier compares the card's
// current balance plus the proposed amount. A tier is breached only when the
// cap is strictly exceeded; landing exactly on the cap is allowed.
func Evaluate(amount decimal.Decimal, history []core.TransactionRecord, balance decimal.Decimal, tiers []LimitTier, now time.Time) []core.Violation {
	var violations []core.Violation
	for _, tier := range tiers {
		total := balance
		if !tier.IsBalance() {
			total = SumWithinWindow(history, tier.Window, now)
		}
		if total.Add(amount).GreaterThan(tier.Cap) {
			violations = append(violations, newComplianceViolation(tier, total, amount))
		}
	}
	return violations
}

// newComplianceViolation renders a breached tier. The balance tier reports
// the card's actual balance in the message, not a leftover windowed total.
func newComplianceViolation(tier LimitTier, total, amount decimal.Decimal) core.Violation {
	return core.Violation{
		Code: "compliance-" + tier.Name,
		Message: fmt.Sprintf("ComplianceError: %s + %s > %s (%s)",
			total, amount, tier.Cap, tier.Name),
	}
}
