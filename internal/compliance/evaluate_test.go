package compliance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"limits/internal/core"
)

func testCaps() Caps {
	return Caps{
		Day:     amt("500"),
		Month:   amt("800"),
		Year:    amt("2000"),
		Balance: amt("1000"),
	}
}

func TestEvaluateAllTiersSatisfied(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record("100", now.Add(-time.Hour)),
	}
	got := Evaluate(amt("50"), history, amt("10"), DefaultTiers(testCaps()), now)
	if len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestEvaluateDailyBreach(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record("450", now.Add(-time.Hour)),
	}
	got := Evaluate(amt("60"), history, amt("0"), DefaultTiers(testCaps()), now)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(got), got)
	}
	if got[0].Code != "compliance-day" {
		t.Errorf("code = %s, want compliance-day", got[0].Code)
	}
	if got[0].Message != "ComplianceError: 450 + 60 > 500 (day)" {
		t.Errorf("unexpected message: %s", got[0].Message)
	}
}

func TestEvaluateBalanceBreach(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := Evaluate(amt("0.02"), nil, amt("999.99"), DefaultTiers(testCaps()), now)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(got), got)
	}
	if got[0].Code != "compliance-balance" {
		t.Errorf("code = %s, want compliance-balance", got[0].Code)
	}
	// The message reports the card's actual balance, not a windowed total.
	if got[0].Message != "ComplianceError: 999.99 + 0.02 > 1000 (balance)" {
		t.Errorf("unexpected message: %s", got[0].Message)
	}
}

func TestEvaluateNeverShortCircuits(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record("490", now.Add(-time.Hour)),
	}
	// 60 breaches the daily cap (490+60 > 500) and the balance cap
	// (980+60 > 1000), but not month (490+60 <= 800) or year.
	got := Evaluate(amt("60"), history, amt("980"), DefaultTiers(testCaps()), now)
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(got), got)
	}
	if got[0].Code != "compliance-day" || got[1].Code != "compliance-balance" {
		t.Errorf("violations out of tier order: %v", got)
	}
}

func TestEvaluateExactCapAllowed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record("400", now.Add(-time.Hour)),
	}
	// 400 + 100 == 500: landing exactly on the cap is not a breach.
	got := Evaluate(amt("100"), history, amt("0"), DefaultTiers(testCaps()), now)
	if len(got) != 0 {
		t.Fatalf("expected no violations at exact cap, got %v", got)
	}
}

func TestEvaluateOldHistoryCountsTowardLongerWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		// Two days old: outside the daily window, inside month and year.
		record("790", now.Add(-48*time.Hour)),
	}
	got := Evaluate(amt("20"), history, amt("0"), DefaultTiers(testCaps()), now)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(got), got)
	}
	if got[0].Code != "compliance-month" {
		t.Errorf("code = %s, want compliance-month", got[0].Code)
	}
}

func TestEvaluateZeroAmountDoesNotPanic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := Evaluate(decimal.Zero, nil, amt("1000"), DefaultTiers(testCaps()), now)
	// Balance already at the cap; adding zero stays at the cap, no breach.
	if len(got) != 0 {
		t.Fatalf("expected no violations for zero amount, got %v", got)
	}
}

func TestEvaluateEveryTierBreached(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record("2000", now.Add(-time.Hour)),
	}
	got := Evaluate(amt("1"), history, amt("1000"), DefaultTiers(testCaps()), now)
	wantCodes := []string{"compliance-day", "compliance-month", "compliance-year", "compliance-balance"}
	if len(got) != len(wantCodes) {
		t.Fatalf("expected %d violations, got %d: %v", len(wantCodes), len(got), got)
	}
	for i, want := range wantCodes {
		if got[i].Code != want {
			t.Errorf("violation %d code = %s, want %s", i, got[i].Code, want)
		}
	}
}
