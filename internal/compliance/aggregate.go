// Package compliance implements the limit engine that gates card loads:
// trailing-window spend aggregation, multi-tier cap evaluation and the
// wire-level rendering of violations.
//
// Everything in this package is a pure function of its inputs. There is no
// internal state, no locking and no I/O, so any number of requests can
// evaluate limits concurrently.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"limits/internal/core"
)

// SumWithinWindow returns the exact sum of record amounts created within the
// trailing window ending at now. The lower bound is inclusive: a record
// created exactly at now-window still counts. An empty selection sums to
// zero, never an error.
//
// The history source is expected to pre-filter by lifecycle status
// (core.CountableStatuses); this function only filters by time.
func SumWithinWindow(records []core.TransactionRecord, window time.Duration, now time.Time) decimal.Decimal {
	cutoff := now.Add(-window)
	total := decimal.Zero
	for _, r := range records {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}
