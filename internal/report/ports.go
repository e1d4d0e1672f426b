// Package report defines the outbound port for the compliance load report.
package report

import (
	"context"
	"time"
)

// Entry is one row of the compliance report: a single audited load attempt.
type Entry struct {
	OccurredAt     time.Time
	CardID         int64
	CustomerID     string
	Amount         string
	Outcome        string
	ViolationCodes []string
	TransactionID  string
}

// Writer appends load attempts to an external report.
type Writer interface {
	Append(ctx context.Context, e Entry) (rowRef string, err error)
}
