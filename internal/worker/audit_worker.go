// Package worker consumes the load audit stream into durable storage and the
// external compliance report.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"limits/internal/amqp"
	applog "limits/internal/log"
	"limits/internal/report"
	"limits/internal/storage"
)

// EventStore is the slice of the repository the worker writes to.
type EventStore interface {
	InsertLoadEvent(ctx context.Context, e storage.LoadEvent) (int64, error)
}

// AuditWorker persists audit messages and mirrors them to the report.
type AuditWorker struct {
	storage EventStore
	report  report.Writer
}

func NewAuditWorker(storage EventStore, reportWriter report.Writer) *AuditWorker {
	return &AuditWorker{
		storage: storage,
		report:  reportWriter,
	}
}

// HandleAuditMessage processes a single load audit message from AMQP.
// Returning an error requeues the message, so only the durable insert may
// fail the handler; report export is best effort on top of it.
func (w *AuditWorker) HandleAuditMessage(ctx context.Context, msg *amqp.LoadAuditMessage) error {
	slog.InfoContext(ctx, "Processing audit message",
		"card_id", msg.CardID,
		"outcome", msg.Outcome,
		applog.FieldComponent, applog.ComponentAudit)

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("validate audit message: %w", err)
	}

	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		return fmt.Errorf("parse audit amount %q: %w", msg.Amount, err)
	}

	codes := make([]string, 0, len(msg.Violations))
	for _, v := range msg.Violations {
		codes = append(codes, v.Code)
	}

	event := storage.LoadEvent{
		CardID:         msg.CardID,
		CustomerID:     msg.CustomerID,
		Amount:         amount,
		Outcome:        msg.Outcome,
		ViolationCodes: codes,
		TransactionID:  msg.TransactionID,
		OccurredAt:     msg.OccurredAt,
	}
	eventID, err := w.storage.InsertLoadEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("insert load event: %w", err)
	}

	w.exportToReport(ctx, eventID, msg, codes)
	return nil
}

// exportToReport mirrors the event to the external report. A failed export is
// logged and dropped: the event is already stored, and requeueing the message
// would insert it twice.
func (w *AuditWorker) exportToReport(ctx context.Context, eventID int64, msg *amqp.LoadAuditMessage, codes []string) {
	if w.report == nil {
		return
	}

	ref, err := w.report.Append(ctx, report.Entry{
		OccurredAt:     msg.OccurredAt,
		CardID:         msg.CardID,
		CustomerID:     msg.CustomerID,
		Amount:         msg.Amount,
		Outcome:        msg.Outcome,
		ViolationCodes: codes,
		TransactionID:  msg.TransactionID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export load event to report",
			"event_id", eventID,
			"card_id", msg.CardID,
			"error", err,
			applog.FieldComponent, applog.ComponentAudit)
		return
	}

	slog.InfoContext(ctx, "Exported load event to report",
		"event_id", eventID,
		"report_ref", ref,
		applog.FieldComponent, applog.ComponentAudit)
}
