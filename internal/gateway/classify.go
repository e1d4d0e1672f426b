package gateway

import (
	"context"
	"log/slog"

	"limits/internal/core"
	applog "limits/internal/log"
)

// UnknownCode is the catch-all code for result shapes the classifier has no
// case for. Seeing it in responses means the classifier is stale against a
// new gateway behavior and needs a new branch.
const UnknownCode = "UNKNOWN"

// Classify maps a normalized processor result onto zero or more violations.
// An empty slice is the sole success signal. Every failure variant yields
// its own code/message pair; the unrecognized variant is additionally logged
// at error level because it is a server-side defect, not a user input
// problem.
func Classify(ctx context.Context, result ProcessorResult) []core.Violation {
	switch result.kind {
	case kindSuccess:
		return nil
	case kindValidationFailure:
		violations := make([]core.Violation, 0, len(result.validationErrors))
		for _, ve := range result.validationErrors {
			violations = append(violations, core.Violation{Code: ve.Code, Message: ve.Message})
		}
		return violations
	case kindSettlementFailure:
		return []core.Violation{{Code: result.code, Message: result.text}}
	case kindNetworkFailure:
		return []core.Violation{{Code: result.code, Message: result.text}}
	case kindGatewayRejection:
		return []core.Violation{{Code: result.reason, Message: ""}}
	default:
		slog.ErrorContext(ctx, "Unrecognized gateway transaction result",
			"transaction_id", result.transactionID,
			applog.FieldComponent, applog.ComponentClassifier)
		return []core.Violation{{Code: UnknownCode, Message: UnknownCode}}
	}
}
