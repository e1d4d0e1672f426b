// Package gateway defines the outbound port to the payment gateway and the
// interpretation of its transaction results.
//
// A failed charge surfaces its cause in different fields depending on where
// in the processor pipeline it died. RawResult mirrors that loose shape as
// the adapter sees it on the wire; ResolveResult collapses it into a tagged
// ProcessorResult exactly once, so everything downstream works with an
// exhaustive variant instead of probing optional fields.
package gateway

import "fmt"

// ValidationError is a field-level failure reported by the gateway before a
// charge is attempted, e.g. a malformed payment method nonce.
type ValidationError struct {
	Code    string
	Message string
}

// RawResult is the loose, everything-optional shape a gateway transaction
// result arrives in. Only IsSuccess is always meaningful.
type RawResult struct {
	IsSuccess              bool
	ValidationErrors       []ValidationError
	SettlementResponseCode string
	SettlementResponseText string
	ProcessorResponseCode  string
	ProcessorResponseText  string
	GatewayRejectionReason string
	TransactionID          string
}

type resultKind int

// kindUnrecognized is deliberately the zero value: a ProcessorResult that
// was never constructed must classify as a defect, not as a success.
const (
	kindUnrecognized resultKind = iota
	kindSuccess
	kindValidationFailure
	kindSettlementFailure
	kindNetworkFailure
	kindGatewayRejection
)

func (k resultKind) String() string {
	switch k {
	case kindSuccess:
		return "success"
	case kindValidationFailure:
		return "validation_failure"
	case kindSettlementFailure:
		return "settlement_failure"
	case kindNetworkFailure:
		return "network_failure"
	case kindGatewayRejection:
		return "gateway_rejection"
	case kindUnrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("resultKind(%d)", int(k))
}

// ProcessorResult is the normalized outcome of a charge attempt. Construct
// one with the factory functions below or with ResolveResult; the zero value
// is an unrecognized result.
type ProcessorResult struct {
	kind             resultKind
	validationErrors []ValidationError
	code             string
	text             string
	reason           string
	transactionID    string
}

// Success marks a charge that went through.
func Success(transactionID string) ProcessorResult {
	return ProcessorResult{kind: kindSuccess, transactionID: transactionID}
}

// ValidationFailure marks a charge rejected by field-level validation.
func ValidationFailure(errs []ValidationError) ProcessorResult {
	return ProcessorResult{kind: kindValidationFailure, validationErrors: errs}
}

// SettlementFailure marks a charge that was submitted but rejected during
// settlement.
func SettlementFailure(code, text string) ProcessorResult {
	return ProcessorResult{kind: kindSettlementFailure, code: code, text: text}
}

// NetworkFailure marks a charge declined by the card network before
// settlement.
func NetworkFailure(code, text string) ProcessorResult {
	return ProcessorResult{kind: kindNetworkFailure, code: code, text: text}
}

// GatewayRejection marks a charge the gateway itself refused, e.g. a fraud
// filter, before it ever reached the processor.
func GatewayRejection(reason string) ProcessorResult {
	return ProcessorResult{kind: kindGatewayRejection, reason: reason}
}

// Unrecognized marks a result shape the resolver has no case for.
func Unrecognized(transactionID string) ProcessorResult {
	return ProcessorResult{kind: kindUnrecognized, transactionID: transactionID}
}

// IsSuccess reports whether the charge went through.
func (r ProcessorResult) IsSuccess() bool {
	return r.kind == kindSuccess
}

// TransactionID returns the gateway transaction id when one is known.
func (r ProcessorResult) TransactionID() string {
	return r.transactionID
}

// ResolveResult collapses a raw gateway result into its variant. The
// priority is fixed policy: success, then validation errors, then settlement
// rejection, then network decline, then gateway rejection, and finally
// unrecognized. Client-visible error codes depend on this order, so it must
// not be rearranged.
func ResolveResult(raw RawResult) ProcessorResult {
	switch {
	case raw.IsSuccess:
		return Success(raw.TransactionID)
	case len(raw.ValidationErrors) > 0:
		return ValidationFailure(raw.ValidationErrors)
	case raw.SettlementResponseCode != "":
		return SettlementFailure(raw.SettlementResponseCode, raw.SettlementResponseText)
	case raw.ProcessorResponseCode != "":
		return NetworkFailure(raw.ProcessorResponseCode, raw.ProcessorResponseText)
	case raw.GatewayRejectionReason != "":
		return GatewayRejection(raw.GatewayRejectionReason)
	default:
		return Unrecognized(raw.TransactionID)
	}
}
