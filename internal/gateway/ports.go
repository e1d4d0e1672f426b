package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"limits/internal/core"
)

// Ports for the outbound payment-gateway adapter.
type (
	// TokenGenerator issues a client token the frontend uses to tokenize a
	// payment method.
	TokenGenerator interface {
		GenerateClientToken(ctx context.Context, customerID string) (string, error)
	}

	// CustomerEnsurer creates the gateway-side customer. Idempotent: if the
	// customer already exists nothing changes. A non-empty nonce attaches
	// the payment method to the customer.
	CustomerEnsurer interface {
		EnsureCustomer(ctx context.Context, customerID, nonce string) error
	}

	// Charger executes a sale, submitted for settlement, and returns the
	// raw result for the adapter boundary to resolve.
	Charger interface {
		Sale(ctx context.Context, customerID, nonce string, amount decimal.Decimal) (RawResult, error)
	}

	// HistorySearcher returns a customer's transactions restricted to the
	// given lifecycle statuses. The result is already scoped to the
	// customer; the compliance engine never filters by identity.
	HistorySearcher interface {
		SearchTransactions(ctx context.Context, customerID string, statuses []core.TransactionStatus) ([]core.TransactionRecord, error)
	}

	// Gateway bundles the full adapter surface.
	Gateway interface {
		TokenGenerator
		CustomerEnsurer
		Charger
		HistorySearcher
	}
)
