// Package sandbox is an in-memory payment gateway used for local development
// and tests. It mimics the sandbox behavior of a real gateway: specific
// amounts and nonces trigger specific failure shapes, so every classifier
// branch can be exercised without network access.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"limits/internal/core"
	"limits/internal/gateway"
)

// Nonces with sandbox-defined behavior. Any other non-empty nonce is
// accepted as a valid payment method.
const (
	NonceValid           = "fake-valid-nonce"
	NonceGatewayRejected = "fake-gateway-rejected-nonce"
	NonceInvalid         = "fake-invalid-nonce"
)

var (
	declineFloor    = decimal.NewFromInt(2000)
	declineCeil     = decimal.NewFromInt(3000)
	settlementMagic = decimal.RequireFromString("4001")
)

// Gateway is the sandbox implementation of the gateway ports. Safe for
// concurrent use.
type Gateway struct {
	mu           sync.Mutex
	customers    map[string]bool
	transactions map[string][]core.TransactionRecord

	// now is swappable so tests control window boundaries.
	now func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		customers:    make(map[string]bool),
		transactions: make(map[string][]core.TransactionRecord),
		now:          time.Now,
	}
}

// GenerateClientToken implements gateway.TokenGenerator.
func (g *Gateway) GenerateClientToken(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("generate client token: empty customer id")
	}
	return "sandbox-token-" + uuid.New().String(), nil
}

// EnsureCustomer implements gateway.CustomerEnsurer. Creating an existing
// customer changes nothing.
func (g *Gateway) EnsureCustomer(ctx context.Context, customerID, nonce string) error {
	if customerID == "" {
		return fmt.Errorf("ensure customer: empty customer id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[customerID] = true
	return nil
}

// Sale implements gateway.Charger. Outcomes follow sandbox conventions:
//
//   - NonceInvalid yields a validation error (91508).
//   - NonceGatewayRejected yields a gateway rejection ("fraud").
//   - Amounts in [2000, 3000) are declined by the network; the code is the
//     integer part of the amount.
//   - Amount 4001 is accepted but declined at settlement.
//   - Everything else succeeds and is recorded as submitted for settlement.
func (g *Gateway) Sale(ctx context.Context, customerID, nonce string, amount decimal.Decimal) (gateway.RawResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.customers[customerID] {
		return gateway.RawResult{}, fmt.Errorf("sale: unknown customer %s", customerID)
	}

	txnID := "sandbox-" + uuid.New().String()

	switch {
	case nonce == "" || nonce == NonceInvalid:
		return gateway.RawResult{
			TransactionID: txnID,
			ValidationErrors: []gateway.ValidationError{
				{Code: "91508", Message: "Cannot determine payment method."},
			},
		}, nil

	case nonce == NonceGatewayRejected:
		g.record(customerID, amount, core.StatusGatewayRejected)
		return gateway.RawResult{
			TransactionID:          txnID,
			GatewayRejectionReason: "fraud",
		}, nil

	case amount.Equal(settlementMagic):
		g.record(customerID, amount, core.StatusFailed)
		return gateway.RawResult{
			TransactionID:          txnID,
			SettlementResponseCode: "4001",
			SettlementResponseText: "Settlement Declined",
		}, nil

	case amount.GreaterThanOrEqual(declineFloor) && amount.LessThan(declineCeil):
		g.record(customerID, amount, core.StatusFailed)
		code := amount.Truncate(0).String()
		return gateway.RawResult{
			TransactionID:         txnID,
			ProcessorResponseCode: code,
			ProcessorResponseText: declineText(code),
		}, nil
	}

	g.record(customerID, amount, core.StatusSubmittedForSettlement)
	return gateway.RawResult{IsSuccess: true, TransactionID: txnID}, nil
}

// SearchTransactions implements gateway.HistorySearcher.
func (g *Gateway) SearchTransactions(ctx context.Context, customerID string, statuses []core.TransactionStatus) ([]core.TransactionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	wanted := make(map[core.TransactionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []core.TransactionRecord
	for _, r := range g.transactions[customerID] {
		if wanted[r.Status] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Seed records a historical transaction directly, bypassing Sale. Intended
// for tests and demo data.
func (g *Gateway) Seed(customerID string, amount decimal.Decimal, createdAt time.Time, status core.TransactionStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[customerID] = true
	g.transactions[customerID] = append(g.transactions[customerID], core.TransactionRecord{
		Amount:    amount,
		CreatedAt: createdAt,
		Status:    status,
	})
}

// SetClock overrides the timestamp source for recorded transactions.
func (g *Gateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

func (g *Gateway) record(customerID string, amount decimal.Decimal, status core.TransactionStatus) {
	g.transactions[customerID] = append(g.transactions[customerID], core.TransactionRecord{
		Amount:    amount,
		CreatedAt: g.now(),
		Status:    status,
	})
}

func declineText(code string) string {
	switch code {
	case "2000":
		return "Do Not Honor"
	case "2001":
		return "Insufficient Funds"
	case "2002":
		return "Limit Exceeded"
	case "2003":
		return "Cardholder's Activity Limit Exceeded"
	default:
		return "Processor Declined"
	}
}
