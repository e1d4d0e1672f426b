// Package services orchestrates the card-load flow: limit evaluation against
// fresh gateway history, charge submission, outcome classification, balance
// update and audit publication.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"limits/internal/amqp"
	"limits/internal/cache"
	"limits/internal/compliance"
	"limits/internal/core"
	"limits/internal/gateway"
	applog "limits/internal/log"
)

// CardStore is the slice of the repository the load flow needs.
type CardStore interface {
	GetCard(ctx context.Context, userID, cardID int64) (core.Card, error)
	UpdateCardBalance(ctx context.Context, cardID int64, balance decimal.Decimal, expectedVersion int64) error
}

// AuditPublisher emits one message per attempted load.
type AuditPublisher interface {
	PublishLoadAudit(ctx context.Context, msg *amqp.LoadAuditMessage) error
}

// LoadRequest is one attempt to put money on a card. Amount must already be
// validated positive by the transport layer.
type LoadRequest struct {
	User   core.User
	CardID int64
	Nonce  string
	Amount decimal.Decimal
}

// LoadResult reports the outcome of a load attempt. An empty Violations
// slice means the money is on the card.
type LoadResult struct {
	Violations    []core.Violation
	TransactionID string
}

// Approved reports whether the load went through.
func (r LoadResult) Approved() bool {
	return len(r.Violations) == 0
}

// LoadService runs the compliance-gated load flow. The per-card lock
// serializes the check-then-act sequence (evaluate, charge, update balance)
// so two concurrent loads cannot both pass the limit check against the same
// stale snapshot on one card.
type LoadService struct {
	cards     CardStore
	gw        gateway.Gateway
	publisher AuditPublisher
	tiers     []compliance.LimitTier

	historyCache *cache.LRUCache[[]core.TransactionRecord]
	flight       singleflight.Group

	mu        sync.Mutex
	cardLocks map[int64]*sync.Mutex

	now func() time.Time
}

func NewLoadService(cards CardStore, gw gateway.Gateway, publisher AuditPublisher, tiers []compliance.LimitTier) *LoadService {
	return &LoadService{
		cards:     cards,
		gw:        gw,
		publisher: publisher,
		tiers:     tiers,
		cardLocks: make(map[int64]*sync.Mutex),
		now:       time.Now,
	}
}

// WithHistoryCache enables the short-TTL history cache. The cache entry for
// a customer is dropped the moment one of their loads succeeds, so the next
// check re-queries the gateway.
func (s *LoadService) WithHistoryCache(c *cache.LRUCache[[]core.TransactionRecord]) *LoadService {
	s.historyCache = c
	return s
}

// WithClock overrides the evaluation timestamp source for tests.
func (s *LoadService) WithClock(now func() time.Time) *LoadService {
	s.now = now
	return s
}

// Token ensures the gateway customer exists and issues a client token for
// the frontend to tokenize a payment method against.
func (s *LoadService) Token(ctx context.Context, user core.User) (string, error) {
	if err := s.gw.EnsureCustomer(ctx, user.CustomerID, ""); err != nil {
		return "", fmt.Errorf("ensure customer: %w", err)
	}
	token, err := s.gw.GenerateClientToken(ctx, user.CustomerID)
	if err != nil {
		return "", fmt.Errorf("generate client token: %w", err)
	}
	return token, nil
}

// Load runs one compliance-gated load attempt. Violations are a business
// outcome and come back in the result, never as an error; the error return
// is reserved for infrastructure failures.
func (s *LoadService) Load(ctx context.Context, req LoadRequest) (LoadResult, error) {
	if !req.Amount.IsPositive() {
		return LoadResult{}, fmt.Errorf("load amount %s: %w", req.Amount, core.ErrInvalidAmount)
	}
	if req.Nonce == "" {
		return LoadResult{}, core.ErrEmptyNonce
	}

	unlock := s.lockCard(req.CardID)
	defer unlock()

	card, err := s.cards.GetCard(ctx, req.User.ID, req.CardID)
	if err != nil {
		return LoadResult{}, fmt.Errorf("get card: %w", err)
	}

	// Customer setup and history fetch are independent gateway calls.
	var history []core.TransactionRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.gw.EnsureCustomer(gctx, req.User.CustomerID, req.Nonce); err != nil {
			return fmt.Errorf("ensure customer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = s.fetchHistory(gctx, req.User.CustomerID)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return LoadResult{}, err
	}

	violations := compliance.Evaluate(req.Amount, history, card.Balance, s.tiers, s.now())
	if len(violations) > 0 {
		slog.InfoContext(ctx, "Load rejected by compliance limits",
			"card_id", card.ID,
			"amount", req.Amount.String(),
			"violations", len(violations),
			applog.FieldComponent, applog.ComponentLoadService)
		s.audit(ctx, card, req, violations, "")
		return LoadResult{Violations: violations}, nil
	}

	raw, err := s.gw.Sale(ctx, req.User.CustomerID, req.Nonce, req.Amount)
	if err != nil {
		return LoadResult{}, fmt.Errorf("submit charge: %w", err)
	}
	result := gateway.ResolveResult(raw)

	if violations := gateway.Classify(ctx, result); len(violations) > 0 {
		slog.InfoContext(ctx, "Load rejected by gateway",
			"card_id", card.ID,
			"amount", req.Amount.String(),
			"transaction_id", result.TransactionID(),
			applog.FieldComponent, applog.ComponentLoadService)
		s.audit(ctx, card, req, violations, result.TransactionID())
		return LoadResult{Violations: violations, TransactionID: result.TransactionID()}, nil
	}

	newBalance := card.Balance.Add(req.Amount)
	if err := s.cards.UpdateCardBalance(ctx, card.ID, newBalance, card.Version); err != nil {
		// Money moved at the gateway but the balance write lost; this needs
		// an operator, not a retry loop hidden in here.
		return LoadResult{}, fmt.Errorf("update balance after charge %s: %w", result.TransactionID(), err)
	}

	// The cached history no longer includes this charge; drop it.
	if s.historyCache != nil {
		s.historyCache.Delete(req.User.CustomerID)
	}

	slog.InfoContext(ctx, "Load approved",
		"card_id", card.ID,
		"amount", req.Amount.String(),
		"balance", newBalance.String(),
		"transaction_id", result.TransactionID(),
		applog.FieldComponent, applog.ComponentLoadService)

	s.audit(ctx, card, req, nil, result.TransactionID())
	return LoadResult{TransactionID: result.TransactionID()}, nil
}

// fetchHistory returns the customer's countable transactions, via the
// short-TTL cache when enabled. Concurrent fetches for one customer are
// collapsed into a single gateway call.
func (s *LoadService) fetchHistory(ctx context.Context, customerID string) ([]core.TransactionRecord, error) {
	if s.historyCache != nil {
		if records, ok := s.historyCache.Get(customerID); ok {
			return records, nil
		}
	}

	v, err, _ := s.flight.Do(customerID, func() (any, error) {
		records, err := s.gw.SearchTransactions(ctx, customerID, core.CountableStatuses())
		if err != nil {
			return nil, err
		}
		if s.historyCache != nil {
			s.historyCache.Set(customerID, records)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.TransactionRecord), nil
}

// audit publishes the attempt to the audit stream. Publication is best
// effort: a broker outage must not turn a decided load into an error.
func (s *LoadService) audit(ctx context.Context, card core.Card, req LoadRequest, violations []core.Violation, transactionID string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Audit publisher not available, skipping audit message",
			"card_id", card.ID,
			applog.FieldComponent, applog.ComponentLoadService)
		return
	}

	outcome := amqp.OutcomeApproved
	payloads := make([]amqp.ViolationPayload, 0, len(violations))
	if len(violations) > 0 {
		outcome = amqp.OutcomeRejected
		for _, v := range violations {
			payloads = append(payloads, amqp.ViolationPayload{Code: v.Code, Message: v.Message})
		}
	}

	msg := &amqp.LoadAuditMessage{
		CardID:        card.ID,
		CustomerID:    req.User.CustomerID,
		Amount:        req.Amount.String(),
		Outcome:       outcome,
		Violations:    payloads,
		TransactionID: transactionID,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.PublishLoadAudit(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish audit message",
			"card_id", card.ID,
			"error", err,
			applog.FieldComponent, applog.ComponentLoadService)
	}
}

func (s *LoadService) lockCard(cardID int64) func() {
	s.mu.Lock()
	lock, ok := s.cardLocks[cardID]
	if !ok {
		lock = &sync.Mutex{}
		s.cardLocks[cardID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
