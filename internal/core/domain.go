package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state a gateway transaction is in.
type TransactionStatus string

const (
	StatusAuthorizing            TransactionStatus = "authorizing"
	StatusAuthorized             TransactionStatus = "authorized"
	StatusSubmittedForSettlement TransactionStatus = "submitted_for_settlement"
	StatusSettling               TransactionStatus = "settling"
	StatusSettled                TransactionStatus = "settled"
	StatusVoided                 TransactionStatus = "voided"
	StatusFailed                 TransactionStatus = "failed"
	StatusGatewayRejected        TransactionStatus = "gateway_rejected"
)

type (
	// TransactionRecord is an immutable snapshot of one historical monetary
	// movement, as reported by the payment gateway.
	TransactionRecord struct {
		Amount    decimal.Decimal
		CreatedAt time.Time
		Status    TransactionStatus
	}

	// Violation is one reason a load was rejected, either by the limit
	// evaluator or by the transaction outcome classifier.
	Violation struct {
		Code    string
		Message string
	}

	// User is linked to a gateway Customer via CustomerID.
	User struct {
		ID         int64
		Username   string
		Email      string
		CustomerID string
	}

	// Card keeps a balance and belongs to a User. The compliance engine
	// reads the balance but never mutates it; balance updates go through
	// the storage layer with a version check.
	Card struct {
		ID      int64
		UserID  int64
		Name    string
		Balance decimal.Decimal
		Version int64
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyNonce    = errors.New("empty payment nonce")
)

// CountableStatuses is the set of lifecycle states that count toward spend:
// everything that has settled or could still end up settled.
func CountableStatuses() []TransactionStatus {
	return []TransactionStatus{
		StatusAuthorizing,
		StatusAuthorized,
		StatusSubmittedForSettlement,
		StatusSettling,
		StatusSettled,
	}
}

// CountsTowardSpend reports whether a transaction in this state is eligible
// for velocity-limit aggregation.
func (s TransactionStatus) CountsTowardSpend() bool {
	switch s {
	case StatusAuthorizing, StatusAuthorized, StatusSubmittedForSettlement,
		StatusSettling, StatusSettled:
		return true
	}
	return false
}

// NewCustomerID generates a gateway customer identifier. The gateway caps
// customer ids at 36 characters; v1 UUIDs are always 36 chars and stay unique
// across servers and test runs.
func NewCustomerID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("empty username")
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty email")
	}
	if len(u.CustomerID) > 36 {
		return errors.New("customer id longer than 36 characters")
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("empty card name")
	}
	if c.Balance.IsNegative() {
		return errors.New("negative balance")
	}
	return nil
}
