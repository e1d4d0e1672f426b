package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Load outcomes carried on audit messages.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// ViolationPayload mirrors the wire-level {code, message} record.
type ViolationPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LoadAuditMessage records one load attempt for the audit trail. Amount is a
// decimal string so the value survives JSON without float rounding.
type LoadAuditMessage struct {
	CardID        int64              `json:"card_id"`
	CustomerID    string             `json:"customer_id"`
	Amount        string             `json:"amount"`
	Outcome       string             `json:"outcome"`
	Violations    []ViolationPayload `json:"violations,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// Validate rejects messages a consumer could not meaningfully store.
func (m *LoadAuditMessage) Validate() error {
	if m.CardID == 0 {
		return fmt.Errorf("audit message missing card id")
	}
	if m.Outcome != OutcomeApproved && m.Outcome != OutcomeRejected {
		return fmt.Errorf("unknown audit outcome %q", m.Outcome)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LoadAuditMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LoadAuditMessageFromJSON creates a message from JSON bytes
func LoadAuditMessageFromJSON(data []byte) (*LoadAuditMessage, error) {
	var msg LoadAuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal audit message: %w", err)
	}
	return &msg, nil
}
