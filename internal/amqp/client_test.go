package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{63, 30 * time.Second}, // shift overflow still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"reset by peer", errors.New("read: connection reset by peer"), true},
		{"closed channel", errors.New("Exception (504) Reason: \"channel/connection is not open\""), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"unrelated error", errors.New("access refused for user"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestLoadAuditMessageValidate(t *testing.T) {
	good := LoadAuditMessage{CardID: 1, Outcome: OutcomeApproved, Amount: "50", OccurredAt: time.Now()}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	if err := (&LoadAuditMessage{Outcome: OutcomeApproved}).Validate(); err == nil {
		t.Fatal("expected error for missing card id")
	}
	if err := (&LoadAuditMessage{CardID: 1, Outcome: "maybe"}).Validate(); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}

func TestLoadAuditMessageRoundTrip(t *testing.T) {
	msg := &LoadAuditMessage{
		CardID:     7,
		CustomerID: "cust-1",
		Amount:     "999.99",
		Outcome:    OutcomeRejected,
		Violations: []ViolationPayload{
			{Code: "compliance-balance", Message: "ComplianceError: 999.99 + 0.02 > 1000 (balance)"},
		},
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := LoadAuditMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.CardID != 7 || got.Amount != "999.99" || got.Outcome != OutcomeRejected {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Violations) != 1 || got.Violations[0].Code != "compliance-balance" {
		t.Fatalf("violations mismatch: %+v", got.Violations)
	}
}

func TestLoadAuditMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LoadAuditMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
