package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"limits/internal/compliance"
	"limits/internal/core"
	"limits/internal/gateway"
	"limits/internal/services"
	"limits/internal/storage"
)

type stubCardStore struct {
	card   core.Card
	getErr error
}

func (s *stubCardStore) GetCard(_ context.Context, userID, cardID int64) (core.Card, error) {
	if s.getErr != nil {
		return core.Card{}, s.getErr
	}
	return s.card, nil
}

func (s *stubCardStore) UpdateCardBalance(_ context.Context, cardID int64, balance decimal.Decimal, expectedVersion int64) error {
	s.card.Balance = balance
	s.card.Version++
	return nil
}

type stubGateway struct {
	history    []core.TransactionRecord
	saleResult gateway.RawResult
}

func (s *stubGateway) GenerateClientToken(_ context.Context, customerID string) (string, error) {
	return "tok-" + customerID, nil
}

func (s *stubGateway) EnsureCustomer(_ context.Context, customerID, nonce string) error {
	return nil
}

func (s *stubGateway) Sale(_ context.Context, customerID, nonce string, amount decimal.Decimal) (gateway.RawResult, error) {
	return s.saleResult, nil
}

func (s *stubGateway) SearchTransactions(_ context.Context, customerID string, statuses []core.TransactionStatus) ([]core.TransactionRecord, error) {
	return s.history, nil
}

type stubUsers struct{}

func (stubUsers) FirstUser(context.Context) (core.User, error) {
	return core.User{ID: 1, Username: "guest", CustomerID: "cust-1"}, nil
}

type stubEvents struct {
	events []storage.LoadEvent
}

func (s *stubEvents) ListLoadEvents(_ context.Context, cardID int64, limit int) ([]storage.LoadEvent, error) {
	return s.events, nil
}

func newTestServer(store *stubCardStore, gw *stubGateway, events *stubEvents) *Server {
	caps := compliance.Caps{
		Day:     decimal.NewFromInt(500),
		Month:   decimal.NewFromInt(800),
		Year:    decimal.NewFromInt(2000),
		Balance: decimal.NewFromInt(1000),
	}
	loads := services.NewLoadService(store, gw, nil, compliance.DefaultTiers(caps))
	if events == nil {
		events = &stubEvents{}
	}
	return NewServer(":0", loads, stubUsers{}, events)
}

func postLoad(t *testing.T, s *Server, cardID string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/cards/"+cardID+"/load/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) statusPayload {
	t.Helper()
	var payload statusPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestLoadEndpointApproved(t *testing.T) {
	store := &stubCardStore{card: core.Card{ID: 1, UserID: 1, Balance: decimal.Zero}}
	gw := &stubGateway{saleResult: gateway.RawResult{IsSuccess: true, TransactionID: "txn-1"}}
	s := newTestServer(store, gw, nil)

	rec := postLoad(t, s, "1", url.Values{
		"payment_method_nonce": {"fake-valid-nonce"},
		"amount":               {"50"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	if payload.Status != "ok" || len(payload.Errors) != 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestLoadEndpointComplianceRejected(t *testing.T) {
	store := &stubCardStore{card: core.Card{ID: 1, UserID: 1, Balance: decimal.Zero}}
	gw := &stubGateway{
		history: []core.TransactionRecord{
			{Amount: decimal.NewFromInt(480), CreatedAt: time.Now().Add(-time.Hour), Status: core.StatusSettled},
		},
	}
	s := newTestServer(store, gw, nil)

	rec := postLoad(t, s, "1", url.Values{
		"payment_method_nonce": {"fake-valid-nonce"},
		"amount":               {"50"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodePayload(t, rec)
	if payload.Status != "error" || len(payload.Errors) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Errors[0].Code != "compliance-day" {
		t.Fatalf("error code = %q, want compliance-day", payload.Errors[0].Code)
	}
	if !strings.Contains(payload.Errors[0].Message, "480 + 50 > 500") {
		t.Fatalf("unexpected message: %s", payload.Errors[0].Message)
	}
}

func TestLoadEndpointGatewayDecline(t *testing.T) {
	store := &stubCardStore{card: core.Card{ID: 1, UserID: 1, Balance: decimal.Zero}}
	gw := &stubGateway{saleResult: gateway.RawResult{
		ProcessorResponseCode: "2001",
		ProcessorResponseText: "Insufficient Funds",
	}}
	s := newTestServer(store, gw, nil)

	rec := postLoad(t, s, "1", url.Values{
		"payment_method_nonce": {"fake-valid-nonce"},
		"amount":               {"50"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodePayload(t, rec)
	if len(payload.Errors) != 1 || payload.Errors[0].Code != "2001" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestLoadEndpointJSONBody(t *testing.T) {
	store := &stubCardStore{card: core.Card{ID: 1, UserID: 1, Balance: decimal.Zero}}
	gw := &stubGateway{saleResult: gateway.RawResult{IsSuccess: true, TransactionID: "txn-1"}}
	s := newTestServer(store, gw, nil)

	body := `{"payment_method_nonce": "fake-valid-nonce", "amount": "10.50"}`
	req := httptest.NewRequest(http.MethodPost, "/cards/1/load/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestLoadEndpointInvalidAmount(t *testing.T) {
	s := newTestServer(&stubCardStore{}, &stubGateway{}, nil)

	for _, amount := range []string{"", "abc", "-5", "0"} {
		rec := postLoad(t, s, "1", url.Values{
			"payment_method_nonce": {"fake-valid-nonce"},
			"amount":               {amount},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("amount %q: status = %d, want 400", amount, rec.Code)
		}
		payload := decodePayload(t, rec)
		if payload.Errors[0].Code != "invalid-amount" {
			t.Fatalf("amount %q: code = %q", amount, payload.Errors[0].Code)
		}
	}
}

func TestLoadEndpointMissingNonce(t *testing.T) {
	s := newTestServer(&stubCardStore{}, &stubGateway{}, nil)

	rec := postLoad(t, s, "1", url.Values{"amount": {"50"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decodePayload(t, rec).Errors[0].Code != "missing-nonce" {
		t.Fatal("expected missing-nonce error")
	}
}

func TestLoadEndpointUnknownCard(t *testing.T) {
	store := &stubCardStore{getErr: storage.ErrNotFound}
	s := newTestServer(store, &stubGateway{}, nil)

	rec := postLoad(t, s, "9", url.Values{
		"payment_method_nonce": {"fake-valid-nonce"},
		"amount":               {"50"},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if decodePayload(t, rec).Errors[0].Code != "http-404" {
		t.Fatal("expected http-404 error code")
	}
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer(&stubCardStore{}, &stubGateway{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/tokens/", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["client_token"] != "tok-cust-1" {
		t.Fatalf("client_token = %q", resp["client_token"])
	}
}

func TestListEventsEndpoint(t *testing.T) {
	events := &stubEvents{events: []storage.LoadEvent{
		{
			ID:             3,
			CardID:         1,
			Amount:         decimal.RequireFromString("60"),
			Outcome:        "rejected",
			ViolationCodes: []string{"compliance-day"},
			OccurredAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	s := newTestServer(&stubCardStore{}, &stubGateway{}, events)

	req := httptest.NewRequest(http.MethodGet, "/cards/1/events/", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Events []eventResponse `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Outcome != "rejected" || resp.Events[0].Amount != "60" {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}
}

func TestHomePage(t *testing.T) {
	s := newTestServer(&stubCardStore{}, &stubGateway{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Fatal("expected rendered markdown heading")
	}
}
