package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"limits/internal/compliance"
	"limits/internal/core"
	applog "limits/internal/log"
	"limits/internal/services"
	"limits/internal/storage"
)

// handleToken issues a client token for the instance user.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.FirstUser(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve user", "error", err, applog.FieldComponent, applog.ComponentAPI)
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}

	token, err := s.loads.Token(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "Token generation failed", "error", err, applog.FieldComponent, applog.ComponentAPI)
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"client_token": token})
}

// loadRequestBody is the JSON shape of a load request. Form submissions use
// the same field names; "nonce" is accepted as a short alias.
type loadRequestBody struct {
	Nonce      string `json:"payment_method_nonce"`
	NonceAlias string `json:"nonce"`
	Amount     string `json:"amount"`
}

// handleLoad runs one compliance-gated load attempt against a card.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || cardID <= 0 {
		writeHTTPError(w, http.StatusNotFound)
		return
	}

	body, err := parseLoadBody(r)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest)
		return
	}

	amount, err := core.ParseAmount(body.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload([]compliance.WireError{{
			Code:    "invalid-amount",
			Message: "amount must be a positive decimal number",
		}}))
		return
	}
	if strings.TrimSpace(body.Nonce) == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload([]compliance.WireError{{
			Code:    "missing-nonce",
			Message: "payment_method_nonce is required",
		}}))
		return
	}

	user, err := s.users.FirstUser(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve user", "error", err, applog.FieldComponent, applog.ComponentAPI)
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}

	result, err := s.loads.Load(r.Context(), services.LoadRequest{
		User:   user,
		CardID: cardID,
		Nonce:  body.Nonce,
		Amount: amount,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeHTTPError(w, http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Load failed", "error", err, "card_id", cardID, applog.FieldComponent, applog.ComponentAPI)
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}

	if !result.Approved() {
		writeJSON(w, http.StatusBadRequest, errorPayload(compliance.FormatAll(result.Violations)))
		return
	}
	writeJSON(w, http.StatusOK, okPayload())
}

// parseLoadBody accepts either a JSON body or an HTML form.
func parseLoadBody(r *http.Request) (loadRequestBody, error) {
	var body loadRequestBody
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return body, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return body, err
		}
		body.Nonce = r.Form.Get("payment_method_nonce")
		body.NonceAlias = r.Form.Get("nonce")
		body.Amount = r.Form.Get("amount")
	}
	if body.Nonce == "" {
		body.Nonce = body.NonceAlias
	}
	return body, nil
}

// eventResponse is the JSON shape of one audited load attempt.
type eventResponse struct {
	ID             int64    `json:"id"`
	Amount         string   `json:"amount"`
	Outcome        string   `json:"outcome"`
	ViolationCodes []string `json:"violation_codes"`
	TransactionID  string   `json:"transaction_id,omitempty"`
	OccurredAt     string   `json:"occurred_at"`
}

// handleListEvents returns the most recent audited load attempts for a card.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || cardID <= 0 {
		writeHTTPError(w, http.StatusNotFound)
		return
	}

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := s.events.ListLoadEvents(r.Context(), cardID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list load events", "error", err, "card_id", cardID, applog.FieldComponent, applog.ComponentAPI)
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		codes := e.ViolationCodes
		if codes == nil {
			codes = []string{}
		}
		out = append(out, eventResponse{
			ID:             e.ID,
			Amount:         e.Amount.String(),
			Outcome:        e.Outcome,
			ViolationCodes: codes,
			TransactionID:  e.TransactionID,
			OccurredAt:     e.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
