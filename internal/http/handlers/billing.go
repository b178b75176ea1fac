package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"productstudio/internal/domain"
)

const maxWebhookBody = 1 << 20

type billingEvent struct {
	Meta struct {
		EventName  string `json:"event_name"`
		WebhookID  string `json:"webhook_id"`
		CustomData struct {
			UserID  string          `json:"user_id"`
			Credits json.RawMessage `json:"credits"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// BillingWebhook handles POST /api/webhooks/billing. The body must be signed
// with HMAC-SHA256 (hex, X-Signature). order_created events add credits once
// per order id; other events are acknowledged and ignored.
func (a *App) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if a.WebhookSecret == "" || !validSignature(a.WebhookSecret, raw, r.Header.Get("X-Signature")) {
		a.error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var evt billingEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if evt.Meta.EventName != "order_created" {
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	userID := strings.TrimSpace(evt.Meta.CustomData.UserID)
	eventID := strings.TrimSpace(evt.Data.ID)
	credits := a.CreditsPerOrder
	if n, ok := parseCredits(evt.Meta.CustomData.Credits); ok {
		credits = n
	}
	if userID == "" || eventID == "" || credits <= 0 {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	balance, err := a.Billing.ApplyCredits(r.Context(), "order:"+eventID, userID, credits)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			a.json(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
		a.log(r).Error().Err(err).Str("order_id", eventID).Msg("billing: apply credits failed")
		a.error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	a.Metrics.RecordCredits(credits)
	a.log(r).Info().Str("order_id", eventID).Str("user_id", userID).Int("credits", credits).Int("balance", balance).Msg("billing: credits applied")
	a.json(w, http.StatusOK, map[string]any{"status": "applied", "credits": balance})
}

func validSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// parseCredits accepts a JSON number or a numeric string.
func parseCredits(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}
