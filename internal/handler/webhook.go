package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront/internal/service"
)

const maxWebhookBody = 64 << 10

type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) (service.Outcome, error)
}

// StripeWebhookHandler reads the raw body, since signature verification
// needs the exact bytes that were signed.
func StripeWebhookHandler(events EventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			writeError(w, http.StatusBadRequest, "Missing Stripe-Signature header")
			return
		}

		outcome, err := events.HandleEvent(r.Context(), payload, signature)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSignature) {
				slog.Warn("webhook signature verification failed", "error", err)
				writeError(w, http.StatusBadRequest, "Webhook Error: invalid signature")
				return
			}
			slog.Error("webhook processing failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Webhook processing failed")
			return
		}

		resp := map[string]any{"received": true}
		if outcome == service.OutcomeDuplicate {
			resp["message"] = "Order already processed"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
