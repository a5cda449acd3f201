package adaptor

import (
	"encoding/json"
	"io"
	"net/http"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const maxWebhookBody = int64(65536)

// WebhookHandler receives Stripe events and reconciles the affected booking.
type WebhookHandler struct {
	service usecase.BookingService
	secret  string
	metrics *metrics.BookingMetrics
	log     *zap.Logger
}

func NewWebhookHandler(service usecase.BookingService, secret string, m *metrics.BookingMetrics, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  secret,
		metrics: m,
		log:     log.With(zap.String("handler", "webhook")),
	}
}

// Stripe handles POST /api/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("Failed to read webhook body", zap.Error(err))
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.log.Warn("Rejected webhook with invalid signature", zap.Error(err))
		h.metrics.ObserveWebhook("unknown", "invalid_signature")
		utils.ResponseBadRequest(w, "Invalid signature", nil)
		return
	}

	eventType := string(event.Type)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
	default:
		h.metrics.ObserveWebhook(eventType, "ignored")
		utils.ResponseSuccess(w, "ignored", nil)
		return
	}

	var intent stripe.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &intent) != nil || intent.ID == "" {
		h.log.Warn("Webhook event without payment intent", zap.String("event_id", event.ID))
		h.metrics.ObserveWebhook(eventType, "malformed")
		utils.ResponseBadRequest(w, "Invalid event payload", nil)
		return
	}

	log := h.log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", eventType),
		zap.String("payment_intent_id", intent.ID),
	)

	err = h.service.ReconcilePayment(r.Context(), intent.ID)
	switch {
	case err == nil:
		log.Info("Webhook reconciled")
		h.metrics.ObserveWebhook(eventType, "reconciled")
		utils.ResponseSuccess(w, "ok", nil)

	case apperror.IsKind(err, apperror.KindNotFound):
		// Intent bukan milik booking kita, acknowledge supaya Stripe berhenti retry
		log.Warn("Webhook for unknown payment intent")
		h.metrics.ObserveWebhook(eventType, "unknown_intent")
		utils.ResponseSuccess(w, "ignored", nil)

	case apperror.KindOf(err).Retryable():
		log.Warn("Webhook reconciliation deferred", zap.Error(err))
		h.metrics.ObserveWebhook(eventType, "retry")
		utils.ResponseServiceUnavailable(w, "Try again later", 0)

	default:
		log.Error("Webhook reconciliation failed", zap.Error(err))
		h.metrics.ObserveWebhook(eventType, "error")
		utils.ResponseInternalError(w, "Internal server error")
	}
}
