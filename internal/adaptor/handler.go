package adaptor

import (
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Booking *BookingHandler
	Webhook *WebhookHandler
}

func NewHandler(service *usecase.Service, config *utils.Config, m *metrics.BookingMetrics, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, log),
		Webhook: NewWebhookHandler(service.Booking, config.Stripe.WebhookSecret, m, log),
	}
}
