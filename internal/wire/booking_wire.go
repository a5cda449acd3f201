package wire

import (
	"clinic-booking/internal/adaptor"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	webhookHandler *adaptor.WebhookHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/bookings", func(r chi.Router) {
		// POST /api/bookings - Reserve slot and create payment intent
		r.Post("/", bookingHandler.CreateBooking)

		// GET /api/bookings/{id} - Booking detail
		r.Get("/{id}", bookingHandler.GetBooking)

		// POST /api/bookings/{id}/confirm - Verify payment and confirm
		r.Post("/{id}/confirm", bookingHandler.ConfirmBooking)

		// POST /api/bookings/{id}/cancel - Cancel, refunding when paid
		r.Post("/{id}/cancel", bookingHandler.CancelBooking)
	})

	// GET /api/patients/{patientID}/bookings - Booking history
	r.Get("/api/patients/{patientID}/bookings", bookingHandler.GetPatientBookings)

	// Webhook hanya aktif kalau secret di-set
	if config.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, Stripe webhook route disabled")
		return
	}
	r.Post("/api/webhooks/stripe", webhookHandler.Stripe)
}
