package adaptor

import (
	"encoding/json"
	"net/http"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created, awaiting payment", booking)
}

// ConfirmBooking handles POST /api/bookings/{id}/confirm
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req request.ConfirmBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.AppointmentID = chi.URLParam(r, "id")

	booking, err := h.service.ConfirmBooking(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "confirm booking")
		return
	}

	switch booking.Status {
	case entity.AppointmentStatusConfirmed:
		utils.ResponseSuccess(w, "Booking confirmed", booking)
	case entity.AppointmentStatusFailed:
		utils.ResponseJSON(w, http.StatusPaymentRequired, false, "Payment failed", booking, nil)
	default:
		utils.ResponseSuccess(w, "Payment not completed yet", booking)
	}
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req request.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.AppointmentID = chi.URLParam(r, "id")

	booking, err := h.service.CancelBooking(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "cancel booking")
		return
	}

	message := "Booking cancelled"
	if booking.Status == entity.AppointmentStatusRefunded {
		message = "Booking cancelled and refunded"
	}
	utils.ResponseSuccess(w, message, booking)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// GetPatientBookings handles GET /api/patients/{patientID}/bookings
func (h *BookingHandler) GetPatientBookings(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	// Validate request
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	bookings, err := h.service.GetPatientBookings(r.Context(), patientID, req)
	if err != nil {
		h.handleServiceError(w, err, "get patient bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// handleServiceError maps error kinds ke HTTP status dan pesan yang stabil
func (h *BookingHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	kind := apperror.KindOf(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
	}

	switch kind {
	case apperror.KindValidation:
		violations := apperror.FieldsOf(err)
		h.log.Warn(operation+" validation failed",
			zap.String("operation", operation),
			zap.String("violations", utils.FormatValidationErrors(violations)),
		)
		utils.ResponseBadRequest(w, "Validation failed", violations)

	case apperror.KindInvalidAmount:
		h.log.Warn(operation+" failed - invalid amount", fields...)
		utils.ResponseBadRequest(w, "Invalid amount or currency", nil)

	case apperror.KindSlotUnavailable:
		h.log.Warn(operation+" failed - slot unavailable", fields...)
		utils.ResponseConflict(w, "This time slot is no longer available, please choose another time")

	case apperror.KindGatewayUnavailable:
		h.log.Warn(operation+" failed - payment provider unavailable", fields...)
		utils.ResponseServiceUnavailable(w, "Payment provider is unavailable, please try again shortly", 5)

	case apperror.KindGatewayRejected:
		h.log.Warn(operation+" failed - payment rejected", fields...)
		utils.ResponsePaymentRequired(w, "Payment failed")

	case apperror.KindStateMismatch, apperror.KindStaleState:
		h.log.Warn(operation+" failed - invalid state", fields...)
		utils.ResponseConflict(w, "Booking cannot be changed in its current state")

	case apperror.KindNotFound, apperror.KindIntentNotFound:
		h.log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, "Booking not found")

	default:
		h.log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
