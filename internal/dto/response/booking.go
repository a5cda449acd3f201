package response

import (
	"time"

	"clinic-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type CreateBookingResponse struct {
	AppointmentID   string                   `json:"appointment_id"`
	PaymentIntentID string                   `json:"payment_intent_id"`
	ClientSecret    string                   `json:"client_secret"`
	Status          entity.AppointmentStatus `json:"status"`
	Amount          decimal.Decimal          `json:"amount"`
	Currency        string                   `json:"currency"`
}

type BookingStatusResponse struct {
	AppointmentID string                   `json:"appointment_id"`
	Status        entity.AppointmentStatus `json:"status"`
	RefundID      *string                  `json:"refund_id,omitempty"`
}

type AppointmentResponse struct {
	ID                      string                   `json:"id"`
	PatientID               string                   `json:"patient_id"`
	DoctorID                string                   `json:"doctor_id"`
	ScheduledAt             time.Time                `json:"scheduled_at"`
	Reason                  string                   `json:"reason"`
	Amount                  decimal.Decimal          `json:"amount"`
	Currency                string                   `json:"currency"`
	PaymentIntentID         *string                  `json:"payment_intent_id,omitempty"`
	Status                  entity.AppointmentStatus `json:"status"`
	CancellationReason      *string                  `json:"cancellation_reason,omitempty"`
	CancellationRequestedAt *time.Time               `json:"cancellation_requested_at,omitempty"`
	RefundID                *string                  `json:"refund_id,omitempty"`
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
}

// Helper converters
func AppointmentToResponse(a *entity.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                      a.ID.String(),
		PatientID:               a.PatientID,
		DoctorID:                a.DoctorID,
		ScheduledAt:             a.ScheduledAt,
		Reason:                  a.Reason,
		Amount:                  a.Amount,
		Currency:                a.Currency,
		PaymentIntentID:         a.PaymentIntentID,
		Status:                  a.Status,
		CancellationReason:      a.CancellationReason,
		CancellationRequestedAt: a.CancellationRequestedAt,
		RefundID:                a.RefundID,
		CreatedAt:               a.CreatedAt,
		UpdatedAt:               a.UpdatedAt,
	}
}

func AppointmentToStatusResponse(a *entity.Appointment) *BookingStatusResponse {
	return &BookingStatusResponse{
		AppointmentID: a.ID.String(),
		Status:        a.Status,
		RefundID:      a.RefundID,
	}
}
