package request

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBookingRequest amount is in major units. Its upper bound is the
// NUMERIC(12,2) column limit.
type CreateBookingRequest struct {
	PatientID    string          `json:"patient_id" validate:"required,max=64"`
	PatientEmail string          `json:"patient_email" validate:"required,email"`
	DoctorID     string          `json:"doctor_id" validate:"required,max=64"`
	ScheduledAt  time.Time       `json:"scheduled_at" validate:"required,future"`
	Reason       string          `json:"reason" validate:"required,min=5,max=500"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0,lte=9999999999.99"`
	Currency     string          `json:"currency" validate:"required,oneof=usd inr eur"`
}

// ConfirmBookingRequest is sent after the client completes payment.
// AppointmentID comes from the URL path. With PaymentMethodID set the
// backend confirms the intent itself before verifying it.
type ConfirmBookingRequest struct {
	AppointmentID   string `json:"appointment_id" validate:"required,uuid"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
	DoctorID        string `json:"doctor_id" validate:"required,max=64"`
	PaymentMethodID string `json:"payment_method_id" validate:"omitempty,max=255"`
	Currency        string `json:"currency" validate:"omitempty,oneof=usd inr eur"`
}

type CancelBookingRequest struct {
	AppointmentID      string `json:"appointment_id" validate:"required,uuid"`
	CancellationReason string `json:"cancellation_reason" validate:"required,min=5,max=500"`
	Currency           string `json:"currency" validate:"omitempty,oneof=usd inr eur"`
}
