package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusDraft          AppointmentStatus = "draft"
	AppointmentStatusPendingPayment AppointmentStatus = "pending_payment"
	AppointmentStatusConfirmed      AppointmentStatus = "confirmed"
	AppointmentStatusCancelled      AppointmentStatus = "cancelled"
	AppointmentStatusRefunded       AppointmentStatus = "refunded"
	AppointmentStatusFailed         AppointmentStatus = "failed"
)

// transitions lists every allowed status change. Draft is never stored.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusDraft:          {AppointmentStatusPendingPayment},
	AppointmentStatusPendingPayment: {AppointmentStatusConfirmed, AppointmentStatusFailed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed:      {AppointmentStatusRefunded, AppointmentStatusCancelled},
	AppointmentStatusCancelled:      {AppointmentStatusRefunded},
	AppointmentStatusFailed:         {AppointmentStatusRefunded},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether an appointment in this status owns its doctor slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s == AppointmentStatusPendingPayment || s == AppointmentStatusConfirmed
}

type Appointment struct {
	BaseNoDelete
	PatientID               string            `db:"patient_id"`
	PatientEmail            string            `db:"patient_email"`
	DoctorID                string            `db:"doctor_id"`
	ScheduledAt             time.Time         `db:"scheduled_at"`
	Reason                  string            `db:"reason"`
	Amount                  decimal.Decimal   `db:"amount"`
	Currency                string            `db:"currency"`
	PaymentIntentID         *string           `db:"payment_intent_id"`
	Status                  AppointmentStatus `db:"status"`
	CancellationReason      *string           `db:"cancellation_reason"`
	CancellationRequestedAt *time.Time        `db:"cancellation_requested_at"`
	PendingCancelReason     *string           `db:"pending_cancel_reason"`
	RefundID                *string           `db:"refund_id"`
}

// SlotTime is the grouping key used for slot exclusivity.
func SlotTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
