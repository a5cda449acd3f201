package entity

import (
	"time"

	"github.com/google/uuid"
)

// SlotReservation is one held (doctor, time) pair.
type SlotReservation struct {
	DoctorID      string    `db:"doctor_id"`
	ScheduledAt   time.Time `db:"scheduled_at"`
	AppointmentID uuid.UUID `db:"appointment_id"`
	Finalized     bool      `db:"finalized"`
	CreatedAt     time.Time `db:"created_at"`
}
