package repository

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotRepository guards exclusivity of a (doctor, time) pair across
// concurrent booking attempts. TryReserve is an atomic check-and-set.
type SlotRepository interface {
	TryReserve(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error
	Finalize(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error
	Release(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error
}

type slotRepository struct {
	db      database.PgxIface
	holdTTL time.Duration
	log     *zap.Logger
}

// NewSlotRepository keeps slot holds in slot_reservations. An unfinalized
// hold older than holdTTL may be taken over by a new reservation.
func NewSlotRepository(db database.PgxIface, holdTTL time.Duration, log *zap.Logger) SlotRepository {
	return &slotRepository{
		db:      db,
		holdTTL: holdTTL,
		log:     log.With(zap.String("repository", "slot")),
	}
}

func (r *slotRepository) TryReserve(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	query := `
		INSERT INTO slot_reservations (doctor_id, scheduled_at, appointment_id, finalized, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		ON CONFLICT (doctor_id, scheduled_at) DO UPDATE
		SET appointment_id = EXCLUDED.appointment_id,
		    created_at = EXCLUDED.created_at
		WHERE slot_reservations.finalized = FALSE
		  AND slot_reservations.created_at < NOW() - make_interval(secs => $4)
	`

	hold := entity.SlotReservation{
		DoctorID:      doctorID,
		ScheduledAt:   entity.SlotTime(scheduledAt),
		AppointmentID: appointmentID,
	}
	slot := hold.ScheduledAt
	result, err := r.db.Exec(ctx, query, hold.DoctorID, hold.ScheduledAt, hold.AppointmentID, r.holdTTL.Seconds())
	if err != nil {
		r.log.Error("Failed to reserve slot",
			zap.Error(err),
			zap.String("doctor_id", doctorID),
			zap.Time("scheduled_at", slot),
		)
		return fmt.Errorf("reserve slot %s@%s: %w", doctorID, slot.Format(time.RFC3339), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.New(apperror.KindSlotUnavailable, "doctor %s is not available at %s", doctorID, slot.Format(time.RFC3339))
	}

	return nil
}

func (r *slotRepository) Finalize(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	query := `
		UPDATE slot_reservations
		SET finalized = TRUE
		WHERE doctor_id = $1 AND scheduled_at = $2 AND appointment_id = $3
	`

	slot := entity.SlotTime(scheduledAt)
	result, err := r.db.Exec(ctx, query, doctorID, slot, appointmentID)
	if err != nil {
		r.log.Error("Failed to finalize slot",
			zap.Error(err),
			zap.String("doctor_id", doctorID),
			zap.String("appointment_id", appointmentID.String()),
		)
		return fmt.Errorf("finalize slot %s@%s: %w", doctorID, slot.Format(time.RFC3339), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.New(apperror.KindStaleState, "slot %s@%s is not held by appointment %s",
			doctorID, slot.Format(time.RFC3339), appointmentID.String())
	}

	return nil
}

// Release only deletes a hold owned by appointmentID, so a late release can
// never free a slot that another appointment has since taken.
func (r *slotRepository) Release(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	query := `DELETE FROM slot_reservations WHERE doctor_id = $1 AND scheduled_at = $2 AND appointment_id = $3`

	slot := entity.SlotTime(scheduledAt)
	result, err := r.db.Exec(ctx, query, doctorID, slot, appointmentID)
	if err != nil {
		r.log.Error("Failed to release slot",
			zap.Error(err),
			zap.String("doctor_id", doctorID),
			zap.String("appointment_id", appointmentID.String()),
		)
		return fmt.Errorf("release slot %s@%s: %w", doctorID, slot.Format(time.RFC3339), err)
	}

	if result.RowsAffected() > 0 {
		r.log.Info("Slot released",
			zap.String("doctor_id", doctorID),
			zap.Time("scheduled_at", slot),
			zap.String("appointment_id", appointmentID.String()),
		)
	}

	return nil
}
