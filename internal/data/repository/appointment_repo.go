package repository

import (
	"context"
	"errors"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// TransitionPatch carries the columns that may change together with a status.
type TransitionPatch struct {
	CancellationReason *string
	RefundID           *string
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Appointment, error)
	FindByPatientID(ctx context.Context, patientID string, limit, offset int) ([]*entity.Appointment, error)
	CountByPatientID(ctx context.Context, patientID string) (int64, error)

	// Conditional writes
	Transition(ctx context.Context, id uuid.UUID, from, to entity.AppointmentStatus, patch TransitionPatch) error
	RecordCancellationRequest(ctx context.Context, id uuid.UUID, reason string) error
}

const appointmentColumns = `id, patient_id, patient_email, doctor_id, scheduled_at, reason, amount, currency,
		payment_intent_id, status, cancellation_reason, cancellation_requested_at, pending_cancel_reason, refund_id, created_at, updated_at`

type appointmentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAppointmentRepository(db database.PgxIface, log *zap.Logger) AppointmentRepository {
	return &appointmentRepository{
		db:  db,
		log: log.With(zap.String("repository", "appointment")),
	}
}

func (r *appointmentRepository) Create(ctx context.Context, a *entity.Appointment) error {
	query := `
		INSERT INTO appointments (id, patient_id, patient_email, doctor_id, scheduled_at, reason, amount, currency,
			payment_intent_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.PatientID,
		a.PatientEmail,
		a.DoctorID,
		a.ScheduledAt,
		a.Reason,
		a.Amount,
		a.Currency,
		a.PaymentIntentID,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create appointment",
			zap.Error(err),
			zap.String("appointment_id", a.ID.String()),
			zap.String("doctor_id", a.DoctorID),
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_active_slot_key" {
			return apperror.Wrap(apperror.KindSlotUnavailable, err, "slot already booked for doctor %s", a.DoctorID)
		}
		return fmt.Errorf("create appointment %s: %w", a.ID.String(), err)
	}

	return nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find appointment by ID",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
		)
		return nil, fmt.Errorf("find appointment by ID %s: %w", id.String(), err)
	}

	return appointment, nil
}

func (r *appointmentRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE payment_intent_id = $1`

	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, paymentIntentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find appointment by payment intent",
			zap.Error(err),
			zap.String("payment_intent_id", paymentIntentID),
		)
		return nil, fmt.Errorf("find appointment by payment intent %s: %w", paymentIntentID, err)
	}

	return appointment, nil
}

func (r *appointmentRepository) FindByPatientID(ctx context.Context, patientID string, limit, offset int) ([]*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find appointments by patient ID",
			zap.Error(err),
			zap.String("patient_id", patientID),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find appointments by patient ID %s: %w", patientID, err)
	}
	defer rows.Close()

	var appointments []*entity.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			r.log.Error("Failed to scan appointment row", zap.Error(err))
			return nil, fmt.Errorf("scan appointment row: %w", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, rows.Err()
}

func (r *appointmentRepository) CountByPatientID(ctx context.Context, patientID string) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, patientID).Scan(&count); err != nil {
		r.log.Error("Failed to count appointments by patient ID",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
		return 0, fmt.Errorf("count appointments by patient ID %s: %w", patientID, err)
	}

	return count, nil
}

// Transition moves an appointment from one status to another only if the
// stored status still equals from. A lost race returns KindStaleState.
func (r *appointmentRepository) Transition(ctx context.Context, id uuid.UUID, from, to entity.AppointmentStatus, patch TransitionPatch) error {
	query := `
		UPDATE appointments
		SET status = $3,
		    cancellation_reason = COALESCE($4, cancellation_reason),
		    refund_id = COALESCE($5, refund_id),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, id, from, to, patch.CancellationReason, patch.RefundID)
	if err != nil {
		r.log.Error("Failed to transition appointment",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return fmt.Errorf("transition appointment %s from %s to %s: %w", id.String(), from, to, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.New(apperror.KindStaleState, "appointment %s is no longer %s", id.String(), from)
	}

	return nil
}

func (r *appointmentRepository) RecordCancellationRequest(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE appointments
		SET cancellation_requested_at = NOW(),
		    pending_cancel_reason = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`

	result, err := r.db.Exec(ctx, query, id, reason)
	if err != nil {
		r.log.Error("Failed to record cancellation request",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
		)
		return fmt.Errorf("record cancellation request %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.New(apperror.KindStaleState, "appointment %s is no longer confirmed", id.String())
	}

	return nil
}

func scanAppointment(row pgx.Row) (*entity.Appointment, error) {
	var a entity.Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientEmail,
		&a.DoctorID,
		&a.ScheduledAt,
		&a.Reason,
		&a.Amount,
		&a.Currency,
		&a.PaymentIntentID,
		&a.Status,
		&a.CancellationReason,
		&a.CancellationRequestedAt,
		&a.PendingCancelReason,
		&a.RefundID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
