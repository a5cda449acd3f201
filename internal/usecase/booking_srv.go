package usecase

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/gateway"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (*response.CreateBookingResponse, error)
	ConfirmBooking(ctx context.Context, req *request.ConfirmBookingRequest) (*response.BookingStatusResponse, error)
	CancelBooking(ctx context.Context, req *request.CancelBookingRequest) (*response.BookingStatusResponse, error)

	// Read paths
	GetBooking(ctx context.Context, appointmentID string) (*response.AppointmentResponse, error)
	GetPatientBookings(ctx context.Context, patientID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.AppointmentResponse], error)

	// ReconcilePayment re-checks the appointment owning intentID against the
	// gateway. It is driven by gateway webhooks.
	ReconcilePayment(ctx context.Context, intentID string) error
}

// Recorded on a Failed appointment whose payment arrived anyway.
const latePaymentReason = "payment received after booking failed"

type BookingOptions struct {
	GatewayTimeout    time.Duration
	CreateMaxAttempts int
	RetryBaseDelay    time.Duration
	Now               func() time.Time
}

func (o BookingOptions) withDefaults() BookingOptions {
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 10 * time.Second
	}
	if o.CreateMaxAttempts <= 0 {
		o.CreateMaxAttempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 200 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type bookingService struct {
	appointments repository.AppointmentRepository
	slots        repository.SlotRepository
	gateway      gateway.Gateway
	validator    *utils.Validator
	metrics      *metrics.BookingMetrics
	opts         BookingOptions
	log          *zap.Logger
}

func NewBookingService(repo *repository.Repository, gw gateway.Gateway, m *metrics.BookingMetrics, opts BookingOptions, log *zap.Logger) BookingService {
	opts = opts.withDefaults()
	return &bookingService{
		appointments: repo.Appointment,
		slots:        repo.Slot,
		gateway:      gw,
		validator:    utils.NewValidator(opts.Now),
		metrics:      m,
		opts:         opts,
		log:          log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.ObserveBooking(operation, outcome)
}

func (s *bookingService) CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (res *response.CreateBookingResponse, err error) {
	defer func() { s.observe("create", err) }()

	n, err := s.normalizeCreate(req)
	if err != nil {
		s.log.Warn("Create booking validation failed", zap.Error(err))
		return nil, err
	}

	amountMinor, err := gateway.ToMinorUnits(n.Amount, n.Currency)
	if err != nil {
		return nil, err
	}

	appointmentID := uuid.New()
	scheduledAt := entity.SlotTime(n.ScheduledAt)

	if err := s.slots.TryReserve(ctx, n.DoctorID, scheduledAt, appointmentID); err != nil {
		if apperror.IsKind(err, apperror.KindSlotUnavailable) {
			s.log.Warn("Slot unavailable",
				zap.String("doctor_id", n.DoctorID),
				zap.Time("scheduled_at", scheduledAt),
			)
		}
		return nil, err
	}

	intent, err := s.createIntent(ctx, gateway.CreateIntentParams{
		IdempotencyKey: appointmentID.String(),
		AmountMinor:    amountMinor,
		Currency:       n.Currency,
		ReceiptEmail:   n.PatientEmail,
		Metadata: map[string]string{
			gateway.MetadataAppointmentID: appointmentID.String(),
			"patient_id":                  n.PatientID,
			"doctor_id":                   n.DoctorID,
		},
	})
	if err != nil {
		s.releaseSlot(ctx, n.DoctorID, scheduledAt, appointmentID)
		return nil, err
	}

	now := s.opts.Now()
	appointment := &entity.Appointment{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        appointmentID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:       n.PatientID,
		PatientEmail:    n.PatientEmail,
		DoctorID:        n.DoctorID,
		ScheduledAt:     scheduledAt,
		Reason:          n.Reason,
		Amount:          gateway.ToMajorUnits(amountMinor, n.Currency),
		Currency:        n.Currency,
		PaymentIntentID: &intent.ID,
		Status:          entity.AppointmentStatusPendingPayment,
	}

	if err := s.appointments.Create(ctx, appointment); err != nil {
		s.log.Error("Failed to persist appointment after creating payment intent",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
			zap.String("payment_intent_id", intent.ID),
		)
		s.compensateIntent(ctx, appointmentID, intent.ID)
		s.releaseSlot(ctx, n.DoctorID, scheduledAt, appointmentID)
		if apperror.KindOf(err) == apperror.KindInternal {
			return nil, fmt.Errorf("create booking: %w", err)
		}
		return nil, err
	}

	if err := s.slots.Finalize(ctx, n.DoctorID, scheduledAt, appointmentID); err != nil {
		// The active-slot index on appointments still guards the slot.
		s.log.Warn("Failed to finalize slot hold",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
		)
	}

	s.log.Info("Booking created",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.String("doctor_id", n.DoctorID),
		zap.Time("scheduled_at", scheduledAt),
		zap.Int64("amount_minor", amountMinor),
	)

	return &response.CreateBookingResponse{
		AppointmentID:   appointmentID.String(),
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          appointment.Status,
		Amount:          appointment.Amount,
		Currency:        appointment.Currency,
	}, nil
}

// createIntent retries transient failures with exponential backoff under a
// single idempotency key. When every attempt fails transiently, or the caller
// gives up mid-backoff, the outcome is unknown, so the gateway is searched
// for an intent created by a lost response.
func (s *bookingService) createIntent(ctx context.Context, params gateway.CreateIntentParams) (*gateway.Intent, error) {
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.opts.RetryBaseDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	retries := backoff.WithMaxRetries(policy, uint64(s.opts.CreateMaxAttempts-1))

	attempt := 0
	var lastErr error
	intent, err := backoff.RetryNotifyWithData(func() (*gateway.Intent, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
		defer cancel()

		intent, err := s.gateway.CreateIntent(callCtx, params)
		if err == nil {
			return intent, nil
		}
		lastErr = err
		if !apperror.IsKind(err, apperror.KindGatewayUnavailable) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, backoff.WithContext(retries, ctx), func(err error, next time.Duration) {
		s.log.Warn("Payment gateway unavailable, retrying",
			zap.Error(err),
			zap.String("appointment_id", params.IdempotencyKey),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
		)
	})
	if err == nil {
		return intent, nil
	}
	if lastErr != nil && !apperror.IsKind(lastErr, apperror.KindGatewayUnavailable) {
		s.log.Warn("Payment intent rejected",
			zap.Error(lastErr),
			zap.String("appointment_id", params.IdempotencyKey),
		)
		return nil, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil || lastErr == nil {
		lastErr = apperror.Wrap(apperror.KindGatewayUnavailable, ctxErr, "create intent aborted")
	}

	// The lookup must run even when the caller is gone.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	intent, err = s.gateway.FindIntent(callCtx, params.IdempotencyKey)
	if err != nil {
		s.log.Error("Failed to look up payment intent after retries",
			zap.Error(err),
			zap.String("appointment_id", params.IdempotencyKey),
		)
		return nil, lastErr
	}
	if intent == nil {
		return nil, lastErr
	}

	if intent.AmountMinor != params.AmountMinor || intent.Currency != params.Currency {
		return nil, apperror.New(apperror.KindStateMismatch,
			"recovered intent %s charges %d %s, expected %d %s",
			intent.ID, intent.AmountMinor, intent.Currency, params.AmountMinor, params.Currency)
	}

	s.log.Info("Recovered payment intent after unknown create outcome",
		zap.String("appointment_id", params.IdempotencyKey),
		zap.String("payment_intent_id", intent.ID),
	)
	return intent, nil
}

// compensateIntent undoes an intent whose appointment could not be stored.
// It runs detached from ctx so a disconnected caller cannot skip it.
func (s *bookingService) compensateIntent(ctx context.Context, appointmentID uuid.UUID, intentID string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	refund, err := s.gateway.RefundIntent(callCtx, intentID, nil)
	if err == nil && !refund.Status.Accepted() {
		err = apperror.New(apperror.KindGatewayRejected, "refund %s ended %s", refund.ID, refund.Status)
	}
	if err != nil {
		s.metrics.ObserveCompensation(false)
		s.log.Error("Failed to compensate orphaned payment intent",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
			zap.String("payment_intent_id", intentID),
		)
		return
	}

	s.metrics.ObserveCompensation(true)
	s.log.Info("Orphaned payment intent compensated",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("payment_intent_id", intentID),
		zap.String("refund_status", string(refund.Status)),
	)
}

func (s *bookingService) releaseSlot(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) {
	if err := s.slots.Release(context.WithoutCancel(ctx), doctorID, scheduledAt, appointmentID); err != nil {
		s.log.Error("Failed to release slot",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
			zap.String("doctor_id", doctorID),
		)
	}
}

func (s *bookingService) ConfirmBooking(ctx context.Context, req *request.ConfirmBookingRequest) (res *response.BookingStatusResponse, err error) {
	defer func() { s.observe("confirm", err) }()

	n, err := s.normalizeConfirm(req)
	if err != nil {
		s.log.Warn("Confirm booking validation failed", zap.Error(err))
		return nil, err
	}

	appointment, err := s.loadAppointment(ctx, n.AppointmentID)
	if err != nil {
		return nil, err
	}

	if appointment.PaymentIntentID == nil || *appointment.PaymentIntentID != n.PaymentIntentID {
		return nil, apperror.New(apperror.KindStateMismatch, "payment intent does not belong to appointment %s", n.AppointmentID)
	}
	if appointment.DoctorID != n.DoctorID {
		return nil, apperror.New(apperror.KindStateMismatch, "doctor does not match appointment %s", n.AppointmentID)
	}

	switch appointment.Status {
	case entity.AppointmentStatusConfirmed:
		return response.AppointmentToStatusResponse(appointment), nil
	case entity.AppointmentStatusPendingPayment:
	default:
		return nil, apperror.New(apperror.KindStateMismatch, "appointment %s is %s, not %s",
			n.AppointmentID, appointment.Status, entity.AppointmentStatusPendingPayment)
	}

	confirmed, err := s.settlePending(ctx, appointment, n.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	return response.AppointmentToStatusResponse(confirmed), nil
}

// settlePending verifies a PendingPayment appointment's intent and applies
// the outcome. An intent still awaiting the patient changes nothing. With a
// payment method the intent is confirmed server-side first; a declined card
// is read back by the verify as a failed intent.
func (s *bookingService) settlePending(ctx context.Context, appointment *entity.Appointment, paymentMethodID string) (*entity.Appointment, error) {
	intentID := *appointment.PaymentIntentID

	if paymentMethodID != "" {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
		_, err := s.gateway.ConfirmIntent(callCtx, intentID, paymentMethodID)
		cancel()
		if err != nil && !apperror.IsKind(err, apperror.KindGatewayRejected) {
			s.log.Warn("Failed to confirm payment intent",
				zap.Error(err),
				zap.String("appointment_id", appointment.ID.String()),
				zap.String("payment_intent_id", intentID),
			)
			return nil, err
		}
		if err != nil {
			s.log.Warn("Payment method declined",
				zap.Error(err),
				zap.String("appointment_id", appointment.ID.String()),
				zap.String("payment_intent_id", intentID),
			)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	intent, err := s.gateway.VerifyIntent(callCtx, intentID)
	cancel()
	if err != nil {
		s.log.Warn("Failed to verify payment intent",
			zap.Error(err),
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("payment_intent_id", intentID),
		)
		return nil, err
	}

	if err := s.checkIntentMatches(appointment, intent); err != nil {
		return nil, err
	}

	switch intent.Status {
	case gateway.IntentSucceeded:
		return s.transition(ctx, appointment, entity.AppointmentStatusConfirmed, repository.TransitionPatch{})

	case gateway.IntentFailed, gateway.IntentCanceled:
		failed, err := s.transition(ctx, appointment, entity.AppointmentStatusFailed, repository.TransitionPatch{})
		if err != nil {
			return nil, err
		}
		s.releaseSlot(ctx, appointment.DoctorID, appointment.ScheduledAt, appointment.ID)
		if intent.Status == gateway.IntentFailed {
			// Stripe keeps a failed intent open for another payment method.
			failed = s.voidIntent(ctx, failed, "")
		}
		return failed, nil

	default:
		return appointment, nil
	}
}

func (s *bookingService) checkIntentMatches(appointment *entity.Appointment, intent *gateway.Intent) error {
	expected, err := gateway.ToMinorUnits(appointment.Amount, appointment.Currency)
	if err != nil {
		return err
	}
	if intent.AmountMinor != expected || intent.Currency != appointment.Currency {
		s.log.Error("Payment intent does not match appointment",
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("payment_intent_id", intent.ID),
			zap.Int64("expected_minor", expected),
			zap.Int64("intent_minor", intent.AmountMinor),
			zap.String("intent_currency", intent.Currency),
		)
		return apperror.New(apperror.KindStateMismatch, "payment intent %s amount or currency differs from appointment", intent.ID)
	}
	return nil
}

// voidIntent makes the intent of an appointment that will never be paid
// unpayable. It runs after the appointment left PendingPayment, so a
// concurrent confirm cannot race it. A payment that landed in between is
// refunded and the appointment moves on to Refunded. Gateway failures are
// logged and left to ReconcilePayment.
func (s *bookingService) voidIntent(ctx context.Context, appointment *entity.Appointment, reason string) *entity.Appointment {
	if appointment.PaymentIntentID == nil {
		return appointment
	}
	intentID := *appointment.PaymentIntentID
	ctx = context.WithoutCancel(ctx)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	refund, err := s.gateway.RefundIntent(callCtx, intentID, nil)
	cancel()
	if err == nil && !refund.Status.Accepted() {
		err = apperror.New(apperror.KindGatewayRejected, "void of %s ended %s", intentID, refund.Status)
	}
	if err != nil {
		s.log.Error("Failed to void payment intent",
			zap.Error(err),
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("payment_intent_id", intentID),
		)
		return appointment
	}
	if refund.Status == gateway.RefundVoided {
		s.log.Info("Payment intent voided",
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("payment_intent_id", intentID),
		)
		return appointment
	}

	s.log.Warn("Payment captured before void, refunded",
		zap.String("appointment_id", appointment.ID.String()),
		zap.String("payment_intent_id", intentID),
		zap.String("refund_id", refund.ID),
	)
	patch := repository.TransitionPatch{}
	if reason != "" {
		patch.CancellationReason = &reason
	}
	if refund.ID != "" {
		patch.RefundID = &refund.ID
	}
	refunded, err := s.transition(ctx, appointment, entity.AppointmentStatusRefunded, patch)
	if err != nil {
		s.log.Error("Failed to record refund of voided intent",
			zap.Error(err),
			zap.String("appointment_id", appointment.ID.String()),
		)
		return appointment
	}
	return refunded
}

// transition applies a conditional status change. When another caller moved
// the appointment first, the stored row is re-read and accepted if it already
// reached the same target.
func (s *bookingService) transition(ctx context.Context, appointment *entity.Appointment, to entity.AppointmentStatus, patch repository.TransitionPatch) (*entity.Appointment, error) {
	from := appointment.Status
	if !entity.CanTransition(from, to) {
		return nil, apperror.New(apperror.KindStateMismatch, "appointment %s cannot move from %s to %s",
			appointment.ID.String(), from, to)
	}

	err := s.appointments.Transition(ctx, appointment.ID, from, to, patch)
	if err == nil {
		s.log.Info("Appointment transitioned",
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		updated := *appointment
		updated.Status = to
		updated.UpdatedAt = s.opts.Now()
		if patch.CancellationReason != nil {
			updated.CancellationReason = patch.CancellationReason
		}
		if patch.RefundID != nil {
			updated.RefundID = patch.RefundID
		}
		return &updated, nil
	}

	if !apperror.IsKind(err, apperror.KindStaleState) {
		return nil, err
	}

	current, readErr := s.appointments.FindByID(ctx, appointment.ID)
	if readErr != nil {
		return nil, fmt.Errorf("re-read appointment %s: %w", appointment.ID.String(), readErr)
	}
	if current != nil && current.Status == to {
		s.log.Info("Appointment already transitioned by another caller",
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("status", string(to)),
		)
		return current, nil
	}
	return nil, err
}

func (s *bookingService) CancelBooking(ctx context.Context, req *request.CancelBookingRequest) (res *response.BookingStatusResponse, err error) {
	defer func() { s.observe("cancel", err) }()

	n, err := s.normalizeCancel(req)
	if err != nil {
		s.log.Warn("Cancel booking validation failed", zap.Error(err))
		return nil, err
	}

	appointment, err := s.loadAppointment(ctx, n.AppointmentID)
	if err != nil {
		return nil, err
	}

	switch appointment.Status {
	case entity.AppointmentStatusPendingPayment:
		reason := n.CancellationReason
		cancelled, err := s.transition(ctx, appointment, entity.AppointmentStatusCancelled,
			repository.TransitionPatch{CancellationReason: &reason})
		if err != nil {
			return nil, err
		}
		s.releaseSlot(ctx, appointment.DoctorID, appointment.ScheduledAt, appointment.ID)
		cancelled = s.voidIntent(ctx, cancelled, reason)
		return response.AppointmentToStatusResponse(cancelled), nil

	case entity.AppointmentStatusConfirmed:
		refunded, err := s.refundConfirmed(ctx, appointment, n.CancellationReason)
		if err != nil {
			return nil, err
		}
		s.releaseSlot(ctx, appointment.DoctorID, appointment.ScheduledAt, appointment.ID)
		return response.AppointmentToStatusResponse(refunded), nil

	case entity.AppointmentStatusCancelled, entity.AppointmentStatusRefunded:
		return response.AppointmentToStatusResponse(appointment), nil

	default:
		return nil, apperror.New(apperror.KindStateMismatch, "appointment %s is %s and cannot be cancelled",
			n.AppointmentID, appointment.Status)
	}
}

// refundConfirmed refunds the full captured amount and only then moves the
// appointment to Refunded. A failed refund leaves it Confirmed with the
// cancellation request recorded.
func (s *bookingService) refundConfirmed(ctx context.Context, appointment *entity.Appointment, reason string) (*entity.Appointment, error) {
	intentID := *appointment.PaymentIntentID

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	refund, err := s.gateway.RefundIntent(callCtx, intentID, nil)
	cancel()
	if err == nil && !refund.Status.Accepted() {
		err = apperror.New(apperror.KindGatewayRejected, "refund %s ended %s", refund.ID, refund.Status)
	}
	if err != nil {
		s.log.Error("Refund failed, cancellation left pending",
			zap.Error(err),
			zap.String("appointment_id", appointment.ID.String()),
			zap.String("payment_intent_id", intentID),
		)
		if appointment.Status == entity.AppointmentStatusConfirmed {
			if recErr := s.appointments.RecordCancellationRequest(context.WithoutCancel(ctx), appointment.ID, reason); recErr != nil {
				s.log.Error("Failed to record cancellation request",
					zap.Error(recErr),
					zap.String("appointment_id", appointment.ID.String()),
				)
			}
		}
		return nil, err
	}

	expected, _ := gateway.ToMinorUnits(appointment.Amount, appointment.Currency)
	if refund.Status != gateway.RefundVoided && refund.AmountMinor != expected {
		s.log.Warn("Refund amount differs from appointment amount",
			zap.String("appointment_id", appointment.ID.String()),
			zap.Int64("expected_minor", expected),
			zap.Int64("refund_minor", refund.AmountMinor),
		)
	}

	patch := repository.TransitionPatch{CancellationReason: &reason}
	if refund.ID != "" {
		patch.RefundID = &refund.ID
	}
	return s.transition(ctx, appointment, entity.AppointmentStatusRefunded, patch)
}

func (s *bookingService) ReconcilePayment(ctx context.Context, intentID string) (err error) {
	defer func() { s.observe("reconcile", err) }()

	appointment, err := s.appointments.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return fmt.Errorf("find appointment by payment intent %s: %w", intentID, err)
	}
	if appointment == nil {
		return apperror.New(apperror.KindNotFound, "no appointment for payment intent %s", intentID)
	}

	switch appointment.Status {
	case entity.AppointmentStatusPendingPayment:
		_, err := s.settlePending(ctx, appointment, "")
		return err

	case entity.AppointmentStatusCancelled, entity.AppointmentStatusFailed:
		// The patient may have paid after cancelling, or with a second
		// payment method after the first was declined.
		if appointment.RefundID != nil {
			return nil
		}
		callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
		intent, err := s.gateway.VerifyIntent(callCtx, intentID)
		cancel()
		if err != nil {
			return err
		}
		if intent.Status != gateway.IntentSucceeded {
			return nil
		}
		reason := latePaymentReason
		if appointment.CancellationReason != nil {
			reason = *appointment.CancellationReason
		}
		_, err = s.refundConfirmed(ctx, appointment, reason)
		return err

	default:
		return nil
	}
}

func (s *bookingService) loadAppointment(ctx context.Context, id string) (*entity.Appointment, error) {
	appointmentID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation([]apperror.FieldError{{Field: "appointment_id", Reason: "Must be a valid UUID"}})
	}

	appointment, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("find appointment %s: %w", id, err)
	}
	if appointment == nil {
		return nil, apperror.New(apperror.KindNotFound, "appointment %s not found", id)
	}
	return appointment, nil
}

func (s *bookingService) GetBooking(ctx context.Context, appointmentID string) (*response.AppointmentResponse, error) {
	appointment, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	res := response.AppointmentToResponse(appointment)
	return &res, nil
}

func (s *bookingService) GetPatientBookings(ctx context.Context, patientID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.AppointmentResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	appointments, err := s.appointments.FindByPatientID(ctx, patientID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get patient bookings",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
		return nil, fmt.Errorf("get patient bookings: %w", err)
	}

	total, err := s.appointments.CountByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("count patient bookings: %w", err)
	}

	items := make([]response.AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		items = append(items, response.AppointmentToResponse(a))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	return response.NewPaginatedResponse(items, page, limit, total), nil
}
