package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/gateway"
	"clinic-booking/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memAppointments is an in-memory AppointmentRepository with the same
// uniqueness and conditional-write rules as the Postgres schema.
type memAppointments struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]entity.Appointment
	transitions int
	failCreate  error
}

func newMemAppointments() *memAppointments {
	return &memAppointments{rows: make(map[uuid.UUID]entity.Appointment)}
}

func (m *memAppointments) Create(ctx context.Context, a *entity.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		err := m.failCreate
		m.failCreate = nil
		return err
	}
	for _, row := range m.rows {
		if row.PaymentIntentID != nil && a.PaymentIntentID != nil && *row.PaymentIntentID == *a.PaymentIntentID {
			return errors.New("duplicate payment_intent_id")
		}
		if row.DoctorID == a.DoctorID && row.ScheduledAt.Equal(a.ScheduledAt) && row.Status.HoldsSlot() && a.Status.HoldsSlot() {
			return apperror.New(apperror.KindSlotUnavailable, "slot already booked")
		}
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *memAppointments) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memAppointments) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.PaymentIntentID != nil && *row.PaymentIntentID == paymentIntentID {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memAppointments) FindByPatientID(ctx context.Context, patientID string, limit, offset int) ([]*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Appointment
	for _, row := range m.rows {
		if row.PatientID == patientID {
			r := row
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if offset >= len(out) {
		return nil, nil
	}
	end := min(offset+limit, len(out))
	return out[offset:end], nil
}

func (m *memAppointments) CountByPatientID(ctx context.Context, patientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		if row.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

func (m *memAppointments) Transition(ctx context.Context, id uuid.UUID, from, to entity.AppointmentStatus, patch repository.TransitionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != from {
		return apperror.New(apperror.KindStaleState, "appointment %s is no longer %s", id, from)
	}
	row.Status = to
	if patch.CancellationReason != nil {
		row.CancellationReason = patch.CancellationReason
	}
	if patch.RefundID != nil {
		row.RefundID = patch.RefundID
	}
	m.rows[id] = row
	m.transitions++
	return nil
}

func (m *memAppointments) RecordCancellationRequest(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != entity.AppointmentStatusConfirmed {
		return apperror.New(apperror.KindStaleState, "appointment %s is no longer confirmed", id)
	}
	now := time.Now()
	row.CancellationRequestedAt = &now
	row.PendingCancelReason = &reason
	m.rows[id] = row
	return nil
}

func (m *memAppointments) get(t *testing.T, id string) entity.Appointment {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[uuid.MustParse(id)]
	require.True(t, ok, "appointment %s not stored", id)
	return row
}

func (m *memAppointments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memAppointments) transitionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitions
}

// lossyGateway creates intents but reports every create as unavailable, like
// a processor whose responses time out after the work is done.
type lossyGateway struct {
	*gateway.FakeGateway
}

func (g lossyGateway) CreateIntent(ctx context.Context, p gateway.CreateIntentParams) (*gateway.Intent, error) {
	if _, err := g.FakeGateway.CreateIntent(ctx, p); err != nil {
		return nil, err
	}
	return nil, apperror.New(apperror.KindGatewayUnavailable, "create intent: response lost")
}

// abandoningGateway creates the intent, then the caller gives up before the
// response arrives.
type abandoningGateway struct {
	*gateway.FakeGateway
	abandon context.CancelFunc
}

func (g abandoningGateway) CreateIntent(ctx context.Context, p gateway.CreateIntentParams) (*gateway.Intent, error) {
	if _, err := g.FakeGateway.CreateIntent(ctx, p); err != nil {
		return nil, err
	}
	g.abandon()
	return nil, apperror.New(apperror.KindGatewayUnavailable, "create intent: response lost")
}

var testNow = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type bookingFixture struct {
	svc          BookingService
	appointments *memAppointments
	gw           *gateway.FakeGateway
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	gw := gateway.NewFakeGateway()
	return newBookingFixtureWith(t, gw, gw)
}

func newBookingFixtureWith(t *testing.T, fake *gateway.FakeGateway, gw gateway.Gateway) *bookingFixture {
	t.Helper()
	return newBookingFixtureOpts(t, fake, gw, BookingOptions{
		GatewayTimeout:    time.Second,
		CreateMaxAttempts: 3,
		RetryBaseDelay:    time.Millisecond,
		Now:               func() time.Time { return testNow },
	})
}

func newBookingFixtureOpts(t *testing.T, fake *gateway.FakeGateway, gw gateway.Gateway, opts BookingOptions) *bookingFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	appointments := newMemAppointments()
	repo := &repository.Repository{
		Appointment: appointments,
		Slot:        repository.NewRedisSlotRepository(rdb, 15*time.Minute, zap.NewNop()),
	}

	svc := NewBookingService(repo, gw, nil, opts, zap.NewNop())

	return &bookingFixture{svc: svc, appointments: appointments, gw: fake}
}

func validCreateRequest() *request.CreateBookingRequest {
	return &request.CreateBookingRequest{
		PatientID:    "patient-1",
		PatientEmail: "patient@example.com",
		DoctorID:     "doctor-1",
		ScheduledAt:  testNow.Add(48 * time.Hour),
		Reason:       "annual checkup",
		Amount:       decimal.RequireFromString("49.99"),
		Currency:     "usd",
	}
}

func (f *bookingFixture) confirm(t *testing.T, appointmentID, intentID string) (*entity.Appointment, error) {
	t.Helper()
	_, err := f.svc.ConfirmBooking(context.Background(), &request.ConfirmBookingRequest{
		AppointmentID:   appointmentID,
		PaymentIntentID: intentID,
		DoctorID:        "doctor-1",
	})
	row := f.appointments.get(t, appointmentID)
	return &row, err
}

func TestCreateBookingSendsMinorUnits(t *testing.T) {
	f := newBookingFixture(t)

	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.AppointmentStatusPendingPayment, res.Status)
	assert.NotEmpty(t, res.PaymentIntentID)
	assert.NotEmpty(t, res.ClientSecret)
	assert.True(t, decimal.RequireFromString("49.99").Equal(res.Amount), "got %s", res.Amount)

	intent, err := f.gw.VerifyIntent(context.Background(), res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, int64(4999), intent.AmountMinor)
	assert.Equal(t, "usd", intent.Currency)

	stored := f.appointments.get(t, res.AppointmentID)
	assert.Equal(t, entity.AppointmentStatusPendingPayment, stored.Status)
	require.NotNil(t, stored.PaymentIntentID)
	assert.Equal(t, res.PaymentIntentID, *stored.PaymentIntentID)
}

func TestCreateBookingValidationReportsAllFields(t *testing.T) {
	f := newBookingFixture(t)

	req := validCreateRequest()
	req.PatientEmail = "nope"
	req.ScheduledAt = testNow.Add(-time.Hour)
	req.Reason = "hi"
	req.Amount = decimal.Zero
	req.Currency = "GBP"

	_, err := f.svc.CreateBooking(context.Background(), req)
	require.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)

	fields := map[string]bool{}
	for _, fe := range apperror.FieldsOf(err) {
		fields[fe.Field] = true
	}
	for _, name := range []string{"patient_email", "scheduled_at", "reason", "amount", "currency"} {
		assert.True(t, fields[name], "missing violation for %s", name)
	}
	assert.Equal(t, 0, f.gw.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 0, f.appointments.count())
}

func TestCreateBookingConcurrentSameSlot(t *testing.T) {
	f := newBookingFixture(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.IsKind(err, apperror.KindSlotUnavailable):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, taken)
	assert.Equal(t, 1, f.gw.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 1, f.appointments.count())
}

func TestCreateBookingRetriesTransientGatewayErrors(t *testing.T) {
	f := newBookingFixture(t)
	unavailable := apperror.New(apperror.KindGatewayUnavailable, "503")
	f.gw.FailNext(gateway.OpCreateIntent, unavailable, unavailable)

	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.AppointmentStatusPendingPayment, res.Status)
	assert.Equal(t, 3, f.gw.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 1, f.gw.IntentCount())
}

func TestCreateBookingGivesUpAfterMaxAttempts(t *testing.T) {
	f := newBookingFixture(t)
	unavailable := apperror.New(apperror.KindGatewayUnavailable, "503")
	f.gw.FailNext(gateway.OpCreateIntent, unavailable, unavailable, unavailable)

	_, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.True(t, apperror.IsKind(err, apperror.KindGatewayUnavailable))
	assert.Equal(t, 3, f.gw.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 1, f.gw.Calls(gateway.OpFindIntent))
	assert.Equal(t, 0, f.appointments.count())

	// The slot was released.
	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestCreateBookingRecoversIntentWithLostResponse(t *testing.T) {
	fake := gateway.NewFakeGateway()
	f := newBookingFixtureWith(t, fake, lossyGateway{fake})

	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.IntentCount())
	assert.Equal(t, 3, fake.Calls(gateway.OpCreateIntent))
	assert.Equal(t, entity.AppointmentStatusPendingPayment, res.Status)
	assert.NotEmpty(t, res.PaymentIntentID)
}

func TestCreateBookingRecoversIntentWhenCallerGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := gateway.NewFakeGateway()
	f := newBookingFixtureOpts(t, fake, abandoningGateway{FakeGateway: fake, abandon: cancel}, BookingOptions{
		GatewayTimeout:    time.Second,
		CreateMaxAttempts: 3,
		RetryBaseDelay:    time.Hour,
		Now:               func() time.Time { return testNow },
	})

	res, err := f.svc.CreateBooking(ctx, validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 1, fake.Calls(gateway.OpFindIntent))
	assert.Equal(t, 1, fake.IntentCount())
	assert.Equal(t, "pi_fake_1", res.PaymentIntentID)

	stored := f.appointments.get(t, res.AppointmentID)
	require.NotNil(t, stored.PaymentIntentID)
	assert.Equal(t, "pi_fake_1", *stored.PaymentIntentID)
}

func TestCreateBookingGatewayRejectedReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.gw.FailNext(gateway.OpCreateIntent, apperror.New(apperror.KindGatewayRejected, "invalid currency"))

	_, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.True(t, apperror.IsKind(err, apperror.KindGatewayRejected))
	assert.Equal(t, 1, f.gw.Calls(gateway.OpCreateIntent))
	assert.Equal(t, 0, f.appointments.count())

	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestCreateBookingCompensatesWhenPersistFails(t *testing.T) {
	f := newBookingFixture(t)
	f.appointments.failCreate = errors.New("connection refused")

	_, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	assert.Equal(t, 0, f.appointments.count())
	assert.Equal(t, 1, f.gw.Calls(gateway.OpRefundIntent))

	// The orphaned intent was voided, not left payable.
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	first, err := f.gw.VerifyIntent(context.Background(), "pi_fake_1")
	require.NoError(t, err)
	assert.Equal(t, gateway.IntentCanceled, first.Status)
	assert.NotEqual(t, "pi_fake_1", res.PaymentIntentID)
}

func TestConfirmBookingSucceeded(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusConfirmed, stored.Status)
}

func TestConfirmBookingTwiceIsIdempotent(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)

	req := &request.ConfirmBookingRequest{
		AppointmentID:   res.AppointmentID,
		PaymentIntentID: res.PaymentIntentID,
		DoctorID:        "doctor-1",
	}
	first, err := f.svc.ConfirmBooking(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.ConfirmBooking(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, entity.AppointmentStatusConfirmed, first.Status)
	assert.Equal(t, entity.AppointmentStatusConfirmed, second.Status)
	assert.Equal(t, 1, f.appointments.transitionCount())
}

func TestConfirmBookingConcurrent(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)

	req := &request.ConfirmBookingRequest{
		AppointmentID:   res.AppointmentID,
		PaymentIntentID: res.PaymentIntentID,
		DoctorID:        "doctor-1",
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	statuses := make([]entity.AppointmentStatus, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.svc.ConfirmBooking(context.Background(), req)
			errs[i] = err
			if out != nil {
				statuses[i] = out.Status
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
		assert.Equal(t, entity.AppointmentStatusConfirmed, statuses[i])
	}
	assert.Equal(t, 1, f.appointments.transitionCount())
}

func TestConfirmBookingFailedPaymentReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentFailed)

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusFailed, stored.Status)

	again, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusPendingPayment, again.Status)
}

func TestConfirmBookingFailedPaymentVoidsIntent(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentFailed)

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusFailed, stored.Status)
	assert.Nil(t, stored.RefundID)

	assert.Equal(t, 1, f.gw.Calls(gateway.OpRefundIntent))
	intent, err := f.gw.VerifyIntent(context.Background(), res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, gateway.IntentCanceled, intent.Status)
}

func TestConfirmBookingFailedPaymentVoidFailureStillFails(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentFailed)
	f.gw.FailNext(gateway.OpRefundIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusFailed, stored.Status)

	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestConfirmBookingWithPaymentMethod(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	out, err := f.svc.ConfirmBooking(context.Background(), &request.ConfirmBookingRequest{
		AppointmentID:   res.AppointmentID,
		PaymentIntentID: res.PaymentIntentID,
		DoctorID:        "doctor-1",
		PaymentMethodID: " pm_card_visa ",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusConfirmed, out.Status)
	assert.Equal(t, 1, f.gw.Calls(gateway.OpConfirmIntent))
	assert.Equal(t, entity.AppointmentStatusConfirmed, f.appointments.get(t, res.AppointmentID).Status)
}

func TestConfirmBookingDeclinedPaymentMethodFails(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	out, err := f.svc.ConfirmBooking(context.Background(), &request.ConfirmBookingRequest{
		AppointmentID:   res.AppointmentID,
		PaymentIntentID: res.PaymentIntentID,
		DoctorID:        "doctor-1",
		PaymentMethodID: gateway.DeclinedPaymentMethod,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusFailed, out.Status)

	intent, err := f.gw.VerifyIntent(context.Background(), res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, gateway.IntentCanceled, intent.Status)

	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestConfirmBookingPaymentMethodGatewayUnavailable(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.FailNext(gateway.OpConfirmIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))

	_, err = f.svc.ConfirmBooking(context.Background(), &request.ConfirmBookingRequest{
		AppointmentID:   res.AppointmentID,
		PaymentIntentID: res.PaymentIntentID,
		DoctorID:        "doctor-1",
		PaymentMethodID: "pm_card_visa",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindGatewayUnavailable))
	assert.Equal(t, 0, f.gw.Calls(gateway.OpVerifyIntent))
	assert.Equal(t, entity.AppointmentStatusPendingPayment, f.appointments.get(t, res.AppointmentID).Status)
}

func TestConfirmBookingAwaitingPaymentLeavesPending(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusPendingPayment, stored.Status)
	assert.Equal(t, 0, f.appointments.transitionCount())
}

func TestConfirmBookingGatewayUnavailableChangesNothing(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	f.gw.FailNext(gateway.OpVerifyIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))

	stored, err := f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	assert.True(t, apperror.IsKind(err, apperror.KindGatewayUnavailable))
	assert.Equal(t, entity.AppointmentStatusPendingPayment, stored.Status)

	stored, err = f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusConfirmed, stored.Status)
}

func TestConfirmBookingWrongIntentIsStateMismatch(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = f.confirm(t, res.AppointmentID, "pi_someone_else")
	assert.True(t, apperror.IsKind(err, apperror.KindStateMismatch))
	assert.Equal(t, 0, f.gw.Calls(gateway.OpVerifyIntent))
}

func TestConfirmBookingUnknownAppointment(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.ConfirmBooking(context.Background(), &request.ConfirmBookingRequest{
		AppointmentID:   uuid.NewString(),
		PaymentIntentID: "pi_1",
		DoctorID:        "doctor-1",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestCancelConfirmedBookingRefundsFullAmount(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	_, err = f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)

	out, err := f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "feeling better now",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusRefunded, out.Status)
	require.NotNil(t, out.RefundID)

	stored := f.appointments.get(t, res.AppointmentID)
	assert.Equal(t, entity.AppointmentStatusRefunded, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "feeling better now", *stored.CancellationReason)
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))

	// Slot is free again.
	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestCancelConfirmedBookingRefundFailureKeepsConfirmed(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	_, err = f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)

	f.gw.FailNext(gateway.OpRefundIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))

	_, err = f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "feeling better now",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindGatewayUnavailable))

	stored := f.appointments.get(t, res.AppointmentID)
	assert.Equal(t, entity.AppointmentStatusConfirmed, stored.Status)
	assert.Nil(t, stored.CancellationReason)
	assert.NotNil(t, stored.CancellationRequestedAt)
	assert.Equal(t, int64(0), f.gw.Refunded(res.PaymentIntentID))

	// The slot is still held by the confirmed appointment.
	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.True(t, apperror.IsKind(err, apperror.KindSlotUnavailable))
}

func TestCancelPendingBookingVoidsIntent(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	out, err := f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "found another clinic",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, out.Status)
	assert.Nil(t, out.RefundID)

	// Nothing was captured, so nothing was refunded.
	assert.Equal(t, 1, f.gw.Calls(gateway.OpRefundIntent))
	assert.Equal(t, int64(0), f.gw.Refunded(res.PaymentIntentID))
	intent, err := f.gw.VerifyIntent(context.Background(), res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, gateway.IntentCanceled, intent.Status)

	_, err = f.svc.CreateBooking(context.Background(), validCreateRequest())
	assert.NoError(t, err)
}

func TestCancelPendingBookingVoidFailureStillCancels(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.FailNext(gateway.OpRefundIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))

	out, err := f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "found another clinic",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, out.Status)

	// A payment on the still-open intent is refunded by reconciliation.
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, entity.AppointmentStatusRefunded, f.appointments.get(t, res.AppointmentID).Status)
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))
}

func TestCancelPendingBookingPaidMeanwhileIsRefunded(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Paid at the processor, webhook not yet delivered.
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)

	out, err := f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "found another clinic",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusRefunded, out.Status)
	require.NotNil(t, out.RefundID)
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))

	stored := f.appointments.get(t, res.AppointmentID)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "found another clinic", *stored.CancellationReason)

	// The late webhook finds nothing left to do.
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, 1, f.gw.Calls(gateway.OpRefundIntent))
}

func TestCancelFailedBookingIsStateMismatch(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentCanceled)
	_, err = f.confirm(t, res.AppointmentID, res.PaymentIntentID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "changed my mind",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindStateMismatch))
}

func TestReconcilePaymentConfirmsPending(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)

	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, entity.AppointmentStatusConfirmed, f.appointments.get(t, res.AppointmentID).Status)

	// A second delivery of the same event is a no-op.
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, 1, f.appointments.transitionCount())
}

func TestReconcilePaymentRefundsLatePaymentOnCancelled(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), &request.CancelBookingRequest{
		AppointmentID:      res.AppointmentID,
		CancellationReason: "found another clinic",
	})
	require.NoError(t, err)

	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))

	stored := f.appointments.get(t, res.AppointmentID)
	assert.Equal(t, entity.AppointmentStatusRefunded, stored.Status)
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))
}

func TestReconcilePaymentRefundsPaymentOnFailedBooking(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// First card declined, the void does not reach the processor.
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentFailed)
	f.gw.FailNext(gateway.OpRefundIntent, apperror.New(apperror.KindGatewayUnavailable, "timeout"))
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, entity.AppointmentStatusFailed, f.appointments.get(t, res.AppointmentID).Status)

	// The patient retries with a second card on the open intent.
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentSucceeded)
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))

	stored := f.appointments.get(t, res.AppointmentID)
	assert.Equal(t, entity.AppointmentStatusRefunded, stored.Status)
	require.NotNil(t, stored.RefundID)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, latePaymentReason, *stored.CancellationReason)
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))

	// Redelivery does not refund twice.
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, int64(4999), f.gw.Refunded(res.PaymentIntentID))
}

func TestReconcilePaymentIgnoresUnpaidFailedBooking(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.gw.SetStatus(res.PaymentIntentID, gateway.IntentFailed)
	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))

	require.NoError(t, f.svc.ReconcilePayment(context.Background(), res.PaymentIntentID))
	assert.Equal(t, entity.AppointmentStatusFailed, f.appointments.get(t, res.AppointmentID).Status)
	assert.Equal(t, 1, f.gw.Calls(gateway.OpRefundIntent))
}

func TestReconcilePaymentUnknownIntent(t *testing.T) {
	f := newBookingFixture(t)

	err := f.svc.ReconcilePayment(context.Background(), "pi_unknown")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestGetPatientBookingsPaginates(t *testing.T) {
	f := newBookingFixture(t)
	for i := 0; i < 3; i++ {
		req := validCreateRequest()
		req.ScheduledAt = testNow.Add(time.Duration(24*(i+1)) * time.Hour)
		_, err := f.svc.CreateBooking(context.Background(), req)
		require.NoError(t, err)
	}

	page, err := f.svc.GetPatientBookings(context.Background(), "patient-1", &request.PaginatedRequest{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Data[0].ScheduledAt.After(page.Data[1].ScheduledAt))

	one, err := f.svc.GetBooking(context.Background(), page.Data[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page.Data[0].ID, one.ID)

	_, err = f.svc.GetBooking(context.Background(), "not-a-uuid")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
