package usecase

import (
	"strings"

	"clinic-booking/internal/dto/request"
	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/utils"
)

const defaultCurrency = "usd"

// The normalize* helpers trim and lower-case inputs, then validate the
// normalized copy. Every violated field is reported at once.

func (s *bookingService) normalizeCreate(req *request.CreateBookingRequest) (*request.CreateBookingRequest, error) {
	n := *req
	n.PatientID = strings.TrimSpace(n.PatientID)
	n.PatientEmail = strings.TrimSpace(n.PatientEmail)
	n.DoctorID = strings.TrimSpace(n.DoctorID)
	n.Reason = strings.TrimSpace(n.Reason)
	n.Currency = utils.NormalizeCode(n.Currency)

	if fields := s.validator.Struct(&n); len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}
	return &n, nil
}

func (s *bookingService) normalizeConfirm(req *request.ConfirmBookingRequest) (*request.ConfirmBookingRequest, error) {
	n := *req
	n.AppointmentID = strings.TrimSpace(n.AppointmentID)
	n.PaymentIntentID = strings.TrimSpace(n.PaymentIntentID)
	n.DoctorID = strings.TrimSpace(n.DoctorID)
	n.PaymentMethodID = strings.TrimSpace(n.PaymentMethodID)
	n.Currency = utils.NormalizeCode(n.Currency)
	if n.Currency == "" {
		n.Currency = defaultCurrency
	}

	if fields := s.validator.Struct(&n); len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}
	return &n, nil
}

func (s *bookingService) normalizeCancel(req *request.CancelBookingRequest) (*request.CancelBookingRequest, error) {
	n := *req
	n.AppointmentID = strings.TrimSpace(n.AppointmentID)
	n.CancellationReason = strings.TrimSpace(n.CancellationReason)
	n.Currency = utils.NormalizeCode(n.Currency)
	if n.Currency == "" {
		n.Currency = defaultCurrency
	}

	if fields := s.validator.Struct(&n); len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}
	return &n, nil
}
