package usecase

import (
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/gateway"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Booking BookingService
}

func NewService(repo *repository.Repository, gw gateway.Gateway, m *metrics.BookingMetrics, config *utils.Config, log *zap.Logger) *Service {
	return &Service{
		Booking: NewBookingService(repo, gw, m, BookingOptions{
			GatewayTimeout:    config.Booking.GatewayTimeout,
			CreateMaxAttempts: config.Booking.CreateIntentMaxAttempts,
			RetryBaseDelay:    config.Booking.RetryBaseDelay,
		}, log),
	}
}
