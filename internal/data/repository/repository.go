package repository

import (
	"time"

	"clinic-booking/pkg/database"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Repository struct {
	Appointment AppointmentRepository
	Slot        SlotRepository
}

// NewRepository builds the Postgres-backed repositories. When rdb is non-nil
// slot holds live in Redis instead of the slot_reservations table.
func NewRepository(db database.PgxIface, rdb *redis.Client, slotHoldTTL time.Duration, log *zap.Logger) *Repository {
	repo := &Repository{
		Appointment: NewAppointmentRepository(db, log),
		Slot:        NewSlotRepository(db, slotHoldTTL, log),
	}

	if rdb != nil {
		repo.Slot = NewRedisSlotRepository(rdb, slotHoldTTL, log)
	}

	return repo
}
