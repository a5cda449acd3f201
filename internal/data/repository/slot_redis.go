package repository

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	releaseSlotScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

	finalizeSlotScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PERSIST", KEYS[1])
	return 1
end
return 0
`)
)

type redisSlotRepository struct {
	rdb     *redis.Client
	holdTTL time.Duration
	log     *zap.Logger
}

// NewRedisSlotRepository keeps slot holds in Redis. An unfinalized hold
// expires after holdTTL; Finalize makes it permanent until Release.
func NewRedisSlotRepository(rdb *redis.Client, holdTTL time.Duration, log *zap.Logger) SlotRepository {
	return &redisSlotRepository{
		rdb:     rdb,
		holdTTL: holdTTL,
		log:     log.With(zap.String("repository", "slot_redis")),
	}
}

func slotKey(doctorID string, scheduledAt time.Time) string {
	return fmt.Sprintf("slot:%s:%d", doctorID, entity.SlotTime(scheduledAt).Unix())
}

func (r *redisSlotRepository) TryReserve(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	key := slotKey(doctorID, scheduledAt)

	ok, err := r.rdb.SetNX(ctx, key, appointmentID.String(), r.holdTTL).Result()
	if err != nil {
		r.log.Error("Failed to reserve slot",
			zap.Error(err),
			zap.String("key", key),
		)
		return fmt.Errorf("reserve slot %s: %w", key, err)
	}

	if !ok {
		return apperror.New(apperror.KindSlotUnavailable, "doctor %s is not available at %s",
			doctorID, entity.SlotTime(scheduledAt).Format(time.RFC3339))
	}

	return nil
}

func (r *redisSlotRepository) Finalize(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	key := slotKey(doctorID, scheduledAt)

	n, err := finalizeSlotScript.Run(ctx, r.rdb, []string{key}, appointmentID.String()).Int()
	if err != nil {
		r.log.Error("Failed to finalize slot", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("finalize slot %s: %w", key, err)
	}

	if n == 0 {
		return apperror.New(apperror.KindStaleState, "slot %s is not held by appointment %s", key, appointmentID.String())
	}

	return nil
}

func (r *redisSlotRepository) Release(ctx context.Context, doctorID string, scheduledAt time.Time, appointmentID uuid.UUID) error {
	key := slotKey(doctorID, scheduledAt)

	n, err := releaseSlotScript.Run(ctx, r.rdb, []string{key}, appointmentID.String()).Int()
	if err != nil {
		r.log.Error("Failed to release slot", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("release slot %s: %w", key, err)
	}

	if n > 0 {
		r.log.Info("Slot released",
			zap.String("key", key),
			zap.String("appointment_id", appointmentID.String()),
		)
	}

	return nil
}
