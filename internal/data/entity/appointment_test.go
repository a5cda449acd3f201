package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{AppointmentStatusDraft, AppointmentStatusPendingPayment, true},
		{AppointmentStatusPendingPayment, AppointmentStatusConfirmed, true},
		{AppointmentStatusPendingPayment, AppointmentStatusFailed, true},
		{AppointmentStatusPendingPayment, AppointmentStatusCancelled, true},
		{AppointmentStatusConfirmed, AppointmentStatusRefunded, true},
		{AppointmentStatusCancelled, AppointmentStatusRefunded, true},
		{AppointmentStatusFailed, AppointmentStatusRefunded, true},
		{AppointmentStatusPendingPayment, AppointmentStatusRefunded, false},
		{AppointmentStatusFailed, AppointmentStatusConfirmed, false},
		{AppointmentStatusRefunded, AppointmentStatusConfirmed, false},
		{AppointmentStatusDraft, AppointmentStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestHoldsSlot(t *testing.T) {
	assert.True(t, AppointmentStatusPendingPayment.HoldsSlot())
	assert.True(t, AppointmentStatusConfirmed.HoldsSlot())
	assert.False(t, AppointmentStatusCancelled.HoldsSlot())
	assert.False(t, AppointmentStatusFailed.HoldsSlot())
}

func TestSlotTimeNormalizesZoneAndSubseconds(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2030, 1, 2, 15, 30, 0, 123456789, loc)

	got := SlotTime(local)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC), got)
}
