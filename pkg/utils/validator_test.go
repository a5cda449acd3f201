package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	Email       string          `json:"email" validate:"required,email"`
	ScheduledAt time.Time       `json:"scheduled_at" validate:"required,future"`
	Reason      string          `json:"reason" validate:"required,min=5,max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,lte=9999999999.99"`
	Currency    string          `json:"currency" validate:"required,oneof=usd inr eur"`
}

func TestValidatorReportsEveryField(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(func() time.Time { return now })

	fields := v.Struct(sampleRequest{
		Email:       "not-an-email",
		ScheduledAt: now.Add(-time.Minute),
		Reason:      "hi",
		Amount:      decimal.Zero,
		Currency:    "gbp",
	})

	byField := map[string]string{}
	for _, f := range fields {
		byField[f.Field] = f.Reason
	}
	assert.Len(t, fields, 5)
	assert.Equal(t, "Invalid email format", byField["email"])
	assert.Equal(t, "Must be in the future", byField["scheduled_at"])
	assert.Equal(t, "Minimum length is 5", byField["reason"])
	assert.Equal(t, "Must be greater than 0", byField["amount"])
	assert.Equal(t, "Must be one of: usd, inr, eur", byField["currency"])
}

func TestValidatorAcceptsValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(func() time.Time { return now })

	fields := v.Struct(sampleRequest{
		Email:       "patient@example.com",
		ScheduledAt: now.Add(24 * time.Hour),
		Reason:      "annual checkup",
		Amount:      decimal.RequireFromString("49.99"),
		Currency:    "usd",
	})
	assert.Empty(t, fields)
}

func TestFormatValidationErrors(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(func() time.Time { return now })

	fields := v.Struct(sampleRequest{
		Email:       "patient@example.com",
		ScheduledAt: now.Add(time.Hour),
		Reason:      "annual checkup",
		Amount:      decimal.NewFromInt(10),
	})
	assert.Equal(t, "currency: This field is required", FormatValidationErrors(fields))
}

func TestValidatorCapsAmount(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(func() time.Time { return now })

	fields := v.Struct(sampleRequest{
		Email:       "patient@example.com",
		ScheduledAt: now.Add(time.Hour),
		Reason:      "annual checkup",
		Amount:      decimal.RequireFromString("10000000000"),
		Currency:    "usd",
	})
	assert.Equal(t, "amount: Must be at most 9999999999.99", FormatValidationErrors(fields))
}
