package gateway

import (
	"context"
	"time"

	"clinic-booking/pkg/apperror"
	"clinic-booking/pkg/metrics"
)

// Instrumented decorates a Gateway with per-operation call metrics.
type Instrumented struct {
	next    Gateway
	metrics *metrics.BookingMetrics
}

func NewInstrumented(next Gateway, m *metrics.BookingMetrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(apperror.KindOf(err))
	}
	g.metrics.ObserveGatewayCall(op, result, time.Since(start))
}

func (g *Instrumented) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	start := time.Now()
	intent, err := g.next.CreateIntent(ctx, p)
	g.observe(OpCreateIntent, start, err)
	return intent, err
}

func (g *Instrumented) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	start := time.Now()
	intent, err := g.next.ConfirmIntent(ctx, intentID, paymentMethodID)
	g.observe(OpConfirmIntent, start, err)
	return intent, err
}

func (g *Instrumented) VerifyIntent(ctx context.Context, intentID string) (*Intent, error) {
	start := time.Now()
	intent, err := g.next.VerifyIntent(ctx, intentID)
	g.observe(OpVerifyIntent, start, err)
	return intent, err
}

func (g *Instrumented) RefundIntent(ctx context.Context, intentID string, amountMinor *int64) (*Refund, error) {
	start := time.Now()
	refund, err := g.next.RefundIntent(ctx, intentID, amountMinor)
	g.observe(OpRefundIntent, start, err)
	return refund, err
}

func (g *Instrumented) FindIntent(ctx context.Context, appointmentID string) (*Intent, error) {
	start := time.Now()
	intent, err := g.next.FindIntent(ctx, appointmentID)
	g.observe(OpFindIntent, start, err)
	return intent, err
}

var (
	_ Gateway = (*StripeGateway)(nil)
	_ Gateway = (*FakeGateway)(nil)
	_ Gateway = (*Instrumented)(nil)
)
