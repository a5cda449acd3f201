package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"clinic-booking/pkg/apperror"
)

// FakeGateway is an in-memory Gateway. It honours idempotency keys and lets
// callers script failures and intent outcomes, so it backs both local runs
// without Stripe credentials and the booking tests.
type FakeGateway struct {
	mu       sync.Mutex
	seq      int
	intents  map[string]*fakeIntent
	byKey    map[string]string
	failures map[string][]error
	calls    map[string]int
}

type fakeIntent struct {
	intent      Intent
	metadata    map[string]string
	captured    int64
	refundedSum int64
}

const (
	OpCreateIntent  = "create_intent"
	OpConfirmIntent = "confirm_intent"
	OpVerifyIntent  = "verify_intent"
	OpRefundIntent  = "refund_intent"
	OpFindIntent    = "find_intent"
)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		intents:  make(map[string]*fakeIntent),
		byKey:    make(map[string]string),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext queues errors returned by the next calls of op, one per call.
func (g *FakeGateway) FailNext(op string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], errs...)
}

// SetStatus moves an intent to status, as the processor would after the
// patient completes or abandons payment.
func (g *FakeGateway) SetStatus(intentID string, status IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fi, ok := g.intents[intentID]
	if !ok {
		return
	}
	fi.intent.Status = status
	if status == IntentSucceeded {
		fi.captured = fi.intent.AmountMinor
	}
}

// Calls returns how many times op was invoked, failed calls included.
func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// IntentCount returns the number of distinct intents created.
func (g *FakeGateway) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

// Refunded returns the total minor units refunded on an intent.
func (g *FakeGateway) Refunded(intentID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fi, ok := g.intents[intentID]; ok {
		return fi.refundedSum
	}
	return 0
}

func (g *FakeGateway) begin(op string) error {
	g.calls[op]++
	if queued := g.failures[op]; len(queued) > 0 {
		g.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (g *FakeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpCreateIntent); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, err, "create intent")
	}

	if id, ok := g.byKey[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		out := g.intents[id].intent
		return &out, nil
	}

	g.seq++
	id := fmt.Sprintf("pi_fake_%d", g.seq)
	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	fi := &fakeIntent{
		intent: Intent{
			ID:           id,
			ClientSecret: id + "_secret",
			AmountMinor:  p.AmountMinor,
			Currency:     strings.ToLower(p.Currency),
			Status:       IntentRequiresAction,
		},
		metadata: metadata,
	}
	g.intents[id] = fi
	if p.IdempotencyKey != "" {
		g.byKey[p.IdempotencyKey] = id
	}

	out := fi.intent
	return &out, nil
}

// DeclinedPaymentMethod is the Stripe test card that FakeGateway declines.
const DeclinedPaymentMethod = "pm_card_chargeDeclined"

// ConfirmIntent succeeds the payment unless a status was already scripted.
// DeclinedPaymentMethod fails the attempt like a card decline.
func (g *FakeGateway) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpConfirmIntent); err != nil {
		return nil, err
	}

	fi, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.KindIntentNotFound, "confirm intent: no intent %s", intentID)
	}
	if fi.intent.Status != IntentRequiresAction && fi.intent.Status != IntentFailed {
		out := fi.intent
		return &out, nil
	}
	if paymentMethodID == DeclinedPaymentMethod {
		fi.intent.Status = IntentFailed
		return nil, apperror.New(apperror.KindGatewayRejected, "confirm intent %s: card declined", intentID)
	}
	fi.intent.Status = IntentSucceeded
	fi.captured = fi.intent.AmountMinor

	out := fi.intent
	return &out, nil
}

func (g *FakeGateway) VerifyIntent(ctx context.Context, intentID string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpVerifyIntent); err != nil {
		return nil, err
	}

	fi, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.KindIntentNotFound, "verify intent: no intent %s", intentID)
	}

	out := fi.intent
	return &out, nil
}

func (g *FakeGateway) RefundIntent(ctx context.Context, intentID string, amountMinor *int64) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpRefundIntent); err != nil {
		return nil, err
	}

	fi, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.KindIntentNotFound, "refund intent: no intent %s", intentID)
	}

	if fi.intent.Status != IntentSucceeded {
		fi.intent.Status = IntentCanceled
		return &Refund{Status: RefundVoided}, nil
	}

	remaining := fi.captured - fi.refundedSum
	amount := remaining
	if amountMinor != nil {
		amount = *amountMinor
	}
	if amount <= 0 || amount > remaining {
		return nil, apperror.New(apperror.KindInvalidAmount, "refund amount %d outside (0, %d]", amount, remaining)
	}

	fi.refundedSum += amount
	g.seq++
	return &Refund{
		ID:          fmt.Sprintf("re_fake_%d", g.seq),
		Status:      RefundSucceeded,
		AmountMinor: amount,
	}, nil
}

func (g *FakeGateway) FindIntent(ctx context.Context, appointmentID string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(OpFindIntent); err != nil {
		return nil, err
	}

	for _, fi := range g.intents {
		if fi.metadata[MetadataAppointmentID] == appointmentID {
			out := fi.intent
			return &out, nil
		}
	}
	return nil, nil
}
