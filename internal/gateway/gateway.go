// Package gateway is the boundary to the external payment processor. The
// booking core depends only on the capability interfaces declared here; the
// Stripe adapter and the in-memory fake both satisfy Gateway.
package gateway

import "context"

type IntentStatus string

const (
	IntentRequiresAction IntentStatus = "requires_action"
	IntentSucceeded      IntentStatus = "succeeded"
	IntentFailed         IntentStatus = "failed"
	IntentCanceled       IntentStatus = "canceled"
)

type RefundStatus string

const (
	RefundSucceeded RefundStatus = "succeeded"
	RefundPending   RefundStatus = "pending"
	RefundFailed    RefundStatus = "failed"
	// RefundVoided means nothing was captured and the intent was cancelled instead.
	RefundVoided RefundStatus = "voided"
)

// Accepted reports whether the processor took the refund (or void) on board.
func (s RefundStatus) Accepted() bool {
	return s == RefundSucceeded || s == RefundPending || s == RefundVoided
}

// MetadataAppointmentID is the intent metadata key carrying the booking attempt id.
const MetadataAppointmentID = "appointment_id"

type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       IntentStatus
}

type Refund struct {
	ID          string
	Status      RefundStatus
	AmountMinor int64
}

type CreateIntentParams struct {
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	ReceiptEmail   string
}

type IntentCreator interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
}

type IntentConfirmer interface {
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error)
}

type IntentVerifier interface {
	VerifyIntent(ctx context.Context, intentID string) (*Intent, error)
}

// IntentRefunder refunds a captured intent. A nil amount means a full refund.
type IntentRefunder interface {
	RefundIntent(ctx context.Context, intentID string, amountMinor *int64) (*Refund, error)
}

// IntentFinder looks up the intent created for a booking attempt. It returns
// (nil, nil) when no such intent exists.
type IntentFinder interface {
	FindIntent(ctx context.Context, appointmentID string) (*Intent, error)
}

type Gateway interface {
	IntentCreator
	IntentConfirmer
	IntentVerifier
	IntentRefunder
	IntentFinder
}
