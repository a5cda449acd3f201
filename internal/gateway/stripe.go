package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"clinic-booking/pkg/apperror"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

type StripeOptions struct {
	SecretKey string
	// APIURL overrides the Stripe API base URL, e.g. for stripe-mock.
	APIURL  string
	Timeout time.Duration
}

// StripeGateway implements Gateway on top of the Stripe PaymentIntents API.
type StripeGateway struct {
	api *client.API
	log *zap.Logger
}

func NewStripeGateway(opts StripeOptions, log *zap.Logger) *StripeGateway {
	log = log.With(zap.String("gateway", "stripe"))

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: opts.Timeout},
		LeveledLogger:     log.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if opts.APIURL != "" {
		base := strings.TrimSuffix(strings.TrimRight(opts.APIURL, "/"), "/v1")
		backendConfig.URL = stripe.String(base)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)
	api := client.New(opts.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeGateway{api: api, log: log}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountMinor),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.String("idempotency_key", p.IdempotencyKey),
			zap.Int64("amount_minor", p.AmountMinor),
		)
		return nil, classifyError("create intent", err)
	}

	g.log.Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("idempotency_key", p.IdempotencyKey),
	)
	return toIntent(pi), nil
}

func (g *StripeGateway) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}

	pi, err := g.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		g.log.Error("Failed to confirm payment intent",
			zap.Error(err),
			zap.String("payment_intent_id", intentID),
		)
		return nil, classifyError("confirm intent", err)
	}

	return toIntent(pi), nil
}

func (g *StripeGateway) VerifyIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		g.log.Error("Failed to retrieve payment intent",
			zap.Error(err),
			zap.String("payment_intent_id", intentID),
		)
		return nil, classifyError("verify intent", err)
	}

	return toIntent(pi), nil
}

// RefundIntent refunds a captured intent. An intent that never captured
// money is cancelled instead, and the returned refund is RefundVoided.
func (g *StripeGateway) RefundIntent(ctx context.Context, intentID string, amountMinor *int64) (*Refund, error) {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, getParams)
	if err != nil {
		g.log.Error("Failed to retrieve payment intent for refund",
			zap.Error(err),
			zap.String("payment_intent_id", intentID),
		)
		return nil, classifyError("refund intent", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
	case stripe.PaymentIntentStatusCanceled:
		return &Refund{Status: RefundVoided}, nil
	case stripe.PaymentIntentStatusProcessing:
		return nil, apperror.New(apperror.KindGatewayUnavailable, "refund intent: payment %s is still processing", intentID)
	default:
		return g.voidIntent(ctx, intentID)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)
	if amountMinor != nil {
		if *amountMinor <= 0 || *amountMinor > pi.AmountReceived {
			return nil, apperror.New(apperror.KindInvalidAmount,
				"refund amount %d outside (0, %d]", *amountMinor, pi.AmountReceived)
		}
		params.Amount = stripe.Int64(*amountMinor)
		params.SetIdempotencyKey(fmt.Sprintf("refund-%s-%d", intentID, *amountMinor))
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		g.log.Error("Failed to refund payment intent",
			zap.Error(err),
			zap.String("payment_intent_id", intentID),
		)
		return nil, classifyError("refund intent", err)
	}

	refund := &Refund{ID: r.ID, AmountMinor: r.Amount, Status: toRefundStatus(r.Status)}
	g.log.Info("Payment intent refunded",
		zap.String("payment_intent_id", intentID),
		zap.String("refund_id", r.ID),
		zap.String("status", string(refund.Status)),
	)
	return refund, nil
}

func (g *StripeGateway) voidIntent(ctx context.Context, intentID string) (*Refund, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		g.log.Error("Failed to cancel payment intent",
			zap.Error(err),
			zap.String("payment_intent_id", intentID),
		)
		return nil, classifyError("cancel intent", err)
	}

	g.log.Info("Uncaptured payment intent cancelled", zap.String("payment_intent_id", intentID))
	return &Refund{Status: RefundVoided}, nil
}

func (g *StripeGateway) FindIntent(ctx context.Context, appointmentID string) (*Intent, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", MetadataAppointmentID, appointmentID)
	params.Single = true

	iter := g.api.PaymentIntents.Search(params)
	if iter.Next() {
		return toIntent(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		g.log.Error("Failed to search payment intents",
			zap.Error(err),
			zap.String("appointment_id", appointmentID),
		)
		return nil, classifyError("find intent", err)
	}

	return nil, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       toIntentStatus(pi),
	}
}

func toIntentStatus(pi *stripe.PaymentIntent) IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// A declined attempt sends the intent back to requires_payment_method.
		if pi.LastPaymentError != nil {
			return IntentFailed
		}
	}
	return IntentRequiresAction
}

func toRefundStatus(s stripe.RefundStatus) RefundStatus {
	switch s {
	case stripe.RefundStatusSucceeded:
		return RefundSucceeded
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return RefundPending
	default:
		return RefundFailed
	}
}

// classifyError maps SDK and transport failures onto apperror kinds.
func classifyError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.Wrap(apperror.KindGatewayUnavailable, err, "%s: timed out", op)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperror.Wrap(apperror.KindGatewayUnavailable, err, "%s: network error", op)
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return apperror.Wrap(apperror.KindGatewayUnavailable, err, "%s: unexpected gateway response", op)
	}

	switch {
	case stripeErr.HTTPStatusCode >= 500,
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.Type == stripe.ErrorTypeAPI,
		stripeErr.Type == stripe.ErrorTypeIdempotency && stripeErr.HTTPStatusCode == http.StatusConflict:
		return apperror.Wrap(apperror.KindGatewayUnavailable, err, "%s", op)
	case stripeErr.HTTPStatusCode == http.StatusNotFound,
		stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return apperror.Wrap(apperror.KindIntentNotFound, err, "%s", op)
	default:
		return apperror.Wrap(apperror.KindGatewayRejected, err, "%s", op)
	}
}
