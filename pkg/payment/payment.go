// Package payment prepares a client-side payment sheet with an external processor.
// Nothing is persisted locally and processor failures are returned as-is, without retry.
package payment

import (
	"context"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Processor is the subset of the payment provider API used to set up a payment.
type Processor interface {
	CreateCustomer(ctx context.Context, email string) (customerID string, err error)
	CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (secret string, err error)
	// CreatePaymentIntent creates an intent with automatic payment method selection and
	// returns its client secret.
	CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID string) (clientSecret string, err error)
}

// Request amount is in major currency units, e.g. dollars.
type Request struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Email    string  `json:"email"`
}

type Setup struct {
	PaymentIntent  string `json:"paymentIntent"`
	EphemeralKey   string `json:"ephemeralKey"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishableKey"`
}

type Bootstrap struct {
	processor      Processor
	publishableKey string
	apiVersion     string
	logger         *zap.Logger
}

func NewBootstrap(processor Processor, publishableKey, apiVersion string, logger *zap.Logger) *Bootstrap {
	return &Bootstrap{
		processor:      processor,
		publishableKey: publishableKey,
		apiVersion:     apiVersion,
		logger:         logger,
	}
}

// MinorUnits converts a major-unit amount to the processor's minor units (x100).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreatePaymentSetup creates a new customer for every call; customers are not looked up by email.
func (b *Bootstrap) CreatePaymentSetup(ctx context.Context, req Request) (*Setup, error) {
	if req.Amount <= 0 {
		return nil, apperror.ValidationFailed("amount", "amount must be greater than 0")
	}
	if req.Currency == "" {
		return nil, apperror.ValidationFailed("currency", "currency is required")
	}
	if req.Email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	customerID, err := b.processor.CreateCustomer(ctx, req.Email)
	if err != nil {
		return nil, b.upstream("create customer", err)
	}

	ephemeralKey, err := b.processor.CreateEphemeralKey(ctx, customerID, b.apiVersion)
	if err != nil {
		return nil, b.upstream("create ephemeral key", err)
	}

	clientSecret, err := b.processor.CreatePaymentIntent(ctx, MinorUnits(req.Amount), req.Currency, customerID)
	if err != nil {
		return nil, b.upstream("create payment intent", err)
	}

	return &Setup{
		PaymentIntent:  clientSecret,
		EphemeralKey:   ephemeralKey,
		Customer:       customerID,
		PublishableKey: b.publishableKey,
	}, nil
}

func (b *Bootstrap) upstream(step string, err error) error {
	b.logger.Error("Payment processor call failed", zap.String("step", step), zap.Error(err))
	return apperror.Upstream("payment processor", err)
}
