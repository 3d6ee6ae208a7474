package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
)

// ClientToken is the short-lived credential the storefront uses to
// initialize the gateway's hosted payment form.
type ClientToken struct {
	Token     string `json:"client_token"`
	PaymentID string `json:"payment_id"`
}

type Result struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Gateway abstracts the payment provider so checkout can be tested
// against a fake. Charge confirms the intent named by paymentID when the
// client passes one back from ClientToken; with an empty paymentID it
// opens and confirms a fresh intent in one call.
type Gateway interface {
	ClientToken(ctx context.Context, amount float64, meta map[string]string) (*ClientToken, error)
	Charge(ctx context.Context, paymentID, nonce string, amount float64, meta map[string]string) (*Result, error)
}

// StripeGateway charges through Stripe PaymentIntents. The package-level
// stripe.Key must be set before use.
type StripeGateway struct {
	Currency string
}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{Currency: "usd"}
}

func (g *StripeGateway) currency() string {
	if g.Currency == "" {
		return "usd"
	}
	return g.Currency
}

func (g *StripeGateway) ClientToken(ctx context.Context, amount float64, meta map[string]string) (*ClientToken, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toCents(amount)),
		Currency: stripe.String(g.currency()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: meta,
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: create intent: %w", err)
	}
	return &ClientToken{Token: intent.ClientSecret, PaymentID: intent.ID}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, paymentID, nonce string, amount float64, meta map[string]string) (*Result, error) {
	if paymentID != "" {
		return g.confirmExisting(ctx, paymentID, nonce, amount, meta)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(amount)),
		Currency:      stripe.String(g.currency()),
		PaymentMethod: stripe.String(nonce),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: meta,
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: charge: %w", err)
	}
	return checkSucceeded(intent)
}

// confirmExisting settles the intent ClientToken opened. The amount is
// re-applied first because the cart may have changed since the token was
// issued.
func (g *StripeGateway) confirmExisting(ctx context.Context, paymentID, nonce string, amount float64, meta map[string]string) (*Result, error) {
	updateParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toCents(amount)),
		Metadata: meta,
	}
	updateParams.Context = ctx
	if _, err := paymentintent.Update(paymentID, updateParams); err != nil {
		return nil, fmt.Errorf("payment: update intent: %w", err)
	}

	confirmParams := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(nonce),
	}
	confirmParams.Context = ctx
	intent, err := paymentintent.Confirm(paymentID, confirmParams)
	if err != nil {
		return nil, fmt.Errorf("payment: confirm intent: %w", err)
	}
	return checkSucceeded(intent)
}

func checkSucceeded(intent *stripe.PaymentIntent) (*Result, error) {
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment: charge not completed, status %s", intent.Status)
	}
	return &Result{TransactionID: intent.ID, Status: string(intent.Status)}, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
