package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

type (
	intentGetter  func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	intentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
)

// StripeGateway opens PaymentIntents for bookings and verifies the ones the
// client has confirmed. The payment reference is the PaymentIntent ID.
type StripeGateway struct {
	getIntent    intentGetter
	createIntent intentCreator
}

type StripeGatewayConfig struct {
	SecretKey string
}

func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil || config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{getIntent: paymentintent.Get, createIntent: paymentintent.New}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("intent request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			MetadataBookingID:   req.BookingID.String(),
			MetadataBookingCode: req.BookingCode,
			MetadataUserID:      req.UserID.String(),
		},
	}
	params.Context = ctx

	pi, err := g.createIntent(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent for booking %s: %v", ErrUnavailable, req.BookingID, err)
	}

	return &IntentResult{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *StripeGateway) AuthorizeCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.getIntent(req.Reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return &ChargeResult{
				Status:        "not_found",
				FailureCode:   "resource_missing",
				FailureReason: "payment intent not found",
			}, nil
		}
		return nil, fmt.Errorf("%w: retrieve payment intent %s: %v", ErrUnavailable, req.Reference, err)
	}

	result := &ChargeResult{
		ExternalReference: pi.ID,
		Status:            string(pi.Status),
	}

	switch {
	case pi.Status != stripe.PaymentIntentStatusSucceeded:
		result.FailureCode = string(pi.Status)
		result.FailureReason = "payment not completed"
	case pi.Metadata[MetadataBookingID] != req.BookingID.String():
		result.FailureCode = "booking_mismatch"
		result.FailureReason = "payment intent was not opened for this booking"
	case pi.Amount != toMinorUnits(req.Amount):
		result.FailureCode = "amount_mismatch"
		result.FailureReason = fmt.Sprintf("intent amount %d does not match booking amount", pi.Amount)
	case req.Currency != "" && !strings.EqualFold(string(pi.Currency), req.Currency):
		result.FailureCode = "currency_mismatch"
		result.FailureReason = fmt.Sprintf("intent currency %s does not match %s", pi.Currency, req.Currency)
	default:
		result.Success = true
	}

	return result, nil
}
