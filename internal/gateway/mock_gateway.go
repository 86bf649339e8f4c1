package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// References with these prefixes force an outcome regardless of SuccessRate.
	MockDeclinePrefix = "decline_"
	MockErrorPrefix   = "error_"
)

// MockGateway approves charges with a configured probability. Intents it
// opened only settle the booking they were opened for.
type MockGateway struct {
	config  *MockGatewayConfig
	intents sync.Map // reference -> booking id
}

type MockGatewayConfig struct {
	// SuccessRate is the probability of approval (0.0 to 1.0)
	SuccessRate float64
	Delay       time.Duration
}

func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = &MockGatewayConfig{SuccessRate: 1}
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}
	return &MockGateway{config: config}
}

func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("intent request is required")
	}

	ref := fmt.Sprintf("mock_pi_%s", uuid.New().String()[:8])
	g.intents.Store(ref, req.BookingID)

	return &IntentResult{
		Reference:    ref,
		ClientSecret: ref + "_secret_" + uuid.New().String()[:8],
		Status:       "requires_payment_method",
		Amount:       toMinorUnits(req.Amount),
		Currency:     strings.ToLower(req.Currency),
	}, nil
}

func (g *MockGateway) AuthorizeCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	if g.config.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(g.config.Delay):
		}
	}

	if strings.HasPrefix(req.Reference, MockErrorPrefix) {
		return nil, fmt.Errorf("%w: simulated transport error", ErrUnavailable)
	}

	result := &ChargeResult{
		ExternalReference: fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8]),
	}

	if owner, ok := g.intents.Load(req.Reference); ok {
		if owner.(uuid.UUID) != req.BookingID {
			result.Status = "failed"
			result.FailureCode = "booking_mismatch"
			result.FailureReason = "payment intent was not opened for this booking"
			return result, nil
		}
		result.ExternalReference = req.Reference
	}

	approve := !strings.HasPrefix(req.Reference, MockDeclinePrefix) &&
		rand.Float64() < g.config.SuccessRate
	if approve {
		result.Success = true
		result.Status = "succeeded"
		return result, nil
	}

	result.Status = "failed"
	result.FailureCode = "card_declined"
	result.FailureReason = "payment declined by issuer"
	return result, nil
}
