package aramex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a canned implementation of APIClient for testing and for
// deployments without Aramex credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCalculateRates  func(ctx context.Context, req *RateRequest) (*RateReply, error)
	OnCreateShipments func(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)
}

// NewMockAPIClient creates a mock API client with default canned behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) delay() {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
}

// CalculateRates returns canned rates for every Aramex product.
func (m *MockAPIClient) CalculateRates(ctx context.Context, req *RateRequest) (*RateReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Message: "simulated rating fault"}
	}
	if m.OnCalculateRates != nil {
		return m.OnCalculateRates(ctx, req)
	}

	return &RateReply{Rates: []ProductRate{
		{ProductType: "PDX", BaseAmount: 41.20, OtherCharges: 6.10, TotalAmount: 47.30, Currency: "USD", TransitDays: 3},
		{ProductType: "PPX", BaseAmount: 63.80, OtherCharges: 9.40, TotalAmount: 73.20, Currency: "USD", TransitDays: 3},
		{ProductType: "DDX", BaseAmount: 28.50, OtherCharges: 4.20, TotalAmount: 32.70, Currency: "USD", TransitDays: 6},
		{ProductType: "DPX", BaseAmount: 44.90, OtherCharges: 6.60, TotalAmount: 51.50, Currency: "USD", TransitDays: 6},
	}}, nil
}

// CreateShipments returns a canned consignment booking.
func (m *MockAPIClient) CreateShipments(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Message: "simulated booking fault"}
	}
	if m.OnCreateShipments != nil {
		return m.OnCreateShipments(ctx, req)
	}

	number := fmt.Sprintf("4%011d", time.Now().UnixNano()%1e11)
	return &ShipmentReply{
		ShipmentNumber: number,
		Reference:      "arx-" + uuid.New().String()[:8],
		LabelURL:       "https://labels.aramex.mock/" + number + ".pdf",
		BaseAmount:     63.80,
		OtherCharges:   9.40,
		TotalAmount:    73.20,
		Currency:       "USD",
	}, nil
}
