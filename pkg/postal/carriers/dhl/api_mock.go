package dhl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a canned implementation of APIClient for testing and for
// deployments without DHL credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetProductQuote func(ctx context.Context, req *QuoteRequest) (*QuoteReply, error)
	OnCreateShipment  func(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)
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

// canned per-product pricing; premium products cost more and arrive sooner.
var productRates = map[string]struct {
	weight, surcharge float64
	transitDays       int
}{
	"P": {weight: 54.20, surcharge: 11.30, transitDays: 4},
	"D": {weight: 38.60, surcharge: 7.90, transitDays: 4},
	"T": {weight: 81.50, surcharge: 16.20, transitDays: 2},
	"K": {weight: 96.80, surcharge: 19.40, transitDays: 2},
}

// GetProductQuote returns a canned quote for one product.
func (m *MockAPIClient) GetProductQuote(ctx context.Context, req *QuoteRequest) (*QuoteReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Message: "simulated rating fault"}
	}
	if m.OnGetProductQuote != nil {
		return m.OnGetProductQuote(ctx, req)
	}

	rate, ok := productRates[req.ProductCode]
	if !ok {
		return nil, &APIError{Code: CodeProductUnavailable, Message: "product " + req.ProductCode + " not available"}
	}

	return &QuoteReply{
		ProductCode:    req.ProductCode,
		WeightCharge:   rate.weight,
		TotalSurcharge: rate.surcharge,
		TotalCharge:    rate.weight + rate.surcharge,
		Currency:       "USD",
		DeliveryDate:   time.Now().AddDate(0, 0, rate.transitDays).Format("2006-01-02"),
	}, nil
}

// CreateShipment returns a canned booking with one license plate per piece.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Message: "simulated booking fault"}
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	awb := fmt.Sprintf("%010d", time.Now().UnixNano()%1e10)
	pieces := make([]PieceReply, len(req.Pieces))
	for i := range req.Pieces {
		pieces[i] = PieceReply{
			LicensePlate: fmt.Sprintf("JD%s%04d", awb, i),
			LabelImage:   []byte("%PDF-1.4 mock dhl label " + awb),
		}
	}

	rate := productRates["P"]
	if r, ok := productRates[req.ProductCode]; ok {
		rate = r
	}

	return &ShipmentReply{
		AirwayBillNumber: awb,
		BookingRef:       "dhl-book-" + uuid.New().String()[:8],
		Pieces:           pieces,
		WeightCharge:     rate.weight,
		TotalSurcharge:   rate.surcharge,
		TotalCharge:      rate.weight + rate.surcharge,
		Currency:         "USD",
	}, nil
}
