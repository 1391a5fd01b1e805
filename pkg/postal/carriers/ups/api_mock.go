package ups

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a canned implementation of APIClient for testing and for
// deployments without UPS credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnShop        func(ctx context.Context, req *ShopRequest) (*ShopReply, error)
	OnShipConfirm func(ctx context.Context, req *ShipRequest) (*ShipReply, error)
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

// Shop returns canned UPS rates.
func (m *MockAPIClient) Shop(ctx context.Context, req *ShopRequest) (*ShopReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Severity: "Hard", Message: "simulated rating fault"}
	}
	if m.OnShop != nil {
		return m.OnShop(ctx, req)
	}

	international := req.Origin.CountryCode != "" && req.Destination.CountryCode != "" &&
		req.Origin.CountryCode != req.Destination.CountryCode

	if international {
		return &ShopReply{Rates: []RatedService{
			{
				ServiceCode:           "08",
				TransportationCost:    58.70,
				ServiceOptionsCost:    8.90,
				TotalCharges:          67.60,
				Currency:              "USD",
				BusinessDaysInTransit: 5,
				ScheduledDelivery:     time.Now().AddDate(0, 0, 5).Format("20060102"),
			},
			{
				ServiceCode:           "07",
				TransportationCost:    92.30,
				ServiceOptionsCost:    12.40,
				TotalCharges:          104.70,
				Currency:              "USD",
				BusinessDaysInTransit: 2,
				ScheduledDelivery:     time.Now().AddDate(0, 0, 2).Format("20060102"),
			},
		}}, nil
	}

	return &ShopReply{Rates: []RatedService{
		{
			ServiceCode:           "03",
			TransportationCost:    10.80,
			ServiceOptionsCost:    1.55,
			TotalCharges:          12.35,
			Currency:              "USD",
			BusinessDaysInTransit: 4,
			ScheduledDelivery:     time.Now().AddDate(0, 0, 4).Format("20060102"),
		},
		{
			ServiceCode:           "02",
			TransportationCost:    23.10,
			ServiceOptionsCost:    2.95,
			TotalCharges:          26.05,
			Currency:              "USD",
			BusinessDaysInTransit: 2,
			ScheduledDelivery:     time.Now().AddDate(0, 0, 2).Format("20060102"),
		},
		{
			ServiceCode:           "01",
			TransportationCost:    45.60,
			ServiceOptionsCost:    5.70,
			TotalCharges:          51.30,
			Currency:              "USD",
			BusinessDaysInTransit: 1,
			ScheduledDelivery:     time.Now().AddDate(0, 0, 1).Format("20060102"),
		},
	}}, nil
}

// ShipConfirm returns a canned shipment confirmation.
func (m *MockAPIClient) ShipConfirm(ctx context.Context, req *ShipRequest) (*ShipReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK", Severity: "Hard", Message: "simulated shipment fault"}
	}
	if m.OnShipConfirm != nil {
		return m.OnShipConfirm(ctx, req)
	}

	master := fmt.Sprintf("1Z999AA1%010d", time.Now().UnixNano()%1e10)
	packages := make([]PackageReply, len(req.Packages))
	for i := range req.Packages {
		packages[i] = PackageReply{
			TrackingNumber: fmt.Sprintf("%s%02d", master, i),
			LabelImage:     []byte("GIF89a mock ups label " + master),
		}
	}

	return &ShipReply{
		ShipmentID:         "ups-ship-" + uuid.New().String()[:8],
		MasterTracking:     master,
		Packages:           packages,
		TransportationCost: 10.80,
		ServiceOptionsCost: 1.55,
		TotalCharges:       12.35,
		Currency:           "USD",
	}, nil
}
