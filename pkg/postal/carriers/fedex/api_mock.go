package fedex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a canned implementation of APIClient for testing and for
// deployments without FedEx credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates        func(ctx context.Context, req *RateRequest) (*RateReply, error)
	OnProcessShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)
	OnValidateAddress func(ctx context.Context, req *AddressValidationRequest) (*AddressValidationReply, error)
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

// GetRates returns canned FedEx rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK.ERROR", Message: "simulated rating fault"}
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	international := req.Origin.CountryCode != "" && req.Destination.CountryCode != "" &&
		req.Origin.CountryCode != req.Destination.CountryCode

	var details []RateDetail
	if international {
		details = []RateDetail{
			{
				ServiceCode:    "INTERNATIONAL_ECONOMY",
				BaseCharge:     62.10,
				Surcharges:     9.35,
				TotalNetCharge: 71.45,
				Currency:       "USD",
				DeliveryDate:   time.Now().AddDate(0, 0, 6).Format("2006-01-02T15:04:05"),
			},
			{
				ServiceCode:    "INTERNATIONAL_PRIORITY",
				BaseCharge:     98.40,
				Surcharges:     14.70,
				TotalNetCharge: 113.10,
				Currency:       "USD",
				DeliveryDate:   time.Now().AddDate(0, 0, 3).Format("2006-01-02T15:04:05"),
			},
		}
	} else {
		details = []RateDetail{
			{
				ServiceCode:    "FEDEX_GROUND",
				BaseCharge:     11.20,
				Surcharges:     1.85,
				TotalNetCharge: 13.05,
				Currency:       "USD",
				DeliveryDate:   time.Now().AddDate(0, 0, 5).Format("2006-01-02T15:04:05"),
			},
			{
				ServiceCode:    "FEDEX_2_DAY",
				BaseCharge:     22.60,
				Surcharges:     3.15,
				TotalNetCharge: 25.75,
				Currency:       "USD",
				DeliveryDate:   time.Now().AddDate(0, 0, 2).Format("2006-01-02T15:04:05"),
			},
			{
				ServiceCode:     "PRIORITY_OVERNIGHT",
				BaseCharge:      48.90,
				Surcharges:      6.20,
				TotalNetCharge:  55.10,
				Currency:        "USD",
				DeliveryDate:    time.Now().AddDate(0, 0, 1).Format("2006-01-02T15:04:05"),
				SignatureOption: "DIRECT",
			},
		}
	}

	return &RateReply{
		TransactionID: "fdx-rate-" + uuid.New().String()[:8],
		Details:       details,
	}, nil
}

// ProcessShipment returns a canned shipment confirmation with one label per
// requested package.
func (m *MockAPIClient) ProcessShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK.ERROR", Message: "simulated shipment fault"}
	}
	if m.OnProcessShipment != nil {
		return m.OnProcessShipment(ctx, req)
	}

	master := fmt.Sprintf("%012d", time.Now().UnixNano()%1e12)
	packages := make([]PackageReply, len(req.Packages))
	for i := range req.Packages {
		packages[i] = PackageReply{
			TrackingNumber: fmt.Sprintf("%s%02d", master, i),
			LabelFormat:    "PDF",
			LabelData:      []byte("%PDF-1.4 mock fedex label " + master),
		}
	}

	return &ShipmentReply{
		TransactionID:  "fdx-ship-" + uuid.New().String()[:8],
		MasterTracking: master,
		Packages:       packages,
		BaseCharge:     13.05,
		Surcharges:     1.85,
		TotalNetCharge: 14.90,
		Currency:       "USD",
	}, nil
}

// ValidateAddress returns a canned normalized address.
func (m *MockAPIClient) ValidateAddress(ctx context.Context, req *AddressValidationRequest) (*AddressValidationReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK.ERROR", Message: "simulated validation fault"}
	}
	if m.OnValidateAddress != nil {
		return m.OnValidateAddress(ctx, req)
	}

	effective := req.Address
	if effective.PostalCode == "" {
		return &AddressValidationReply{State: "UNDETERMINED", Effective: effective}, nil
	}
	return &AddressValidationReply{
		State:             "NORMALIZED",
		Effective:         effective,
		ResidentialStatus: "BUSINESS",
	}, nil
}
