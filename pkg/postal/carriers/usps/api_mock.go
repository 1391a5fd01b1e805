package usps

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a canned implementation of APIClient for testing and for
// deployments without Web Tools credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates      func(ctx context.Context, req *RateRequest) (*RateReply, error)
	OnVerifyAddress func(ctx context.Context, req *VerifyRequest) (*VerifyReply, error)
	OnCreateLabel   func(ctx context.Context, req *LabelRequest) (*LabelReply, error)
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

// GetRates returns canned domestic mail class rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Number: "MOCK", Description: "simulated rating fault"}
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return &RateReply{
		Rates: []MailClassRate{
			{
				ClassID:        "GROUND_ADVANTAGE",
				MailService:    "USPS Ground Advantage",
				Rate:           8.95,
				Fees:           0.45,
				CommitmentDate: time.Now().AddDate(0, 0, 4).Format("2006-01-02"),
			},
			{
				ClassID:        "PRIORITY",
				MailService:    "USPS Priority Mail",
				Rate:           14.20,
				Fees:           1.10,
				CommitmentDate: time.Now().AddDate(0, 0, 2).Format("2006-01-02"),
			},
			{
				ClassID:        "PRIORITY_EXPRESS",
				MailService:    "USPS Priority Mail Express",
				Rate:           31.40,
				Fees:           2.35,
				CommitmentDate: time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
			},
			{
				ClassID:     "MEDIA",
				MailService: "USPS Media Mail",
				Rate:        4.63,
				Fees:        0,
			},
		},
	}, nil
}

// VerifyAddress returns a canned standardized address.
func (m *MockAPIClient) VerifyAddress(ctx context.Context, req *VerifyRequest) (*VerifyReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Number: "MOCK", Description: "simulated verification fault"}
	}
	if m.OnVerifyAddress != nil {
		return m.OnVerifyAddress(ctx, req)
	}

	return &VerifyReply{
		Matched:              true,
		FirmName:             req.FirmName,
		Address1:             req.Address1,
		Address2:             req.Address2,
		City:                 req.City,
		State:                req.State,
		ZIP5:                 req.ZIP5,
		ZIP4:                 "0001",
		Urbanization:         req.Urbanization,
		ResidentialIndicator: "Y",
	}, nil
}

// CreateLabel returns a canned label for one package.
func (m *MockAPIClient) CreateLabel(ctx context.Context, req *LabelRequest) (*LabelReply, error) {
	m.delay()
	if m.SimulateErrors {
		return nil, &APIError{Number: "MOCK", Description: "simulated labeling fault"}
	}
	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, req)
	}

	tracking := fmt.Sprintf("9400%018d", time.Now().UnixNano()%1e18)
	return &LabelReply{
		TrackingNumber: tracking,
		TransactionID:  "usps-lbl-" + uuid.New().String()[:8],
		Postage:        14.20,
		Fees:           1.10,
		LabelImage:     []byte("%PDF-1.4 mock usps label " + tracking),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
