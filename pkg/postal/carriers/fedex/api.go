package fedex

import (
	"context"
)

// APIClient defines the FedEx web-service operations the carrier depends on.
// The real SOAP transport lives behind this seam; tests and mock deployments
// substitute MockAPIClient.
type APIClient interface {
	// GetRates issues one "shop all services" rating call.
	GetRates(ctx context.Context, req *RateRequest) (*RateReply, error)

	// ProcessShipment commits a shipment. Multi-package requests succeed or
	// fail as one unit.
	ProcessShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)

	// ValidateAddress checks an address against the FedEx address service.
	ValidateAddress(ctx context.Context, req *AddressValidationRequest) (*AddressValidationReply, error)
}

// RateRequest represents a FedEx rate shop request.
type RateRequest struct {
	AccountNumber string
	MeterNumber   string
	Origin        WireAddress
	Destination   WireAddress
	Packages      []WirePackage
	ShipTimestamp string // RFC3339, empty for ASAP
}

// WireAddress is a FedEx address payload.
type WireAddress struct {
	StreetLines         []string
	City                string
	StateOrProvinceCode string
	PostalCode          string
	CountryCode         string
	Residential         bool
	UrbanizationCode    string
}

// WirePackage is a FedEx requested-package line item.
type WirePackage struct {
	Length        float64
	Width         float64
	Height        float64
	Weight        float64 // pounds
	PackagingType string
	DocumentsOnly bool
	CustomsValue  float64
	Currency      string
	InsuredValue  float64
}

// RateReply is the parsed rate shop response.
type RateReply struct {
	TransactionID string
	Details       []RateDetail
}

// RateDetail is one service's rate from the reply.
type RateDetail struct {
	ServiceCode     string
	BaseCharge      float64
	Surcharges      float64
	TotalNetCharge  float64
	Currency        string
	DeliveryDate    string // "2006-01-02T15:04:05", empty when not quoted
	SignatureOption string
}

// ShipmentRequest represents a FedEx process-shipment request.
type ShipmentRequest struct {
	AccountNumber string
	MeterNumber   string
	ServiceCode   string
	Origin        WireAddress
	Destination   WireAddress
	Packages      []WirePackage
	LabelFormat   string
	ShipTimestamp string
}

// ShipmentReply is the parsed process-shipment response.
type ShipmentReply struct {
	TransactionID  string
	MasterTracking string
	Packages       []PackageReply
	BaseCharge     float64
	Surcharges     float64
	TotalNetCharge float64
	Currency       string
	Alerts         []string
}

// PackageReply is the per-package completed detail.
type PackageReply struct {
	TrackingNumber string
	LabelFormat    string
	LabelData      []byte
}

// AddressValidationRequest carries one address to check.
type AddressValidationRequest struct {
	Address WireAddress
}

// AddressValidationReply is the parsed validation response.
type AddressValidationReply struct {
	// State is DELIVERABLE, NORMALIZED, or UNDETERMINED.
	State             string
	Effective         WireAddress
	ResidentialStatus string
}

// APIError represents a fault notification from the FedEx web service.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
