package ups

import "context"

// APIClient defines the UPS web-service operations the carrier depends on.
type APIClient interface {
	// Shop issues one "shop all services" rating call.
	Shop(ctx context.Context, req *ShopRequest) (*ShopReply, error)

	// ShipConfirm commits a shipment and returns per-package artifacts.
	ShipConfirm(ctx context.Context, req *ShipRequest) (*ShipReply, error)
}

// ShopRequest represents a UPS rate shop request.
type ShopRequest struct {
	AccountNumber     string
	Origin            WireAddress
	Destination       WireAddress
	Packages          []WirePackage
	SignatureRequired bool
	PickupDate        string // "20060102", empty for ASAP
}

// WireAddress is a UPS address payload.
type WireAddress struct {
	AddressLines      []string
	City              string
	StateProvinceCode string
	PostalCode        string
	CountryCode       string
	ResidentialFlag   bool
}

// WirePackage is a UPS package line item.
type WirePackage struct {
	Length        float64
	Width         float64
	Height        float64
	Weight        float64 // pounds
	PackagingCode string
	DeclaredValue float64
	Currency      string
}

// ShopReply is the parsed rate shop response.
type ShopReply struct {
	Rates []RatedService
}

// RatedService is one service's rate from the reply.
type RatedService struct {
	ServiceCode           string
	TransportationCost    float64
	ServiceOptionsCost    float64
	TotalCharges          float64
	Currency              string
	BusinessDaysInTransit int
	ScheduledDelivery     string // "20060102", empty when not quoted
}

// ShipRequest represents a UPS shipment request.
type ShipRequest struct {
	AccountNumber     string
	ServiceCode       string
	Origin            WireAddress
	Destination       WireAddress
	Packages          []WirePackage
	SignatureRequired bool
	DutiesAccount     string
	PickupDate        string
}

// ShipReply is the parsed shipment response.
type ShipReply struct {
	ShipmentID         string
	MasterTracking     string
	Packages           []PackageReply
	TransportationCost float64
	ServiceOptionsCost float64
	TotalCharges       float64
	Currency           string
	Alerts             []string
}

// PackageReply is the per-package result.
type PackageReply struct {
	TrackingNumber string
	LabelImage     []byte // GIF label, base64-decoded
}

// APIError represents a UPS fault response.
type APIError struct {
	Code     string
	Severity string
	Message  string
}

func (e *APIError) Error() string {
	return e.Code + " (" + e.Severity + "): " + e.Message
}
