package aramex

import "context"

// APIClient defines the Aramex shipping-service operations the carrier
// depends on.
type APIClient interface {
	// CalculateRates rates every applicable product in one call.
	CalculateRates(ctx context.Context, req *RateRequest) (*RateReply, error)

	// CreateShipments books a shipment and returns the label artifacts.
	CreateShipments(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)
}

// ClientInfo carries the Aramex account identity every call requires.
type ClientInfo struct {
	Username           string
	Password           string
	AccountNumber      string
	AccountPin         string
	AccountEntity      string
	AccountCountryCode string
}

// RateRequest rates a shipment across Aramex products.
type RateRequest struct {
	ClientInfo  ClientInfo
	Origin      WireAddress
	Destination WireAddress
	Details     ShipmentDetails
}

// WireAddress is an Aramex address payload.
type WireAddress struct {
	Line1       string
	Line2       string
	City        string
	StateCode   string
	PostalCode  string
	CountryCode string
}

// ShipmentDetails describes the consignment being rated or booked.
type ShipmentDetails struct {
	ActualWeightKg     float64
	NumberOfPieces     int
	ProductGroup       string // "EXP" for express
	DescriptionOfGoods string
	// CustomsValue covers the whole consignment; Aramex customs rules are
	// per shipment, not per package.
	CustomsValue    float64
	CustomsCurrency string
	DocumentsOnly   bool
}

// RateReply is the parsed rating response.
type RateReply struct {
	Rates []ProductRate
}

// ProductRate is one product's quoted total.
type ProductRate struct {
	ProductType  string
	BaseAmount   float64
	OtherCharges float64
	TotalAmount  float64
	Currency     string
	TransitDays  int
}

// ShipmentRequest books a consignment.
type ShipmentRequest struct {
	ClientInfo   ClientInfo
	ProductType  string
	Origin       WireAddress
	Destination  WireAddress
	Details      ShipmentDetails
	ShippingDate string // "2006-01-02", empty for ASAP
}

// ShipmentReply is the booking result.
type ShipmentReply struct {
	ShipmentNumber string
	Reference      string
	LabelURL       string
	BaseAmount     float64
	OtherCharges   float64
	TotalAmount    float64
	Currency       string
	Notifications  []string
}

// APIError represents an Aramex notification fault.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
