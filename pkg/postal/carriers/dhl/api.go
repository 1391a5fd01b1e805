package dhl

import "context"

// APIClient defines the DHL Express operations the carrier depends on. The
// DHL rating API quotes one product per call, so the client issues one
// GetProductQuote per product code.
type APIClient interface {
	// GetProductQuote rates a single DHL product for the shipment. It
	// returns ErrProductUnavailable-coded faults for products that do not
	// serve the route.
	GetProductQuote(ctx context.Context, req *QuoteRequest) (*QuoteReply, error)

	// CreateShipment books a shipment. DHL books packages piece by piece;
	// a multi-piece booking can partially complete.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentReply, error)
}

// QuoteRequest rates one product for one shipment.
type QuoteRequest struct {
	SiteID           string
	ProductCode      string
	Origin           WireAddress
	Destination      WireAddress
	Pieces           []WirePiece
	ShipDate         string // "2006-01-02", empty for ASAP
	IsDutiable       bool
	DeclaredValue    float64
	DeclaredCurrency string
}

// WireAddress is a DHL address payload.
type WireAddress struct {
	AddressLines []string
	City         string
	Division     string
	PostalCode   string
	CountryCode  string
}

// WirePiece is one piece (package) in a DHL request. Dimensions are
// centimeters and weight kilograms, per the DHL wire convention.
type WirePiece struct {
	DepthCm         float64
	WidthCm         float64
	HeightCm        float64
	WeightKg        float64
	PackageTypeCode string
}

// QuoteReply is one product's quoted rate.
type QuoteReply struct {
	ProductCode    string
	WeightCharge   float64
	TotalSurcharge float64
	TotalCharge    float64
	Currency       string
	DeliveryDate   string // "2006-01-02"
	DeliveryTime   string // "PT17H" style cutoff, informational
}

// ShipmentRequest books a shipment.
type ShipmentRequest struct {
	SiteID           string
	AccountNumber    string
	ProductCode      string
	Origin           WireAddress
	Destination      WireAddress
	Pieces           []WirePiece
	ShipDate         string
	DeclaredValue    float64
	DeclaredCurrency string
}

// ShipmentReply is the booking result.
type ShipmentReply struct {
	AirwayBillNumber string
	BookingRef       string
	Pieces           []PieceReply
	WeightCharge     float64
	TotalSurcharge   float64
	TotalCharge      float64
	Currency         string
	Alerts           []string
}

// PieceReply is the per-piece booking detail.
type PieceReply struct {
	LicensePlate string // piece-level tracking id
	LabelImage   []byte
}

// APIError represents a DHL condition fault.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Condition codes the client branches on.
const (
	CodeProductUnavailable = "4120" // product does not serve this lane
	CodeInvalidDestination = "4300"
	CodeOverweight         = "4001"
)
