package usps

import "context"

// APIClient defines the USPS Web Tools operations the carrier depends on.
type APIClient interface {
	// GetRates fetches domestic rates for every mail class in one call.
	GetRates(ctx context.Context, req *RateRequest) (*RateReply, error)

	// VerifyAddress standardizes an address against the USPS database.
	VerifyAddress(ctx context.Context, req *VerifyRequest) (*VerifyReply, error)

	// CreateLabel generates a label for one package. Multi-package requests
	// are one label call per package; there is no atomicity across them.
	CreateLabel(ctx context.Context, req *LabelRequest) (*LabelReply, error)
}

// RateRequest rates one or more packages for domestic mail classes.
type RateRequest struct {
	UserID         string
	OriginZIP      string
	DestinationZIP string
	Packages       []WirePackage
	ShipDate       string // "2006-01-02", empty for ASAP
}

// WirePackage is one package line in a rate request.
type WirePackage struct {
	ID           string
	Length       float64
	Width        float64
	Height       float64
	Pounds       int
	Ounces       float64
	Container    string
	Machinable   bool
	InsuredValue float64
}

// RateReply is the parsed rate response.
type RateReply struct {
	Rates []MailClassRate
}

// MailClassRate is one mail class's postage.
type MailClassRate struct {
	ClassID        string
	MailService    string
	Rate           float64
	Fees           float64
	CommitmentDate string // "2006-01-02", empty when not committed
}

// VerifyRequest standardizes one address.
type VerifyRequest struct {
	UserID       string
	FirmName     string
	Address1     string
	Address2     string
	City         string
	State        string
	ZIP5         string
	Urbanization string
}

// VerifyReply is the standardized address, or an unmatched marker.
type VerifyReply struct {
	Matched      bool
	ReturnText   string // set when the match is ambiguous
	FirmName     string
	Address1     string
	Address2     string
	City         string
	State        string
	ZIP5         string
	ZIP4         string
	Urbanization string
	// DeliveryPoint classification: "Y" residential, "N" business.
	ResidentialIndicator string
}

// LabelRequest generates one package's label.
type LabelRequest struct {
	UserID      string
	ServiceType string
	Origin      WireAddress
	Destination WireAddress
	Package     WirePackage
	ShipDate    string
}

// WireAddress is a USPS address payload.
type WireAddress struct {
	Name         string
	Address1     string
	Address2     string
	City         string
	State        string
	ZIP5         string
	Urbanization string
}

// LabelReply is the label generation result.
type LabelReply struct {
	TrackingNumber string
	TransactionID  string
	Postage        float64
	Fees           float64
	LabelImage     []byte // TIFF or PDF bytes
	Alerts         []string
}

// APIError represents a USPS Web Tools error response.
type APIError struct {
	Number      string
	Description string
	Source      string
}

func (e *APIError) Error() string {
	return e.Number + ": " + e.Description
}
