// Package postal provides a unified abstraction over multiple parcel-carrier
// web services. Callers build a Request, hand it to the Postal orchestrator,
// and receive priced shipping options from every enabled carrier through one
// contract, regardless of which backend services the request.
package postal

import (
	"context"
	"time"
)

// Capabilities are descriptive flags every backend declares truthfully. They
// are part of the contract, not behavior.
type Capabilities struct {
	// AddressValidation is true when the backend implements ValidateAddress.
	AddressValidation bool

	// International and Domestic describe which routes the carrier serves.
	International bool
	Domestic      bool

	// AutoResidential is true when the carrier silently fixes up residential
	// classification on ship, making pre/post comparison meaningless.
	AutoResidential bool

	// AtomicMultiship is true when a multi-package request succeeds or fails
	// as one unit. When false, partial completion across packages is
	// possible and cleanup is the backend's responsibility.
	AtomicMultiship bool
}

// Option is one priced shipping option from a carrier: a service plus its
// price decomposition, delivery estimate, and tracking capability.
type Option struct {
	Service          Service
	Price            Breakdown
	DeliveryEstimate *time.Time // nil when unknown
	Trackable        bool
	Alerts           []string
}

// AddressMatch is the result of address validation. A "no match found"
// response is not an error: the original address comes back with
// Matched false. Backends never fabricate corrected data.
type AddressMatch struct {
	Matched bool
	Address *Address
}

// PackageResult is the per-package outcome of a ship call.
type PackageResult struct {
	Package        *Package
	TrackingNumber string
	Label          Label
}

// ShipResult is the outcome of a committed shipment.
type ShipResult struct {
	Shipment Shipment
	Packages []PackageResult
	Price    Breakdown
	Alerts   []string
}

// Carrier is the capability set every backend implements. The core does not
// know whether a backend talks SOAP, REST, or a mock; it depends only on
// this contract's inputs, outputs, and error taxonomy.
type Carrier interface {
	// Name returns the carrier identifier (e.g. "fedex", "usps").
	Name() string

	// Capabilities returns the backend's descriptive flags.
	Capabilities() Capabilities

	// GetServices enumerates every service this carrier can offer for the
	// request, or an empty slice when none apply. It returns an error when
	// the request itself is invalid for this carrier (exceeds limits,
	// unsupported route). Implementations issue one remote rating call and
	// cache the parsed result under the request fingerprint so later Quote,
	// DeliveryEstimate, and Ship calls reuse it.
	GetServices(ctx context.Context, req *Request) ([]Option, error)

	// Quote prices one service for the request. Fails with
	// NotSupportedError or ExceedsLimitsError when the service cannot carry
	// the request.
	Quote(ctx context.Context, svc Service, req *Request) (Breakdown, error)

	// DeliveryEstimate returns the estimated arrival time, or nil when the
	// carrier does not report one. Fails the same way as Quote.
	DeliveryEstimate(ctx context.Context, svc Service, req *Request) (*time.Time, error)

	// ValidateAddress checks and corrects an address. Backends without the
	// AddressValidation capability return NotSupportedError.
	ValidateAddress(ctx context.Context, addr *Address) (*AddressMatch, error)

	// Ship commits an actual shipment.
	Ship(ctx context.Context, svc Service, req *Request) (*ShipResult, error)

	// AllServices returns the carrier's statically known service catalogue,
	// independent of any request.
	AllServices() []Service

	// ServiceByCode resolves a carrier service code, failing with
	// NotSupportedError for unrecognized codes.
	ServiceByCode(code string) (Service, error)

	// TranslatePackageType converts a generic packaging into this carrier's
	// code, optionally upgrading to a proprietary type when the carrier
	// defines one. Fails with NotSupportedError when the pairing is invalid.
	TranslatePackageType(t PackageType, proprietary bool) (PackageType, error)
}
