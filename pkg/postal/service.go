package postal

import (
	"context"
	"time"
)

// Service is one named shipping product offered by a carrier, e.g. FedEx
// "Ground". It is a cheap value handle: pricing, shipping, and delivery
// estimates forward to the owning carrier, passing the service back as the
// argument. Identity is (carrier name, service code).
type Service struct {
	carrier Carrier
	Code    string
	Name    string
}

// NewService builds a service handle owned by the given carrier.
func NewService(carrier Carrier, code, name string) Service {
	return Service{carrier: carrier, Code: code, Name: name}
}

// Carrier returns the owning carrier backend.
func (s Service) Carrier() Carrier {
	return s.carrier
}

// CarrierName returns the owning carrier's identifier.
func (s Service) CarrierName() string {
	if s.carrier == nil {
		return ""
	}
	return s.carrier.Name()
}

// ServiceKey is the comparable identity of a service.
type ServiceKey struct {
	Carrier string
	Code    string
}

// Key returns the service identity.
func (s Service) Key() ServiceKey {
	return ServiceKey{Carrier: s.CarrierName(), Code: s.Code}
}

// Equal compares by (carrier name, service code).
func (s Service) Equal(other Service) bool {
	return s.Key() == other.Key()
}

func (s Service) String() string {
	return s.CarrierName() + "/" + s.Code
}

// Price forwards to the owning carrier's Quote.
func (s Service) Price(ctx context.Context, req *Request) (Breakdown, error) {
	return s.carrier.Quote(ctx, s, req)
}

// DeliveryEstimate forwards to the owning carrier.
func (s Service) DeliveryEstimate(ctx context.Context, req *Request) (*time.Time, error) {
	return s.carrier.DeliveryEstimate(ctx, s, req)
}

// Ship forwards to the owning carrier.
func (s Service) Ship(ctx context.Context, req *Request) (*ShipResult, error) {
	return s.carrier.Ship(ctx, s, req)
}
