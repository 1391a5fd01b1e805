// Package mock provides a configurable carrier implementation for testing
// and for running the stack without any live carrier accounts.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/postalops/postal/pkg/postal"
)

// Client is a mock carrier. The zero configuration answers every request
// with two canned services; the Fail* and On* fields inject failures and
// custom behavior per operation.
type Client struct {
	name         string
	capabilities postal.Capabilities

	Latency         time.Duration
	FailGetServices error
	FailQuote       error
	FailShip        error
	FailValidate    error

	OnGetServices func(ctx context.Context, req *postal.Request) ([]postal.Option, error)
	OnShip        func(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error)
}

var mockServices = []struct {
	code, name  string
	base, fees  float64
	transitDays int
}{
	{"STANDARD", "Mock Standard", 12.50, 3.32, 5},
	{"EXPRESS", "Mock Express", 24.00, 5.95, 2},
}

// New creates a mock carrier with full capabilities.
func New(name string) *Client {
	return &Client{
		name: name,
		capabilities: postal.Capabilities{
			AddressValidation: true,
			International:     true,
			Domestic:          true,
			AtomicMultiship:   true,
		},
	}
}

// NewWithCapabilities creates a mock carrier with a specific contract.
func NewWithCapabilities(name string, caps postal.Capabilities) *Client {
	return &Client{name: name, capabilities: caps}
}

func (c *Client) delay() {
	if c.Latency > 0 {
		time.Sleep(c.Latency)
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return c.name
}

// Capabilities returns the configured contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return c.capabilities
}

// AllServices returns the canned service catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(mockServices))
	for i, s := range mockServices {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves a canned service.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range mockServices {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: c.name, What: "service " + code}
}

// TranslatePackageType passes generic types through and rejects proprietary
// types from other carriers.
func (c *Client) TranslatePackageType(t postal.PackageType, proprietary bool) (postal.PackageType, error) {
	if t.Carrier != "" && t.Carrier != c.name {
		return postal.PackageType{}, &postal.NotSupportedError{
			Carrier: c.name,
			What:    fmt.Sprintf("package type %s", t),
		}
	}
	return t, nil
}

// GetServices returns one option per canned service.
func (c *Client) GetServices(ctx context.Context, req *postal.Request) ([]postal.Option, error) {
	c.delay()
	if c.FailGetServices != nil {
		return nil, c.FailGetServices
	}
	if c.OnGetServices != nil {
		return c.OnGetServices(ctx, req)
	}

	options := make([]postal.Option, len(mockServices))
	for i, s := range mockServices {
		delivery := time.Now().AddDate(0, 0, s.transitDays)
		options[i] = postal.Option{
			Service:          postal.NewService(c, s.code, s.name),
			Price:            c.price(s.base, s.fees, req),
			DeliveryEstimate: &delivery,
			Trackable:        true,
		}
	}
	return options, nil
}

// Quote prices one canned service.
func (c *Client) Quote(ctx context.Context, svc postal.Service, req *postal.Request) (postal.Breakdown, error) {
	c.delay()
	if c.FailQuote != nil {
		return postal.Breakdown{}, c.FailQuote
	}
	for _, s := range mockServices {
		if s.code == svc.Code {
			return c.price(s.base, s.fees, req), nil
		}
	}
	return postal.Breakdown{}, &postal.NotSupportedError{Carrier: c.name, What: "service " + svc.Code}
}

// DeliveryEstimate returns a canned transit estimate.
func (c *Client) DeliveryEstimate(ctx context.Context, svc postal.Service, req *postal.Request) (*time.Time, error) {
	c.delay()
	for _, s := range mockServices {
		if s.code == svc.Code {
			t := time.Now().AddDate(0, 0, s.transitDays)
			return &t, nil
		}
	}
	return nil, &postal.NotSupportedError{Carrier: c.name, What: "service " + svc.Code}
}

// ValidateAddress echoes the address back as matched.
func (c *Client) ValidateAddress(ctx context.Context, addr *postal.Address) (*postal.AddressMatch, error) {
	c.delay()
	if c.FailValidate != nil {
		return nil, c.FailValidate
	}
	if !c.capabilities.AddressValidation {
		return nil, &postal.NotSupportedError{Carrier: c.name, What: "address validation"}
	}
	return &postal.AddressMatch{Matched: true, Address: addr.Clone()}, nil
}

// Ship returns canned tracking numbers and labels for every package.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	c.delay()
	if c.FailShip != nil {
		return nil, c.FailShip
	}
	if c.OnShip != nil {
		return c.OnShip(ctx, svc, req)
	}

	now := time.Now().UnixNano()
	prefix := svc.Code
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	results := make([]postal.PackageResult, len(req.Packages))
	for i, pkg := range req.Packages {
		tracking := fmt.Sprintf("MOCK%s%d%02d", prefix, now%1e9, i)
		results[i] = postal.PackageResult{
			Package:        pkg,
			TrackingNumber: tracking,
			Label: postal.Label{
				Format: postal.LabelPDF,
				URL:    fmt.Sprintf("https://labels.%s.invalid/%s.pdf", c.name, tracking),
			},
		}
	}

	price := postal.Breakdown{}
	for _, s := range mockServices {
		if s.code == svc.Code {
			price = c.price(s.base, s.fees, req)
		}
	}
	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        c.name,
			TrackingNumber: results[0].TrackingNumber,
			TransactionID:  fmt.Sprintf("%s-ship-%d", c.name, now),
		},
		Packages: results,
		Price:    price,
		Alerts:   nil,
	}, nil
}

// price scales the canned rate by package count so multi-package requests
// cost more than single ones.
func (c *Client) price(base, fees float64, req *postal.Request) postal.Breakdown {
	n := float64(len(req.Packages))
	if n == 0 {
		n = 1
	}
	return postal.Breakdown{
		Total: postal.Money{Amount: (base + fees) * n, Currency: postal.DefaultCurrency},
		Base:  postal.Money{Amount: base * n, Currency: postal.DefaultCurrency},
		Fees:  postal.Money{Amount: fees * n, Currency: postal.DefaultCurrency},
	}
}

var _ postal.Carrier = (*Client)(nil)
