// Package ups implements the postal carrier contract for UPS.
package ups

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/postalops/postal/pkg/postal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "ups"

const maxWeightLb = 150

// Config holds UPS credentials.
type Config struct {
	AccessKey     string
	Username      string
	Password      string
	AccountNumber string
	BaseURL       string
	UseMock       bool
}

// Options are UPS-specific request parameters, threaded through
// Request.CarrierOptions under the "ups" key. The core never interprets
// these; only this backend does.
type Options struct {
	// SignatureRequired requests delivery confirmation with signature.
	SignatureRequired bool

	// DutiesAccount bills duties and taxes to a third-party account.
	DutiesAccount string
}

// Client is the UPS carrier backend.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
	cache     *postal.Cache[rateTable]
	types     postal.TypeTable
}

type rateEntry struct {
	price     postal.Breakdown
	delivery  *time.Time
	trackable bool
}

type rateTable map[string]rateEntry

var services = []struct{ code, name string }{
	{"03", "UPS Ground"},
	{"12", "UPS 3 Day Select"},
	{"02", "UPS 2nd Day Air"},
	{"01", "UPS Next Day Air"},
	{"08", "UPS Worldwide Expedited"},
	{"07", "UPS Worldwide Express"},
}

// New creates a UPS backend.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if !cfg.UseMock {
		logger.Warn("ups: no API transport wired, using mock client")
	}
	return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
}

// NewWithAPIClient creates a UPS backend with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
		cache:     postal.NewCache[rateTable](),
		types: postal.TypeTable{
			Carrier: carrierName,
			Generic: map[string]postal.PackageType{
				"package":  {Carrier: carrierName, Code: "02", Name: "Customer Supplied Package"},
				"softpak":  {Carrier: carrierName, Code: "02", Name: "Customer Supplied Package"},
				"envelope": {Carrier: carrierName, Code: "02", Name: "Customer Supplied Package"},
			},
			Proprietary: map[string]postal.PackageType{
				"envelope": {Carrier: carrierName, Code: "01", Name: "UPS Letter"},
				"softpak":  {Carrier: carrierName, Code: "04", Name: "UPS Pak"},
			},
		},
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities returns the UPS contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return postal.Capabilities{
		AddressValidation: false,
		International:     true,
		Domestic:          true,
		AutoResidential:   false,
		AtomicMultiship:   true,
	}
}

// AllServices returns the static UPS service catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(services))
	for i, s := range services {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves a UPS service code.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range services {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: carrierName, What: "service " + code}
}

// TranslatePackageType resolves a packaging request against UPS codes.
func (c *Client) TranslatePackageType(t postal.PackageType, proprietary bool) (postal.PackageType, error) {
	translated, _, err := c.types.Translate(t, proprietary)
	return translated, err
}

// options extracts the typed UPS options threaded through the request, if
// any. A value of the wrong type is a programming error and fails loudly.
func (c *Client) options(req *postal.Request) (Options, error) {
	raw, ok := req.CarrierOptions[carrierName]
	if !ok {
		return Options{}, nil
	}
	opts, ok := raw.(Options)
	if !ok {
		return Options{}, postal.NewCarrierError(carrierName, "OPTIONS",
			fmt.Sprintf("carrier options must be ups.Options, got %T", raw))
	}
	return opts, nil
}

func (c *Client) checkLimits(req *postal.Request) error {
	for _, p := range req.Packages {
		if p.Weight > maxWeightLb {
			return &postal.ExceedsLimitsError{
				Carrier: carrierName,
				Limit:   "weight",
				Message: fmt.Sprintf("package weight %.1f lb exceeds %d lb", p.Weight, maxWeightLb),
			}
		}
	}
	return nil
}

func (c *Client) rates(ctx context.Context, req *postal.Request) (rateTable, error) {
	if err := c.checkLimits(req); err != nil {
		return nil, err
	}
	opts, err := c.options(req)
	if err != nil {
		return nil, err
	}

	return c.cache.GetOrFill(req.Fingerprint(), func() (rateTable, error) {
		ctx, span := c.tracer.Start(ctx, "ups.rates")
		defer span.End()
		c.logger.Ctx(ctx).Info("shopping UPS rates",
			zap.Int("package_count", len(req.Packages)),
		)

		apiReq, err := c.shopRequest(req, opts)
		if err != nil {
			return nil, err
		}
		reply, err := c.apiClient.Shop(ctx, apiReq)
		if err != nil {
			return nil, c.mapAPIError(err)
		}

		table := make(rateTable, len(reply.Rates))
		for _, r := range reply.Rates {
			if _, err := c.ServiceByCode(r.ServiceCode); err != nil {
				continue
			}
			delivery := parseScheduledDelivery(r.ScheduledDelivery)
			if delivery == nil && r.BusinessDaysInTransit > 0 {
				// Time in Transit replies carry day counts without a
				// scheduled date, so estimate from the day count.
				d := time.Now().AddDate(0, 0, r.BusinessDaysInTransit)
				delivery = &d
			}
			table[r.ServiceCode] = rateEntry{
				price: postal.Breakdown{
					Total: postal.Money{Amount: r.TotalCharges, Currency: r.Currency},
					Base:  postal.Money{Amount: r.TransportationCost, Currency: r.Currency},
					Fees:  postal.Money{Amount: r.ServiceOptionsCost, Currency: r.Currency},
				},
				delivery:  delivery,
				trackable: true,
			}
		}
		return table, nil
	})
}

// GetServices enumerates every UPS service that can carry the request.
func (c *Client) GetServices(ctx context.Context, req *postal.Request) ([]postal.Option, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return nil, err
	}
	options := make([]postal.Option, 0, len(table))
	for code, entry := range table {
		svc, err := c.ServiceByCode(code)
		if err != nil {
			continue
		}
		options = append(options, postal.Option{
			Service:          svc,
			Price:            entry.price,
			DeliveryEstimate: entry.delivery,
			Trackable:        entry.trackable,
		})
	}
	return options, nil
}

// Quote prices one service against the cached rate table.
func (c *Client) Quote(ctx context.Context, svc postal.Service, req *postal.Request) (postal.Breakdown, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return postal.Breakdown{}, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return postal.Breakdown{}, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "service " + svc.Code + " for this request",
		}
	}
	return entry.price, nil
}

// DeliveryEstimate returns the scheduled delivery for one service, or nil.
func (c *Client) DeliveryEstimate(ctx context.Context, svc postal.Service, req *postal.Request) (*time.Time, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return nil, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return nil, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "service " + svc.Code + " for this request",
		}
	}
	return entry.delivery, nil
}

// ValidateAddress is not offered by this backend.
func (c *Client) ValidateAddress(ctx context.Context, addr *postal.Address) (*postal.AddressMatch, error) {
	return nil, &postal.NotSupportedError{Carrier: carrierName, What: "address validation"}
}

// Ship commits a shipment. UPS multi-package shipments are atomic.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	if err := c.checkLimits(req); err != nil {
		return nil, err
	}
	opts, err := c.options(req)
	if err != nil {
		return nil, err
	}
	if req.Origin == nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: "shipment requires an origin address"}
	}
	c.logger.Ctx(ctx).Info("creating UPS shipment",
		zap.String("service", svc.Code),
		zap.Int("package_count", len(req.Packages)),
	)

	wirePackages, err := c.wirePackages(req)
	if err != nil {
		return nil, err
	}
	reply, err := c.apiClient.ShipConfirm(ctx, &ShipRequest{
		AccountNumber:     c.config.AccountNumber,
		ServiceCode:       svc.Code,
		Origin:            addressToWire(req.Origin),
		Destination:       addressToWire(req.Destination),
		Packages:          wirePackages,
		SignatureRequired: opts.SignatureRequired,
		DutiesAccount:     opts.DutiesAccount,
		PickupDate:        pickupDate(req),
	})
	if err != nil {
		return nil, c.mapAPIError(err)
	}

	results := make([]postal.PackageResult, 0, len(reply.Packages))
	for i, pr := range reply.Packages {
		var pkg *postal.Package
		if i < len(req.Packages) {
			pkg = req.Packages[i]
		}
		results = append(results, postal.PackageResult{
			Package:        pkg,
			TrackingNumber: pr.TrackingNumber,
			Label: postal.Label{
				Format: postal.LabelPNG,
				Data:   base64.StdEncoding.EncodeToString(pr.LabelImage),
			},
		})
	}

	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        carrierName,
			TrackingNumber: reply.MasterTracking,
			TransactionID:  reply.ShipmentID,
		},
		Packages: results,
		Price: postal.Breakdown{
			Total: postal.Money{Amount: reply.TotalCharges, Currency: reply.Currency},
			Base:  postal.Money{Amount: reply.TransportationCost, Currency: reply.Currency},
			Fees:  postal.Money{Amount: reply.ServiceOptionsCost, Currency: reply.Currency},
		},
		Alerts: reply.Alerts,
	}, nil
}

// mapAPIError translates UPS fault codes into the closed postal taxonomy.
func (c *Client) mapAPIError(err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return postal.NewCarrierError(carrierName, "TRANSPORT", "request failed").WithCause(err)
	}
	switch apiErr.Code {
	case "120802", "120803": // address line / city validation failures
		return &postal.AddressError{
			Carrier: carrierName,
			Message: apiErr.Message,
			Fields:  map[string]string{"address": apiErr.Message},
		}
	case "111210": // service not available for route
		return &postal.NotSupportedError{Carrier: carrierName, What: apiErr.Message}
	case "120900": // exceeds maximum weight or size
		return &postal.ExceedsLimitsError{Carrier: carrierName, Limit: "service", Message: apiErr.Message}
	default:
		return postal.NewCarrierError(carrierName, apiErr.Code, apiErr.Message)
	}
}

func (c *Client) shopRequest(req *postal.Request, opts Options) (*ShopRequest, error) {
	wirePackages, err := c.wirePackages(req)
	if err != nil {
		return nil, err
	}
	apiReq := &ShopRequest{
		AccountNumber:     c.config.AccountNumber,
		Destination:       addressToWire(req.Destination),
		Packages:          wirePackages,
		SignatureRequired: opts.SignatureRequired,
		PickupDate:        pickupDate(req),
	}
	if req.Origin != nil {
		apiReq.Origin = addressToWire(req.Origin)
	}
	return apiReq, nil
}

func (c *Client) wirePackages(req *postal.Request) ([]WirePackage, error) {
	result := make([]WirePackage, len(req.Packages))
	for i, p := range req.Packages {
		translated, _, err := c.types.Translate(p.Type, p.CarrierConversion)
		if err != nil {
			return nil, err
		}
		declared, err := p.DeclaredValue()
		if err != nil {
			return nil, err
		}
		result[i] = WirePackage{
			Length:        p.Length,
			Width:         p.Width,
			Height:        p.Height,
			Weight:        p.Weight,
			PackagingCode: translated.Code,
			DeclaredValue: declared.Amount,
			Currency:      declared.Currency,
		}
	}
	return result, nil
}

func addressToWire(addr *postal.Address) WireAddress {
	return WireAddress{
		AddressLines:      append([]string(nil), addr.Lines...),
		City:              addr.City,
		StateProvinceCode: addr.Subdivision,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.CountryCode,
		ResidentialFlag:   addr.Residential,
	}
}

func parseScheduledDelivery(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse("20060102", s); err == nil {
		return &t
	}
	return nil
}

func pickupDate(req *postal.Request) string {
	if req.ShipTime == nil {
		return ""
	}
	return req.ShipTime.Format("20060102")
}
