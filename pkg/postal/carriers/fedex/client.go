// Package fedex implements the postal carrier contract for FedEx.
package fedex

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

const carrierName = "fedex"

const (
	maxWeightLb = 150
	maxLengthIn = 119
)

// Config holds FedEx credentials and endpoints.
type Config struct {
	Key           string
	Password      string
	AccountNumber string
	MeterNumber   string
	BaseURL       string
	UseMock       bool
}

// Client is the FedEx carrier backend. One rating call per request
// fingerprint is issued and cached for the lifetime of the instance.
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
	alerts    []string
}

type rateTable map[string]rateEntry

var services = []struct{ code, name string }{
	{"FEDEX_GROUND", "FedEx Ground"},
	{"FEDEX_2_DAY", "FedEx 2Day"},
	{"STANDARD_OVERNIGHT", "FedEx Standard Overnight"},
	{"PRIORITY_OVERNIGHT", "FedEx Priority Overnight"},
	{"INTERNATIONAL_ECONOMY", "FedEx International Economy"},
	{"INTERNATIONAL_PRIORITY", "FedEx International Priority"},
}

// New creates a FedEx backend. With UseMock set the canned API client is
// used instead of the remote service.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if !cfg.UseMock {
		// The SOAP transport is deployment-provided through
		// NewWithAPIClient; without one the canned client keeps the
		// backend usable.
		logger.Warn("fedex: no API transport wired, using mock client")
	}
	return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
}

// NewWithAPIClient creates a FedEx backend with a custom API client.
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
				"package":  {Carrier: carrierName, Code: "YOUR_PACKAGING", Name: "Your Packaging"},
				"softpak":  {Carrier: carrierName, Code: "YOUR_PACKAGING", Name: "Your Packaging"},
				"envelope": {Carrier: carrierName, Code: "YOUR_PACKAGING", Name: "Your Packaging"},
			},
			Proprietary: map[string]postal.PackageType{
				"envelope": {Carrier: carrierName, Code: "FEDEX_ENVELOPE", Name: "FedEx Envelope"},
				"softpak":  {Carrier: carrierName, Code: "FEDEX_PAK", Name: "FedEx Pak"},
				"package":  {Carrier: carrierName, Code: "FEDEX_BOX", Name: "FedEx Box"},
			},
		},
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities returns the FedEx contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return postal.Capabilities{
		AddressValidation: true,
		International:     true,
		Domestic:          true,
		AutoResidential:   false,
		AtomicMultiship:   true,
	}
}

// AllServices returns the static FedEx service catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(services))
	for i, s := range services {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves a FedEx service code.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range services {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: carrierName, What: "service " + code}
}

// TranslatePackageType resolves a packaging request against FedEx codes.
func (c *Client) TranslatePackageType(t postal.PackageType, proprietary bool) (postal.PackageType, error) {
	translated, _, err := c.types.Translate(t, proprietary)
	return translated, err
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
		if p.Length > maxLengthIn || p.Width > maxLengthIn || p.Height > maxLengthIn {
			return &postal.ExceedsLimitsError{
				Carrier: carrierName,
				Limit:   "size",
				Message: fmt.Sprintf("package dimension exceeds %d in", maxLengthIn),
			}
		}
	}
	return nil
}

// rates fetches the parsed per-service rate table for the request, issuing at
// most one remote rating call per request fingerprint.
func (c *Client) rates(ctx context.Context, req *postal.Request) (rateTable, error) {
	if err := c.checkLimits(req); err != nil {
		return nil, err
	}
	international, err := req.International(nil)
	if err != nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: err.Error()}
	}

	return c.cache.GetOrFill(req.Fingerprint(), func() (rateTable, error) {
		ctx, span := c.tracer.Start(ctx, "fedex.rates")
		defer span.End()
		c.logger.Ctx(ctx).Info("shopping FedEx rates",
			zap.Bool("international", international),
			zap.Int("package_count", len(req.Packages)),
		)

		apiReq, err := c.rateRequest(req)
		if err != nil {
			return nil, err
		}
		reply, err := c.apiClient.GetRates(ctx, apiReq)
		if err != nil {
			return nil, c.mapAPIError(err)
		}

		table := make(rateTable, len(reply.Details))
		for _, d := range reply.Details {
			svc, err := c.ServiceByCode(d.ServiceCode)
			if err != nil {
				continue // unknown codes in the reply are skipped, not fatal
			}
			entry := rateEntry{
				price:     detailToBreakdown(d),
				delivery:  parseDeliveryDate(d.DeliveryDate),
				trackable: true,
			}
			if d.SignatureOption != "" {
				entry.alerts = append(entry.alerts, "signature on delivery: "+d.SignatureOption)
			}
			table[svc.Code] = entry
		}
		return table, nil
	})
}

// GetServices enumerates every FedEx service that can carry the request.
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
			Alerts:           entry.alerts,
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

// DeliveryEstimate returns the quoted delivery time for one service, or nil
// when FedEx did not report one.
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

// ValidateAddress checks an address against the FedEx address service. An
// undetermined response surfaces as the original address with Matched false.
func (c *Client) ValidateAddress(ctx context.Context, addr *postal.Address) (*postal.AddressMatch, error) {
	reply, err := c.apiClient.ValidateAddress(ctx, &AddressValidationRequest{
		Address: addressToWire(addr),
	})
	if err != nil {
		return nil, c.mapAPIError(err)
	}
	switch reply.State {
	case "DELIVERABLE", "NORMALIZED":
		corrected := wireToAddress(reply.Effective, addr)
		if reply.ResidentialStatus == "RESIDENTIAL" {
			corrected.Residential = true
		}
		return &postal.AddressMatch{Matched: true, Address: corrected}, nil
	default:
		return &postal.AddressMatch{Matched: false, Address: addr.Clone()}, nil
	}
}

// Ship commits a shipment. Multi-package FedEx shipments are atomic.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	if err := c.checkLimits(req); err != nil {
		return nil, err
	}
	c.logger.Ctx(ctx).Info("creating FedEx shipment",
		zap.String("service", svc.Code),
		zap.Int("package_count", len(req.Packages)),
	)

	wirePackages, err := c.wirePackages(req)
	if err != nil {
		return nil, err
	}
	if req.Origin == nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: "shipment requires an origin address"}
	}

	apiReq := &ShipmentRequest{
		AccountNumber: c.config.AccountNumber,
		MeterNumber:   c.config.MeterNumber,
		ServiceCode:   svc.Code,
		Origin:        addressToWire(req.Origin),
		Destination:   addressToWire(req.Destination),
		Packages:      wirePackages,
		LabelFormat:   "PDF",
		ShipTimestamp: shipTimestamp(req),
	}
	reply, err := c.apiClient.ProcessShipment(ctx, apiReq)
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
				Format: postal.LabelPDF,
				Data:   base64.StdEncoding.EncodeToString(pr.LabelData),
			},
		})
	}

	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        carrierName,
			TrackingNumber: reply.MasterTracking,
			TransactionID:  reply.TransactionID,
		},
		Packages: results,
		Price: postal.Breakdown{
			Total: postal.Money{Amount: reply.TotalNetCharge, Currency: reply.Currency},
			Base:  postal.Money{Amount: reply.BaseCharge, Currency: reply.Currency},
			Fees:  postal.Money{Amount: reply.Surcharges, Currency: reply.Currency},
		},
		Alerts: reply.Alerts,
	}, nil
}

// mapAPIError translates FedEx fault codes into the closed postal taxonomy.
// Unrecognized codes fall back into CarrierError.
func (c *Client) mapAPIError(err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return postal.NewCarrierError(carrierName, "TRANSPORT", "request failed").WithCause(err)
	}
	switch apiErr.Code {
	case "INVALID.RECIPIENT.ADDRESS", "INVALID.SHIPPER.ADDRESS", "POSTAL.CODE.INVALID":
		return &postal.AddressError{
			Carrier: carrierName,
			Message: apiErr.Message,
			Fields:  map[string]string{"address": apiErr.Message},
		}
	case "SERVICE.UNAVAILABLE.FOR.ROUTE", "SERVICE.TYPE.INVALID":
		return &postal.NotSupportedError{Carrier: carrierName, What: apiErr.Message}
	case "WEIGHT.EXCEEDS.MAXIMUM", "DIMENSIONS.EXCEED.MAXIMUM":
		return &postal.ExceedsLimitsError{Carrier: carrierName, Limit: "service", Message: apiErr.Message}
	default:
		return postal.NewCarrierError(carrierName, apiErr.Code, apiErr.Message)
	}
}

func (c *Client) rateRequest(req *postal.Request) (*RateRequest, error) {
	wirePackages, err := c.wirePackages(req)
	if err != nil {
		return nil, err
	}
	apiReq := &RateRequest{
		AccountNumber: c.config.AccountNumber,
		MeterNumber:   c.config.MeterNumber,
		Destination:   addressToWire(req.Destination),
		Packages:      wirePackages,
		ShipTimestamp: shipTimestamp(req),
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
		insured, err := p.InsuredValue()
		if err != nil {
			return nil, err
		}
		result[i] = WirePackage{
			Length:        p.Length,
			Width:         p.Width,
			Height:        p.Height,
			Weight:        p.Weight,
			PackagingType: translated.Code,
			DocumentsOnly: p.DocumentsOnly,
			CustomsValue:  declared.Amount,
			Currency:      declared.Currency,
			InsuredValue:  insured.Amount,
		}
	}
	return result, nil
}

func addressToWire(addr *postal.Address) WireAddress {
	return WireAddress{
		StreetLines:         append([]string(nil), addr.Lines...),
		City:                addr.City,
		StateOrProvinceCode: addr.Subdivision,
		PostalCode:          addr.PostalCode,
		CountryCode:         addr.CountryCode,
		Residential:         addr.Residential,
		UrbanizationCode:    addr.Urbanization,
	}
}

func wireToAddress(w WireAddress, original *postal.Address) *postal.Address {
	corrected := original.Clone()
	if len(w.StreetLines) > 0 {
		corrected.Lines = append([]string(nil), w.StreetLines...)
	}
	if w.City != "" {
		corrected.City = w.City
	}
	if w.StateOrProvinceCode != "" {
		corrected.Subdivision = w.StateOrProvinceCode
	}
	if w.PostalCode != "" {
		corrected.PostalCode = w.PostalCode
	}
	if w.CountryCode != "" {
		corrected.CountryCode = w.CountryCode
	}
	return corrected
}

func detailToBreakdown(d RateDetail) postal.Breakdown {
	return postal.Breakdown{
		Total: postal.Money{Amount: d.TotalNetCharge, Currency: d.Currency},
		Base:  postal.Money{Amount: d.BaseCharge, Currency: d.Currency},
		Fees:  postal.Money{Amount: d.Surcharges, Currency: d.Currency},
	}
}

func parseDeliveryDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func shipTimestamp(req *postal.Request) string {
	if req.ShipTime == nil {
		return ""
	}
	return req.ShipTime.Format(time.RFC3339)
}
