// Package dhl implements the postal carrier contract for DHL Express.
//
// DHL quotes one product per remote call, so rating fans out one worker per
// product code and merges the results before returning. International routes
// only; multi-piece bookings are not atomic.
package dhl

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/postalops/postal/pkg/postal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const carrierName = "dhl"

const maxWeightLb = 154 // 70 kg piece limit

// Config holds DHL credentials.
type Config struct {
	SiteID        string
	Password      string
	AccountNumber string
	BaseURL       string
	UseMock       bool
}

// Client is the DHL carrier backend.
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
	{"P", "DHL Express Worldwide"},
	{"D", "DHL Express Worldwide Documents"},
	{"T", "DHL Express 12:00"},
	{"K", "DHL Express 9:00"},
}

// New creates a DHL backend.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if !cfg.UseMock {
		logger.Warn("dhl: no API transport wired, using mock client")
	}
	return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
}

// NewWithAPIClient creates a DHL backend with a custom API client.
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
				"package":  {Carrier: carrierName, Code: "CP", Name: "Customer Provided"},
				"softpak":  {Carrier: carrierName, Code: "CP", Name: "Customer Provided"},
				"envelope": {Carrier: carrierName, Code: "DC", Name: "Document"},
			},
			Proprietary: map[string]postal.PackageType{
				"envelope": {Carrier: carrierName, Code: "EE", Name: "DHL Express Envelope"},
				"softpak":  {Carrier: carrierName, Code: "OD", Name: "DHL Flyer"},
			},
		},
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities returns the DHL contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return postal.Capabilities{
		AddressValidation: false,
		International:     true,
		Domestic:          false,
		AutoResidential:   false,
		AtomicMultiship:   false,
	}
}

// AllServices returns the static DHL product catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(services))
	for i, s := range services {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves a DHL product code.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range services {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: carrierName, What: "service " + code}
}

// TranslatePackageType resolves a packaging request against DHL codes.
func (c *Client) TranslatePackageType(t postal.PackageType, proprietary bool) (postal.PackageType, error) {
	translated, _, err := c.types.Translate(t, proprietary)
	return translated, err
}

func (c *Client) checkRoute(req *postal.Request) error {
	international, err := req.International(nil)
	if err != nil {
		return &postal.AddressError{Carrier: carrierName, Message: err.Error()}
	}
	if !international {
		return &postal.NotSupportedError{Carrier: carrierName, What: "domestic routes"}
	}
	for _, p := range req.Packages {
		if p.Weight > maxWeightLb {
			return &postal.ExceedsLimitsError{
				Carrier: carrierName,
				Limit:   "weight",
				Message: fmt.Sprintf("piece weight %.1f lb exceeds %d lb", p.Weight, maxWeightLb),
			}
		}
	}
	return nil
}

// productsFor filters the catalogue by shipment contents: document products
// only carry documents-only shipments and vice versa.
func (c *Client) productsFor(req *postal.Request) []string {
	docs := req.DocumentsOnly()
	var codes []string
	for _, s := range services {
		isDocProduct := s.code == "D"
		if isDocProduct == docs || s.code == "T" || s.code == "K" {
			codes = append(codes, s.code)
		}
	}
	return codes
}

// rates fans one quote call per product out in parallel, merging the quoted
// products into one table and caching it under the request fingerprint. A
// product that does not serve the lane is skipped, not fatal.
func (c *Client) rates(ctx context.Context, req *postal.Request) (rateTable, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}

	return c.cache.GetOrFill(req.Fingerprint(), func() (rateTable, error) {
		ctx, span := c.tracer.Start(ctx, "dhl.rates")
		defer span.End()
		products := c.productsFor(req)
		c.logger.Ctx(ctx).Info("quoting DHL products",
			zap.Strings("products", products),
			zap.Int("piece_count", len(req.Packages)),
		)

		pieces, err := c.wirePieces(req)
		if err != nil {
			return nil, err
		}
		declared, err := req.TotalDeclaredValue()
		if err != nil {
			return nil, err
		}

		table := make(rateTable)
		var mu sync.Mutex
		g, ctx := errgroup.WithContext(ctx)

		for _, product := range products {
			g.Go(func() error {
				reply, err := c.apiClient.GetProductQuote(ctx, &QuoteRequest{
					SiteID:           c.config.SiteID,
					ProductCode:      product,
					Origin:           addressToWire(req.Origin),
					Destination:      addressToWire(req.Destination),
					Pieces:           pieces,
					ShipDate:         shipDate(req),
					IsDutiable:       !req.DocumentsOnly(),
					DeclaredValue:    declared.Amount,
					DeclaredCurrency: declared.Currency,
				})
				if err != nil {
					var apiErr *APIError
					if errors.As(err, &apiErr) && apiErr.Code == CodeProductUnavailable {
						return nil
					}
					return c.mapAPIError(err)
				}
				mu.Lock()
				table[reply.ProductCode] = rateEntry{
					price: postal.Breakdown{
						Total: postal.Money{Amount: reply.TotalCharge, Currency: reply.Currency},
						Base:  postal.Money{Amount: reply.WeightCharge, Currency: reply.Currency},
						Fees:  postal.Money{Amount: reply.TotalSurcharge, Currency: reply.Currency},
					},
					delivery:  parseDeliveryDate(reply.DeliveryDate),
					trackable: true,
				}
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		return table, nil
	})
}

// GetServices enumerates every DHL product that can carry the request.
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

// Quote prices one product against the cached rate table.
func (c *Client) Quote(ctx context.Context, svc postal.Service, req *postal.Request) (postal.Breakdown, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return postal.Breakdown{}, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return postal.Breakdown{}, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "product " + svc.Code + " for this request",
		}
	}
	return entry.price, nil
}

// DeliveryEstimate returns the quoted delivery date for one product, or nil.
func (c *Client) DeliveryEstimate(ctx context.Context, svc postal.Service, req *postal.Request) (*time.Time, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return nil, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return nil, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "product " + svc.Code + " for this request",
		}
	}
	return entry.delivery, nil
}

// ValidateAddress is not offered by this backend.
func (c *Client) ValidateAddress(ctx context.Context, addr *postal.Address) (*postal.AddressMatch, error) {
	return nil, &postal.NotSupportedError{Carrier: carrierName, What: "address validation"}
}

// Ship books a shipment. DHL books pieces one by one; partial completion is
// possible and cleanup of booked pieces is this backend's responsibility.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}
	if req.Origin == nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: "shipment requires an origin address"}
	}
	c.logger.Ctx(ctx).Info("booking DHL shipment",
		zap.String("product", svc.Code),
		zap.Int("piece_count", len(req.Packages)),
	)

	pieces, err := c.wirePieces(req)
	if err != nil {
		return nil, err
	}
	declared, err := req.TotalDeclaredValue()
	if err != nil {
		return nil, err
	}
	reply, err := c.apiClient.CreateShipment(ctx, &ShipmentRequest{
		SiteID:           c.config.SiteID,
		AccountNumber:    c.config.AccountNumber,
		ProductCode:      svc.Code,
		Origin:           addressToWire(req.Origin),
		Destination:      addressToWire(req.Destination),
		Pieces:           pieces,
		ShipDate:         shipDate(req),
		DeclaredValue:    declared.Amount,
		DeclaredCurrency: declared.Currency,
	})
	if err != nil {
		return nil, c.mapAPIError(err)
	}

	results := make([]postal.PackageResult, 0, len(reply.Pieces))
	for i, pr := range reply.Pieces {
		var pkg *postal.Package
		if i < len(req.Packages) {
			pkg = req.Packages[i]
		}
		results = append(results, postal.PackageResult{
			Package:        pkg,
			TrackingNumber: pr.LicensePlate,
			Label: postal.Label{
				Format: postal.LabelPDF,
				Data:   base64.StdEncoding.EncodeToString(pr.LabelImage),
			},
		})
	}

	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        carrierName,
			TrackingNumber: reply.AirwayBillNumber,
			TransactionID:  reply.BookingRef,
		},
		Packages: results,
		Price: postal.Breakdown{
			Total: postal.Money{Amount: reply.TotalCharge, Currency: reply.Currency},
			Base:  postal.Money{Amount: reply.WeightCharge, Currency: reply.Currency},
			Fees:  postal.Money{Amount: reply.TotalSurcharge, Currency: reply.Currency},
		},
		Alerts: reply.Alerts,
	}, nil
}

// mapAPIError translates DHL condition codes into the closed postal
// taxonomy.
func (c *Client) mapAPIError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return postal.NewCarrierError(carrierName, "TRANSPORT", "request failed").WithCause(err)
	}
	switch apiErr.Code {
	case CodeInvalidDestination:
		return &postal.AddressError{
			Carrier: carrierName,
			Message: apiErr.Message,
			Fields:  map[string]string{"destination": apiErr.Message},
		}
	case CodeProductUnavailable:
		return &postal.NotSupportedError{Carrier: carrierName, What: apiErr.Message}
	case CodeOverweight:
		return &postal.ExceedsLimitsError{Carrier: carrierName, Limit: "weight", Message: apiErr.Message}
	default:
		return postal.NewCarrierError(carrierName, apiErr.Code, apiErr.Message)
	}
}

// wirePieces converts packages to DHL pieces, converting back to the metric
// units the DHL wire format expects.
func (c *Client) wirePieces(req *postal.Request) ([]WirePiece, error) {
	result := make([]WirePiece, len(req.Packages))
	for i, p := range req.Packages {
		translated, _, err := c.types.Translate(p.Type, p.CarrierConversion)
		if err != nil {
			return nil, err
		}
		result[i] = WirePiece{
			DepthCm:         postal.InchesToCentimeters(p.Length),
			WidthCm:         postal.InchesToCentimeters(p.Width),
			HeightCm:        postal.InchesToCentimeters(p.Height),
			WeightKg:        postal.PoundsToKilograms(p.Weight),
			PackageTypeCode: translated.Code,
		}
	}
	return result, nil
}

func addressToWire(addr *postal.Address) WireAddress {
	if addr == nil {
		return WireAddress{}
	}
	return WireAddress{
		AddressLines: append([]string(nil), addr.Lines...),
		City:         addr.City,
		Division:     addr.Subdivision,
		PostalCode:   addr.PostalCode,
		CountryCode:  addr.CountryCode,
	}
}

func parseDeliveryDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func shipDate(req *postal.Request) string {
	if req.ShipTime == nil {
		return ""
	}
	return req.ShipTime.Format("2006-01-02")
}
