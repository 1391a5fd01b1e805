// Package aramex implements the postal carrier contract for Aramex.
//
// Aramex rates a whole consignment in one call and applies customs rules per
// shipment rather than per package, so declared values are aggregated across
// all packages before hitting the wire.
package aramex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postalops/postal/pkg/postal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "aramex"

const maxWeightLb = 110 // 50 kg consignment piece limit

// Config holds Aramex credentials.
type Config struct {
	Username           string
	Password           string
	AccountNumber      string
	AccountPin         string
	AccountEntity      string
	AccountCountryCode string
	UseMock            bool
}

// Client is the Aramex carrier backend.
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
	{"PDX", "Aramex Priority Document Express"},
	{"PPX", "Aramex Priority Parcel Express"},
	{"DDX", "Aramex Deferred Document Express"},
	{"DPX", "Aramex Deferred Parcel Express"},
}

// New creates an Aramex backend.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if !cfg.UseMock {
		logger.Warn("aramex: no API transport wired, using mock client")
	}
	return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
}

// NewWithAPIClient creates an Aramex backend with a custom API client.
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
				"package":  {Carrier: carrierName, Code: "Box", Name: "Box"},
				"softpak":  {Carrier: carrierName, Code: "Flyer", Name: "Flyer"},
				"envelope": {Carrier: carrierName, Code: "Document", Name: "Document"},
			},
			Proprietary: map[string]postal.PackageType{},
		},
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities returns the Aramex contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return postal.Capabilities{
		AddressValidation: false,
		International:     true,
		Domestic:          false,
		AutoResidential:   false,
		AtomicMultiship:   false,
	}
}

// AllServices returns the static Aramex product catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(services))
	for i, s := range services {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves an Aramex product type.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range services {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: carrierName, What: "service " + code}
}

// TranslatePackageType resolves a packaging request against Aramex codes.
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

func (c *Client) clientInfo() ClientInfo {
	return ClientInfo{
		Username:           c.config.Username,
		Password:           c.config.Password,
		AccountNumber:      c.config.AccountNumber,
		AccountPin:         c.config.AccountPin,
		AccountEntity:      c.config.AccountEntity,
		AccountCountryCode: c.config.AccountCountryCode,
	}
}

// details aggregates the consignment: total weight, piece count, and the
// shipment-level customs value summed across every package's declarations.
func (c *Client) details(req *postal.Request) (ShipmentDetails, error) {
	declared, err := req.TotalDeclaredValue()
	if err != nil {
		return ShipmentDetails{}, err
	}
	var descriptions []string
	for _, p := range req.Packages {
		for _, d := range p.Declarations {
			descriptions = append(descriptions, d.Description)
		}
	}
	return ShipmentDetails{
		ActualWeightKg:     postal.PoundsToKilograms(req.TotalWeight()),
		NumberOfPieces:     len(req.Packages),
		ProductGroup:       "EXP",
		DescriptionOfGoods: strings.Join(descriptions, ", "),
		CustomsValue:       declared.Amount,
		CustomsCurrency:    declared.Currency,
		DocumentsOnly:      req.DocumentsOnly(),
	}, nil
}

func (c *Client) rates(ctx context.Context, req *postal.Request) (rateTable, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}

	return c.cache.GetOrFill(req.Fingerprint(), func() (rateTable, error) {
		ctx, span := c.tracer.Start(ctx, "aramex.rates")
		defer span.End()
		c.logger.Ctx(ctx).Info("rating Aramex consignment",
			zap.Int("piece_count", len(req.Packages)),
		)

		details, err := c.details(req)
		if err != nil {
			return nil, err
		}
		reply, err := c.apiClient.CalculateRates(ctx, &RateRequest{
			ClientInfo:  c.clientInfo(),
			Origin:      addressToWire(req.Origin),
			Destination: addressToWire(req.Destination),
			Details:     details,
		})
		if err != nil {
			return nil, c.mapAPIError(err)
		}

		docs := req.DocumentsOnly()
		table := make(rateTable, len(reply.Rates))
		for _, r := range reply.Rates {
			if _, err := c.ServiceByCode(r.ProductType); err != nil {
				continue
			}
			// Document products carry documents, parcel products the rest.
			if isDocumentProduct(r.ProductType) != docs {
				continue
			}
			delivery := time.Now().AddDate(0, 0, r.TransitDays)
			table[r.ProductType] = rateEntry{
				price: postal.Breakdown{
					Total: postal.Money{Amount: r.TotalAmount, Currency: r.Currency},
					Base:  postal.Money{Amount: r.BaseAmount, Currency: r.Currency},
					Fees:  postal.Money{Amount: r.OtherCharges, Currency: r.Currency},
				},
				delivery:  &delivery,
				trackable: true,
			}
		}
		return table, nil
	})
}

func isDocumentProduct(code string) bool {
	return code == "PDX" || code == "DDX"
}

// GetServices enumerates every Aramex product that can carry the request.
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

// DeliveryEstimate returns the quoted transit estimate for one product.
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

// Ship books a consignment. The whole consignment ships under one shipment
// number; Aramex labels the consignment, not individual pieces.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}
	if req.Origin == nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: "shipment requires an origin address"}
	}
	c.logger.Ctx(ctx).Info("booking Aramex consignment",
		zap.String("product", svc.Code),
		zap.Int("piece_count", len(req.Packages)),
	)

	details, err := c.details(req)
	if err != nil {
		return nil, err
	}
	reply, err := c.apiClient.CreateShipments(ctx, &ShipmentRequest{
		ClientInfo:   c.clientInfo(),
		ProductType:  svc.Code,
		Origin:       addressToWire(req.Origin),
		Destination:  addressToWire(req.Destination),
		Details:      details,
		ShippingDate: shippingDate(req),
	})
	if err != nil {
		return nil, c.mapAPIError(err)
	}

	results := make([]postal.PackageResult, len(req.Packages))
	for i, pkg := range req.Packages {
		results[i] = postal.PackageResult{
			Package:        pkg,
			TrackingNumber: reply.ShipmentNumber,
			Label:          postal.Label{Format: postal.LabelPDF, URL: reply.LabelURL},
		}
	}

	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        carrierName,
			TrackingNumber: reply.ShipmentNumber,
			TransactionID:  reply.Reference,
		},
		Packages: results,
		Price: postal.Breakdown{
			Total: postal.Money{Amount: reply.TotalAmount, Currency: reply.Currency},
			Base:  postal.Money{Amount: reply.BaseAmount, Currency: reply.Currency},
			Fees:  postal.Money{Amount: reply.OtherCharges, Currency: reply.Currency},
		},
		Alerts: reply.Notifications,
	}, nil
}

// mapAPIError translates Aramex notification codes into the closed postal
// taxonomy.
func (c *Client) mapAPIError(err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return postal.NewCarrierError(carrierName, "TRANSPORT", "request failed").WithCause(err)
	}
	switch apiErr.Code {
	case "ERR06", "ERR07": // consignee address rejections
		return &postal.AddressError{
			Carrier: carrierName,
			Message: apiErr.Message,
			Fields:  map[string]string{"destination": apiErr.Message},
		}
	case "ERR52": // product not served on this lane
		return &postal.NotSupportedError{Carrier: carrierName, What: apiErr.Message}
	case "ERR30": // chargeable weight breach
		return &postal.ExceedsLimitsError{Carrier: carrierName, Limit: "weight", Message: apiErr.Message}
	default:
		return postal.NewCarrierError(carrierName, apiErr.Code, apiErr.Message)
	}
}

func addressToWire(addr *postal.Address) WireAddress {
	if addr == nil {
		return WireAddress{}
	}
	w := WireAddress{
		City:        addr.City,
		StateCode:   addr.Subdivision,
		PostalCode:  addr.PostalCode,
		CountryCode: addr.CountryCode,
	}
	if len(addr.Lines) > 0 {
		w.Line1 = addr.Lines[0]
	}
	if len(addr.Lines) > 1 {
		w.Line2 = strings.Join(addr.Lines[1:], ", ")
	}
	return w
}

func shippingDate(req *postal.Request) string {
	if req.ShipTime == nil {
		return ""
	}
	return req.ShipTime.Format("2006-01-02")
}
