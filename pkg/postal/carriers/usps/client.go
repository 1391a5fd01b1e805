// Package usps implements the postal carrier contract for USPS. Domestic
// routes only. USPS silently reclassifies residential status during label
// generation, and multi-package requests label one package per call with no
// atomicity across them.
package usps

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/postalops/postal/pkg/postal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "usps"

const (
	maxWeightLb = 70
	maxGirthIn  = 108
)

// Config holds USPS Web Tools credentials.
type Config struct {
	UserID  string
	BaseURL string
	UseMock bool
}

// Client is the USPS carrier backend.
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
	{"GROUND_ADVANTAGE", "USPS Ground Advantage"},
	{"PRIORITY", "USPS Priority Mail"},
	{"PRIORITY_EXPRESS", "USPS Priority Mail Express"},
	{"MEDIA", "USPS Media Mail"},
}

// domestic destinations include US territories served by USPS.
var uspsCountries = map[string]bool{
	"US": true, "PR": true, "VI": true, "GU": true, "AS": true, "MP": true,
}

// New creates a USPS backend. Without UseMock the Web Tools HTTP transport
// is used.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			UserID:  cfg.UserID,
			Timeout: 30 * time.Second,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a USPS backend with a custom API client.
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
				"package":  {Carrier: carrierName, Code: "VARIABLE", Name: "Variable"},
				"softpak":  {Carrier: carrierName, Code: "VARIABLE", Name: "Variable"},
				"envelope": {Carrier: carrierName, Code: "FLAT RATE ENVELOPE", Name: "Flat Rate Envelope"},
			},
			Proprietary: map[string]postal.PackageType{
				"envelope": {Carrier: carrierName, Code: "FLAT RATE ENVELOPE", Name: "Flat Rate Envelope"},
				"package":  {Carrier: carrierName, Code: "MD FLAT RATE BOX", Name: "Medium Flat Rate Box"},
			},
		},
	}
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities returns the USPS contract flags.
func (c *Client) Capabilities() postal.Capabilities {
	return postal.Capabilities{
		AddressValidation: true,
		International:     false,
		Domestic:          true,
		AutoResidential:   true,
		AtomicMultiship:   false,
	}
}

// AllServices returns the static USPS mail class catalogue.
func (c *Client) AllServices() []postal.Service {
	result := make([]postal.Service, len(services))
	for i, s := range services {
		result[i] = postal.NewService(c, s.code, s.name)
	}
	return result
}

// ServiceByCode resolves a USPS mail class.
func (c *Client) ServiceByCode(code string) (postal.Service, error) {
	for _, s := range services {
		if s.code == code {
			return postal.NewService(c, s.code, s.name), nil
		}
	}
	return postal.Service{}, &postal.NotSupportedError{Carrier: carrierName, What: "service " + code}
}

// TranslatePackageType resolves a packaging request against USPS containers.
func (c *Client) TranslatePackageType(t postal.PackageType, proprietary bool) (postal.PackageType, error) {
	translated, _, err := c.types.Translate(t, proprietary)
	return translated, err
}

func (c *Client) checkRoute(req *postal.Request) error {
	if req.Destination == nil || !uspsCountries[strings.ToUpper(req.Destination.CountryCode)] {
		return &postal.NotSupportedError{Carrier: carrierName, What: "international routes"}
	}
	if req.Origin != nil && !uspsCountries[strings.ToUpper(req.Origin.CountryCode)] {
		return &postal.NotSupportedError{Carrier: carrierName, What: "non-US origins"}
	}
	for _, p := range req.Packages {
		if p.Weight > maxWeightLb {
			return &postal.ExceedsLimitsError{
				Carrier: carrierName,
				Limit:   "weight",
				Message: fmt.Sprintf("package weight %.1f lb exceeds %d lb", p.Weight, maxWeightLb),
			}
		}
		if girth(p) > maxGirthIn {
			return &postal.ExceedsLimitsError{
				Carrier: carrierName,
				Limit:   "size",
				Message: fmt.Sprintf("length plus girth %.1f in exceeds %d in", girth(p), maxGirthIn),
			}
		}
	}
	return nil
}

// girth is the longest dimension plus twice the sum of the other two.
func girth(p *postal.Package) float64 {
	longest := p.Length
	if p.Width > longest {
		longest = p.Width
	}
	if p.Height > longest {
		longest = p.Height
	}
	return longest + 2*(p.Length+p.Width+p.Height-longest)
}

func (c *Client) rates(ctx context.Context, req *postal.Request) (rateTable, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}

	return c.cache.GetOrFill(req.Fingerprint(), func() (rateTable, error) {
		ctx, span := c.tracer.Start(ctx, "usps.rates")
		defer span.End()
		c.logger.Ctx(ctx).Info("rating USPS request",
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

		table := make(rateTable, len(reply.Rates))
		for _, r := range reply.Rates {
			if _, err := c.ServiceByCode(r.ClassID); err != nil {
				continue
			}
			table[r.ClassID] = rateEntry{
				price: postal.Breakdown{
					Total: postal.Money{Amount: r.Rate + r.Fees, Currency: "USD"},
					Base:  postal.Money{Amount: r.Rate, Currency: "USD"},
					Fees:  postal.Money{Amount: r.Fees, Currency: "USD"},
				},
				delivery:  parseCommitmentDate(r.CommitmentDate),
				trackable: r.ClassID != "MEDIA",
			}
		}
		return table, nil
	})
}

// GetServices enumerates every USPS mail class that can carry the request.
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

// Quote prices one mail class against the cached rate table.
func (c *Client) Quote(ctx context.Context, svc postal.Service, req *postal.Request) (postal.Breakdown, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return postal.Breakdown{}, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return postal.Breakdown{}, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "mail class " + svc.Code + " for this request",
		}
	}
	return entry.price, nil
}

// DeliveryEstimate returns the commitment date for one mail class, or nil.
func (c *Client) DeliveryEstimate(ctx context.Context, svc postal.Service, req *postal.Request) (*time.Time, error) {
	table, err := c.rates(ctx, req)
	if err != nil {
		return nil, err
	}
	entry, ok := table[svc.Code]
	if !ok {
		return nil, &postal.NotSupportedError{
			Carrier: carrierName,
			What:    "mail class " + svc.Code + " for this request",
		}
	}
	return entry.delivery, nil
}

// ValidateAddress standardizes an address against the USPS database. An
// ambiguous or unmatched response surfaces as the original address with
// Matched false; corrected data is never fabricated.
func (c *Client) ValidateAddress(ctx context.Context, addr *postal.Address) (*postal.AddressMatch, error) {
	apiReq := &VerifyRequest{
		UserID:       c.config.UserID,
		FirmName:     addr.Name,
		City:         addr.City,
		State:        addr.Subdivision,
		ZIP5:         zip5(addr.PostalCode),
		Urbanization: addr.Urbanization,
	}
	if len(addr.Lines) > 0 {
		apiReq.Address1 = addr.Lines[0]
	}
	if len(addr.Lines) > 1 {
		apiReq.Address2 = addr.Lines[1]
	}

	reply, err := c.apiClient.VerifyAddress(ctx, apiReq)
	if err != nil {
		return nil, c.mapAPIError(err)
	}
	if !reply.Matched || reply.ReturnText != "" {
		return &postal.AddressMatch{Matched: false, Address: addr.Clone()}, nil
	}

	corrected := addr.Clone()
	lines := []string{reply.Address1}
	if reply.Address2 != "" {
		lines = append(lines, reply.Address2)
	}
	corrected.Lines = lines
	corrected.City = reply.City
	corrected.Subdivision = reply.State
	corrected.PostalCode = reply.ZIP5
	if reply.ZIP4 != "" {
		corrected.PostalCode = reply.ZIP5 + "-" + reply.ZIP4
	}
	corrected.Urbanization = reply.Urbanization
	corrected.Residential = reply.ResidentialIndicator == "Y"
	return &postal.AddressMatch{Matched: true, Address: corrected}, nil
}

// Ship labels every package, one call per package. A failure mid-way leaves
// earlier packages labeled; partial completion is reported through the
// result's package list alongside the error.
func (c *Client) Ship(ctx context.Context, svc postal.Service, req *postal.Request) (*postal.ShipResult, error) {
	if err := c.checkRoute(req); err != nil {
		return nil, err
	}
	if req.Origin == nil {
		return nil, &postal.AddressError{Carrier: carrierName, Message: "shipment requires an origin address"}
	}
	c.logger.Ctx(ctx).Info("labeling USPS shipment",
		zap.String("mail_class", svc.Code),
		zap.Int("package_count", len(req.Packages)),
	)

	var (
		results       []postal.PackageResult
		alerts        []string
		postage       float64
		fees          float64
		transactionID string
	)
	// USPS has no multi-piece booking, so a failure mid-way leaves earlier
	// packages labeled remotely. Their results ride alongside the error so
	// the caller can void or reuse the orphaned labels.
	partial := func(err error) (*postal.ShipResult, error) {
		if len(results) == 0 {
			return nil, err
		}
		return &postal.ShipResult{
			Shipment: postal.Shipment{
				Carrier:        carrierName,
				TrackingNumber: results[0].TrackingNumber,
				TransactionID:  transactionID,
			},
			Packages: results,
			Price: postal.Breakdown{
				Total: postal.Money{Amount: postage + fees, Currency: "USD"},
				Base:  postal.Money{Amount: postage, Currency: "USD"},
				Fees:  postal.Money{Amount: fees, Currency: "USD"},
			},
			Alerts: alerts,
		}, err
	}

	for _, pkg := range req.Packages {
		wire, err := c.wirePackage(pkg)
		if err != nil {
			return partial(err)
		}
		reply, err := c.apiClient.CreateLabel(ctx, &LabelRequest{
			UserID:      c.config.UserID,
			ServiceType: svc.Code,
			Origin:      addressToWire(req.Origin),
			Destination: addressToWire(req.Destination),
			Package:     wire,
			ShipDate:    shipDate(req),
		})
		if err != nil {
			return partial(c.mapAPIError(err))
		}
		results = append(results, postal.PackageResult{
			Package:        pkg,
			TrackingNumber: reply.TrackingNumber,
			Label: postal.Label{
				Format: postal.LabelPDF,
				Data:   base64.StdEncoding.EncodeToString(reply.LabelImage),
			},
		})
		alerts = append(alerts, reply.Alerts...)
		postage += reply.Postage
		fees += reply.Fees
		if transactionID == "" {
			transactionID = reply.TransactionID
		}
	}

	master := ""
	if len(results) > 0 {
		master = results[0].TrackingNumber
	}
	return &postal.ShipResult{
		Shipment: postal.Shipment{
			Carrier:        carrierName,
			TrackingNumber: master,
			TransactionID:  transactionID,
		},
		Packages: results,
		Price: postal.Breakdown{
			Total: postal.Money{Amount: postage + fees, Currency: "USD"},
			Base:  postal.Money{Amount: postage, Currency: "USD"},
			Fees:  postal.Money{Amount: fees, Currency: "USD"},
		},
		Alerts: alerts,
	}, nil
}

// mapAPIError translates Web Tools error numbers into the closed postal
// taxonomy.
func (c *Client) mapAPIError(err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return postal.NewCarrierError(carrierName, "TRANSPORT", "request failed").WithCause(err)
	}
	switch apiErr.Number {
	case "-2147219401", "-2147219400": // address not found / invalid city-state
		return &postal.AddressError{
			Carrier: carrierName,
			Message: apiErr.Description,
			Fields:  map[string]string{"address": apiErr.Description},
		}
	case "-2147218040": // invalid service for request
		return &postal.NotSupportedError{Carrier: carrierName, What: apiErr.Description}
	case "-2147219381": // exceeds maximum weight
		return &postal.ExceedsLimitsError{Carrier: carrierName, Limit: "weight", Message: apiErr.Description}
	default:
		return postal.NewCarrierError(carrierName, apiErr.Number, apiErr.Description)
	}
}

func (c *Client) rateRequest(req *postal.Request) (*RateRequest, error) {
	packages := make([]WirePackage, len(req.Packages))
	for i, p := range req.Packages {
		wire, err := c.wirePackage(p)
		if err != nil {
			return nil, err
		}
		wire.ID = fmt.Sprintf("%d", i)
		packages[i] = wire
	}
	apiReq := &RateRequest{
		UserID:         c.config.UserID,
		DestinationZIP: zip5(req.Destination.PostalCode),
		Packages:       packages,
		ShipDate:       shipDate(req),
	}
	if req.Origin != nil {
		apiReq.OriginZIP = zip5(req.Origin.PostalCode)
	}
	return apiReq, nil
}

func (c *Client) wirePackage(p *postal.Package) (WirePackage, error) {
	translated, _, err := c.types.Translate(p.Type, p.CarrierConversion)
	if err != nil {
		return WirePackage{}, err
	}
	insured, err := p.InsuredValue()
	if err != nil {
		return WirePackage{}, err
	}
	pounds := math.Floor(p.Weight)
	ounces := (p.Weight - pounds) * 16
	return WirePackage{
		Length:       p.Length,
		Width:        p.Width,
		Height:       p.Height,
		Pounds:       int(pounds),
		Ounces:       math.Round(ounces*10) / 10,
		Container:    translated.Code,
		Machinable:   p.Weight <= 25,
		InsuredValue: insured.Amount,
	}, nil
}

func addressToWire(addr *postal.Address) WireAddress {
	w := WireAddress{
		Name:         addr.Name,
		City:         addr.City,
		State:        addr.Subdivision,
		ZIP5:         zip5(addr.PostalCode),
		Urbanization: addr.Urbanization,
	}
	if len(addr.Lines) > 0 {
		w.Address1 = addr.Lines[0]
	}
	if len(addr.Lines) > 1 {
		w.Address2 = addr.Lines[1]
	}
	return w
}

func zip5(postalCode string) string {
	code := strings.TrimSpace(postalCode)
	if len(code) > 5 {
		return code[:5]
	}
	return code
}

func parseCommitmentDate(s string) *time.Time {
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
