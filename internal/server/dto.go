package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/postalops/postal/pkg/postal"
)

// DecodeRateRequest parses the JSON rate-request document shared by the HTTP
// surface and the CLI.
func DecodeRateRequest(r io.Reader) (*postal.Request, error) {
	var dto rateRequest
	if err := json.NewDecoder(r).Decode(&dto); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return dto.toRequest()
}

// DecodeAddress parses the JSON address document shared by the HTTP surface
// and the CLI.
func DecodeAddress(r io.Reader) (*postal.Address, error) {
	var dto addressDTO
	if err := json.NewDecoder(r).Decode(&dto); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	addr := dto.toAddress()
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return addr, nil
}

// WriteRateResults drains the orchestrator's result stream and writes the
// rate-response document as indented JSON.
func WriteRateResults(w io.Writer, results <-chan postal.OptionResult) error {
	resp := rateResponse{Options: []optionDTO{}}
	for result := range results {
		if result.Err != nil {
			resp.Errors = append(resp.Errors, carrierErrorDTO{
				Carrier: result.CarrierName,
				Type:    errorType(result.Err),
				Message: result.Err.Error(),
			})
			continue
		}
		resp.Options = append(resp.Options, optionToDTO(*result.Option))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// WriteAddressMatch writes the validation-response document as indented JSON.
func WriteAddressMatch(w io.Writer, match *postal.AddressMatch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(validateResponse{
		Matched: match.Matched,
		Address: addressFromPostal(match.Address),
	})
}

// Wire DTOs for the JSON surface. Dimensions follow the request's units
// field; money is decimal amount plus ISO currency code.

type addressDTO struct {
	Name         string   `json:"name,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Lines        []string `json:"lines"`
	City         string   `json:"city"`
	Subdivision  string   `json:"subdivision,omitempty"`
	PostalCode   string   `json:"postal_code,omitempty"`
	CountryCode  string   `json:"country_code"`
	Residential  bool     `json:"residential,omitempty"`
	Email        string   `json:"email,omitempty"`
	Urbanization string   `json:"urbanization,omitempty"`
}

type moneyDTO struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type breakdownDTO struct {
	Total moneyDTO `json:"total"`
	Base  moneyDTO `json:"base"`
	Fees  moneyDTO `json:"fees"`
}

type declarationDTO struct {
	Description   string   `json:"description"`
	Value         moneyDTO `json:"value"`
	OriginCountry string   `json:"origin_country,omitempty"`
	Units         int      `json:"units"`
	Insure        bool     `json:"insure,omitempty"`
}

type packageDTO struct {
	Length            float64          `json:"length"`
	Width             float64          `json:"width"`
	Height            float64          `json:"height"`
	Weight            float64          `json:"weight"`
	Type              string           `json:"type,omitempty"`
	DocumentsOnly     bool             `json:"documents_only,omitempty"`
	CarrierConversion bool             `json:"carrier_conversion,omitempty"`
	Declarations      []declarationDTO `json:"declarations,omitempty"`
}

type rateRequest struct {
	Origin      *addressDTO  `json:"origin,omitempty"`
	Destination *addressDTO  `json:"destination"`
	Packages    []packageDTO `json:"packages"`
	ShipTime    *time.Time   `json:"ship_time,omitempty"`
	// Metric marks package dimensions as centimeters and kilograms.
	Metric bool `json:"metric,omitempty"`
}

type optionDTO struct {
	Carrier          string       `json:"carrier"`
	ServiceCode      string       `json:"service_code"`
	ServiceName      string       `json:"service_name"`
	Price            breakdownDTO `json:"price"`
	DeliveryEstimate *time.Time   `json:"delivery_estimate,omitempty"`
	Trackable        bool         `json:"trackable"`
	Alerts           []string     `json:"alerts,omitempty"`
}

type carrierErrorDTO struct {
	Carrier string `json:"carrier"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type rateResponse struct {
	Options []optionDTO       `json:"options"`
	Errors  []carrierErrorDTO `json:"errors,omitempty"`
}

type serviceDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type carrierDTO struct {
	Name         string              `json:"name"`
	Capabilities postal.Capabilities `json:"capabilities"`
	Services     []serviceDTO        `json:"services"`
}

type carriersResponse struct {
	Carriers []carrierDTO `json:"carriers"`
}

type validateResponse struct {
	Matched bool       `json:"matched"`
	Address addressDTO `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *addressDTO) toAddress() *postal.Address {
	return &postal.Address{
		Name:         a.Name,
		Phone:        a.Phone,
		Lines:        a.Lines,
		City:         a.City,
		Subdivision:  a.Subdivision,
		PostalCode:   a.PostalCode,
		CountryCode:  a.CountryCode,
		Residential:  a.Residential,
		Email:        a.Email,
		Urbanization: a.Urbanization,
	}
}

func addressFromPostal(a *postal.Address) addressDTO {
	return addressDTO{
		Name:         a.Name,
		Phone:        a.Phone,
		Lines:        a.Lines,
		City:         a.City,
		Subdivision:  a.Subdivision,
		PostalCode:   a.PostalCode,
		CountryCode:  a.CountryCode,
		Residential:  a.Residential,
		Email:        a.Email,
		Urbanization: a.Urbanization,
	}
}

func (r *rateRequest) toRequest() (*postal.Request, error) {
	if r.Destination == nil {
		return nil, fmt.Errorf("destination is required")
	}

	packages := make([]*postal.Package, 0, len(r.Packages))
	for i, p := range r.Packages {
		opts := []postal.PackageOption{}
		if r.Metric {
			opts = append(opts, postal.Metric())
		}
		if p.DocumentsOnly {
			opts = append(opts, postal.AsDocuments())
		}
		if p.CarrierConversion {
			opts = append(opts, postal.WithCarrierConversion())
		}
		if p.Type != "" {
			t, err := packageType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("package %d: %w", i, err)
			}
			opts = append(opts, postal.WithType(t))
		}
		if len(p.Declarations) > 0 {
			decls := make([]postal.Declaration, len(p.Declarations))
			for j, d := range p.Declarations {
				decls[j] = postal.Declaration{
					Description:   d.Description,
					Value:         postal.Money{Amount: d.Value.Amount, Currency: d.Value.Currency},
					OriginCountry: d.OriginCountry,
					Units:         d.Units,
					Insure:        d.Insure,
				}
			}
			opts = append(opts, postal.WithDeclarations(decls...))
		}

		pkg := postal.NewPackage(p.Length, p.Width, p.Height, p.Weight, opts...)
		if err := pkg.Validate(); err != nil {
			return nil, fmt.Errorf("package %d: %w", i, err)
		}
		packages = append(packages, pkg)
	}

	var origin *postal.Address
	if r.Origin != nil {
		origin = r.Origin.toAddress()
		if err := origin.Validate(); err != nil {
			return nil, fmt.Errorf("origin: %w", err)
		}
	}
	destination := r.Destination.toAddress()
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	var reqOpts []postal.RequestOption
	if r.ShipTime != nil {
		reqOpts = append(reqOpts, postal.WithShipTime(*r.ShipTime))
	}
	return postal.NewRequest(origin, destination, packages, reqOpts...)
}

func packageType(name string) (postal.PackageType, error) {
	switch name {
	case "package":
		return postal.TypePackage, nil
	case "softpak":
		return postal.TypeSoftpak, nil
	case "envelope":
		return postal.TypeEnvelope, nil
	default:
		return postal.PackageType{}, fmt.Errorf("unknown package type %q", name)
	}
}

func optionToDTO(opt postal.Option) optionDTO {
	return optionDTO{
		Carrier:          opt.Service.CarrierName(),
		ServiceCode:      opt.Service.Code,
		ServiceName:      opt.Service.Name,
		Price:            breakdownToDTO(opt.Price),
		DeliveryEstimate: opt.DeliveryEstimate,
		Trackable:        opt.Trackable,
		Alerts:           opt.Alerts,
	}
}

func breakdownToDTO(b postal.Breakdown) breakdownDTO {
	return breakdownDTO{
		Total: moneyDTO{Amount: b.Total.Amount, Currency: b.Total.Currency},
		Base:  moneyDTO{Amount: b.Base.Amount, Currency: b.Base.Currency},
		Fees:  moneyDTO{Amount: b.Fees.Amount, Currency: b.Fees.Currency},
	}
}

func carrierToDTO(c postal.Carrier) carrierDTO {
	services := c.AllServices()
	dtos := make([]serviceDTO, len(services))
	for i, s := range services {
		dtos[i] = serviceDTO{Code: s.Code, Name: s.Name}
	}
	return carrierDTO{
		Name:         c.Name(),
		Capabilities: c.Capabilities(),
		Services:     dtos,
	}
}
