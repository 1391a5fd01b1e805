package postal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Address represents a shipping address. Street lines, city, and country are
// mandatory; urbanization is only meaningful for Puerto Rico.
type Address struct {
	Name         string   `validate:"-"`
	Phone        string   `validate:"-"`
	Lines        []string `validate:"min=1,dive,required"`
	City         string   `validate:"required"`
	Subdivision  string   // state/province code
	PostalCode   string
	CountryCode  string `validate:"required,len=2"` // ISO 3166-1 alpha-2
	Residential  bool
	Email        string `validate:"omitempty,email"`
	Urbanization string
}

// Validate checks structural invariants. Field-level failures are reported
// through an AddressError with a field-to-message map.
func (a *Address) Validate() error {
	if err := validate.Struct(a); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = "failed " + fe.Tag() + " check"
			}
		}
		return &AddressError{Message: "invalid address", Fields: fields}
	}
	// ByName resolves unknown inputs like "XX" to non-country sentinels, so
	// a strict alpha-2 round trip is required on top of the lookup.
	code := strings.ToUpper(a.CountryCode)
	if country := countries.ByName(code); !country.IsValid() || country.Alpha2() != code {
		return &AddressError{
			Message: "invalid address",
			Fields:  map[string]string{"countrycode": "unrecognized ISO alpha-2 code " + a.CountryCode},
		}
	}
	if a.Urbanization != "" && code != "PR" {
		return &AddressError{
			Message: "invalid address",
			Fields:  map[string]string{"urbanization": "only valid for Puerto Rico"},
		}
	}
	return nil
}

// Key returns the normalized field tuple used for equality and cache keys.
func (a *Address) Key() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	parts := make([]string, 0, len(a.Lines)+8)
	parts = append(parts, norm(a.Name), norm(a.Phone))
	for _, l := range a.Lines {
		parts = append(parts, norm(l))
	}
	parts = append(parts,
		norm(a.City), norm(a.Subdivision), norm(a.PostalCode),
		norm(a.CountryCode), norm(a.Urbanization),
		fmt.Sprintf("%t", a.Residential),
	)
	return strings.Join(parts, "|")
}

// Equal compares two addresses by their normalized field tuple.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Key() == other.Key()
}

// Clone returns a deep copy.
func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Lines = append([]string(nil), a.Lines...)
	return &cp
}

// PackageType identifies a packaging. An empty Carrier denotes a generic type
// every backend translates into its own code; a concrete carrier denotes that
// carrier's proprietary packaging.
type PackageType struct {
	Carrier string
	Code    string
	Name    string
}

// Generic packaging types.
var (
	TypePackage  = PackageType{Code: "package", Name: "Package"}
	TypeSoftpak  = PackageType{Code: "softpak", Name: "Softpak"}
	TypeEnvelope = PackageType{Code: "envelope", Name: "Envelope"}
)

// Generic reports whether the type is carrier-agnostic.
func (t PackageType) Generic() bool {
	return t.Carrier == ""
}

// Equal compares by (carrier, code).
func (t PackageType) Equal(other PackageType) bool {
	return t.Carrier == other.Carrier && t.Code == other.Code
}

func (t PackageType) String() string {
	if t.Generic() {
		return t.Code
	}
	return t.Carrier + "/" + t.Code
}

// Declaration is one customs/insurance line item describing package contents.
type Declaration struct {
	Description   string
	Value         Money // per-unit value; zero sentinel allowed
	OriginCountry string
	Units         int
	Insure        bool
}

// TotalValue is the per-unit value times the unit count.
func (d Declaration) TotalValue() Money {
	return d.Value.Mul(d.Units)
}

// InsuredValue is the total value when the line is insured, zero otherwise.
func (d Declaration) InsuredValue() Money {
	if !d.Insure {
		return Zero()
	}
	return d.TotalValue()
}

func (d Declaration) fingerprint() string {
	return fmt.Sprintf("%s|%.4f|%s|%s|%d|%t",
		strings.ToLower(d.Description), d.Value.Amount, d.Value.Currency,
		strings.ToUpper(d.OriginCountry), d.Units, d.Insure)
}

// Package is one physical parcel. Dimensions are inches and weight is pounds,
// always; metric inputs are converted at construction.
type Package struct {
	Length float64 `validate:"gt=0"`
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
	Weight float64 `validate:"gt=0"`

	Type          PackageType
	DocumentsOnly bool
	// CarrierConversion requests upgrading a generic type to the servicing
	// carrier's branded packaging when the carrier defines one.
	CarrierConversion bool
	Declarations      []Declaration
}

// PackageOption configures package construction.
type PackageOption func(*Package)

// Metric marks the constructor inputs as centimeters and kilograms; they are
// converted to imperial immediately.
func Metric() PackageOption {
	return func(p *Package) {
		p.Length = CentimetersToInches(p.Length)
		p.Width = CentimetersToInches(p.Width)
		p.Height = CentimetersToInches(p.Height)
		p.Weight = KilogramsToPounds(p.Weight)
	}
}

// WithType sets the packaging type.
func WithType(t PackageType) PackageOption {
	return func(p *Package) { p.Type = t }
}

// WithDeclarations attaches customs/insurance line items.
func WithDeclarations(decls ...Declaration) PackageOption {
	return func(p *Package) { p.Declarations = append(p.Declarations, decls...) }
}

// WithCarrierConversion requests branded-packaging upgrades where the
// servicing carrier defines one.
func WithCarrierConversion() PackageOption {
	return func(p *Package) { p.CarrierConversion = true }
}

// AsDocuments marks the package as documents-only.
func AsDocuments() PackageOption {
	return func(p *Package) { p.DocumentsOnly = true }
}

// NewPackage builds a package from length, width, height (inches) and weight
// (pounds) unless the Metric option is given.
func NewPackage(length, width, height, weight float64, opts ...PackageOption) *Package {
	p := &Package{
		Length: length,
		Width:  width,
		Height: height,
		Weight: weight,
		Type:   TypePackage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks physical invariants.
func (p *Package) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid package: %w", err)
	}
	return nil
}

// DeclaredValue sums each declaration's value times units.
func (p *Package) DeclaredValue() (Money, error) {
	total := Zero()
	for _, d := range p.Declarations {
		var err error
		total, err = total.Add(d.TotalValue())
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// InsuredValue sums only declarations flagged for insurance.
func (p *Package) InsuredValue() (Money, error) {
	total := Zero()
	for _, d := range p.Declarations {
		var err error
		total, err = total.Add(d.InsuredValue())
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Fingerprint is an identity over sorted dimensions, weight, type, and
// declarations. Two packages with permuted dimensions hash identically.
func (p *Package) Fingerprint() string {
	dims := []float64{p.Length, p.Width, p.Height}
	sort.Float64s(dims)
	decls := make([]string, len(p.Declarations))
	for i, d := range p.Declarations {
		decls[i] = d.fingerprint()
	}
	sort.Strings(decls)
	return fmt.Sprintf("%.4f;%.4f;%.4f;%.4f;%s;%t;%s",
		dims[0], dims[1], dims[2], p.Weight, p.Type, p.DocumentsOnly,
		strings.Join(decls, ","))
}

// Request is one shipment's worth of origin/destination/packages to be rated
// or shipped. Origin may be nil, falling back to the configured shipper
// address. CarrierOptions threads typed per-backend option structs, keyed by
// carrier name, through the orchestrator opaquely.
type Request struct {
	Origin      *Address
	Destination *Address
	Packages    []*Package

	// ShipTime is the requested pickup time. Nil, or a time already in the
	// past, means "as soon as possible".
	ShipTime *time.Time

	CarrierOptions map[string]any
}

// NewRequest builds a request, normalizing a past ship time to nil.
func NewRequest(origin, destination *Address, packages []*Package, opts ...RequestOption) (*Request, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("request must contain at least one package")
	}
	r := &Request{
		Origin:      origin,
		Destination: destination,
		Packages:    packages,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.normalizeShipTime(time.Now())
	return r, nil
}

// RequestOption configures request construction.
type RequestOption func(*Request)

// WithShipTime sets the requested pickup time.
func WithShipTime(t time.Time) RequestOption {
	return func(r *Request) { r.ShipTime = &t }
}

// WithCarrierOptions attaches a carrier-specific option struct under the
// carrier's name. The core never interprets it.
func WithCarrierOptions(carrier string, options any) RequestOption {
	return func(r *Request) {
		if r.CarrierOptions == nil {
			r.CarrierOptions = map[string]any{}
		}
		r.CarrierOptions[carrier] = options
	}
}

func (r *Request) normalizeShipTime(now time.Time) {
	if r.ShipTime != nil && r.ShipTime.Before(now) {
		r.ShipTime = nil
	}
}

// Clone returns a shallow copy with its own package slice and option map.
// Backends receive clones so caller data is never mutated.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Packages = append([]*Package(nil), r.Packages...)
	if r.CarrierOptions != nil {
		cp.CarrierOptions = make(map[string]any, len(r.CarrierOptions))
		for k, v := range r.CarrierOptions {
			cp.CarrierOptions[k] = v
		}
	}
	return &cp
}

// TotalWeight sums package weights in pounds.
func (r *Request) TotalWeight() float64 {
	var total float64
	for _, p := range r.Packages {
		total += p.Weight
	}
	return total
}

// TotalDeclaredValue sums declared values across all packages.
func (r *Request) TotalDeclaredValue() (Money, error) {
	total := Zero()
	for _, p := range r.Packages {
		v, err := p.DeclaredValue()
		if err != nil {
			return Money{}, err
		}
		total, err = total.Add(v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// TotalInsuredValue sums insured values across all packages.
func (r *Request) TotalInsuredValue() (Money, error) {
	total := Zero()
	for _, p := range r.Packages {
		v, err := p.InsuredValue()
		if err != nil {
			return Money{}, err
		}
		total, err = total.Add(v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// DocumentsOnly reports whether every package carries documents only.
func (r *Request) DocumentsOnly() bool {
	for _, p := range r.Packages {
		if !p.DocumentsOnly {
			return false
		}
	}
	return true
}

// International compares origin and destination countries. When the request
// has no origin the caller must supply a fallback origin for comparison.
func (r *Request) International(fallbackOrigin *Address) (bool, error) {
	origin := r.Origin
	if origin == nil {
		origin = fallbackOrigin
	}
	if origin == nil {
		return false, fmt.Errorf("request has no origin and no fallback was supplied")
	}
	if r.Destination == nil {
		return false, fmt.Errorf("request has no destination")
	}
	return !strings.EqualFold(origin.CountryCode, r.Destination.CountryCode), nil
}

// Fingerprint is an order-independent identity over the request's packages,
// used as a rate-cache key. Requests with the same packages in different
// order hash identically.
func (r *Request) Fingerprint() string {
	prints := make([]string, len(r.Packages))
	for i, p := range r.Packages {
		prints[i] = p.Fingerprint()
	}
	sort.Strings(prints)
	destKey := ""
	if r.Destination != nil {
		destKey = r.Destination.Key()
	}
	originKey := ""
	if r.Origin != nil {
		originKey = r.Origin.Key()
	}
	h := sha256.Sum256([]byte(originKey + "\n" + destKey + "\n" + strings.Join(prints, "\n")))
	return hex.EncodeToString(h[:])
}

// Shipment is the immutable result of a successful ship call.
type Shipment struct {
	Carrier        string
	TrackingNumber string // master tracking number
	TransactionID  string
}

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "pdf"
	LabelPNG LabelFormat = "png"
	LabelZPL LabelFormat = "zpl"
)

// Label represents a shipping label artifact.
type Label struct {
	Format LabelFormat
	Data   string // base64 encoded if inline
	URL    string // URL if hosted
}
