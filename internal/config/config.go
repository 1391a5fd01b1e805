package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Shipper origin, used when a request carries no origin address.
	ShipperName        string `envconfig:"SHIPPER_NAME"`
	ShipperLines       string `envconfig:"SHIPPER_ADDRESS_LINES"`
	ShipperCity        string `envconfig:"SHIPPER_CITY"`
	ShipperSubdivision string `envconfig:"SHIPPER_SUBDIVISION"`
	ShipperPostalCode  string `envconfig:"SHIPPER_POSTAL_CODE"`
	ShipperCountryCode string `envconfig:"SHIPPER_COUNTRY_CODE" default:"US"`
	ShipperPhone       string `envconfig:"SHIPPER_PHONE"`

	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"USD"`

	// FedEx
	FedExKey           string `envconfig:"FEDEX_KEY"`
	FedExPassword      string `envconfig:"FEDEX_PASSWORD"`
	FedExAccountNumber string `envconfig:"FEDEX_ACCOUNT_NUMBER"`
	FedExMeterNumber   string `envconfig:"FEDEX_METER_NUMBER"`
	FedExEnabled       bool   `envconfig:"FEDEX_ENABLED" default:"true"`
	FedExUseMock       bool   `envconfig:"FEDEX_USE_MOCK" default:"false"`

	// UPS
	UPSUsername      string `envconfig:"UPS_USERNAME"`
	UPSPassword      string `envconfig:"UPS_PASSWORD"`
	UPSAccessLicense string `envconfig:"UPS_ACCESS_LICENSE"`
	UPSEnabled       bool   `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock       bool   `envconfig:"UPS_USE_MOCK" default:"false"`

	// DHL Express
	DHLSiteID   string `envconfig:"DHL_SITE_ID"`
	DHLPassword string `envconfig:"DHL_PASSWORD"`
	DHLEnabled  bool   `envconfig:"DHL_ENABLED" default:"true"`
	DHLUseMock  bool   `envconfig:"DHL_USE_MOCK" default:"false"`

	// Aramex
	AramexUsername       string `envconfig:"ARAMEX_USERNAME"`
	AramexPassword       string `envconfig:"ARAMEX_PASSWORD"`
	AramexAccountNumber  string `envconfig:"ARAMEX_ACCOUNT_NUMBER"`
	AramexAccountPin     string `envconfig:"ARAMEX_ACCOUNT_PIN"`
	AramexAccountEntity  string `envconfig:"ARAMEX_ACCOUNT_ENTITY"`
	AramexAccountCountry string `envconfig:"ARAMEX_ACCOUNT_COUNTRY"`
	AramexEnabled        bool   `envconfig:"ARAMEX_ENABLED" default:"true"`
	AramexUseMock        bool   `envconfig:"ARAMEX_USE_MOCK" default:"false"`

	// USPS Web Tools
	USPSUserID  string `envconfig:"USPS_USER_ID"`
	USPSBaseURL string `envconfig:"USPS_BASE_URL" default:"https://secure.shippingapis.com/ShippingAPI.dll"`
	USPSEnabled bool   `envconfig:"USPS_ENABLED" default:"true"`
	USPSUseMock bool   `envconfig:"USPS_USE_MOCK" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"postal"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("fedex.enabled", c.FedExEnabled),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("dhl.enabled", c.DHLEnabled),
		attribute.Bool("aramex.enabled", c.AramexEnabled),
		attribute.Bool("usps.enabled", c.USPSEnabled),
	}
}
