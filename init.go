package main

import (
	"context"
	"strings"

	"github.com/postalops/postal/internal/config"
	"github.com/postalops/postal/internal/telemetry"
	"github.com/postalops/postal/pkg/postal"
	"github.com/postalops/postal/pkg/postal/carriers/aramex"
	"github.com/postalops/postal/pkg/postal/carriers/dhl"
	"github.com/postalops/postal/pkg/postal/carriers/fedex"
	"github.com/postalops/postal/pkg/postal/carriers/ups"
	"github.com/postalops/postal/pkg/postal/carriers/usps"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.Attributes())
}

func initPostal(cfg *config.Config, logger *otelzap.Logger) (*postal.Postal, error) {
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	var carriers []postal.Carrier

	if cfg.FedExEnabled {
		carriers = append(carriers, fedex.New(fedex.Config{
			Key:           cfg.FedExKey,
			Password:      cfg.FedExPassword,
			AccountNumber: cfg.FedExAccountNumber,
			MeterNumber:   cfg.FedExMeterNumber,
			UseMock:       cfg.FedExUseMock,
		}, logger, tracer))
	}

	if cfg.UPSEnabled {
		carriers = append(carriers, ups.New(ups.Config{
			AccessKey: cfg.UPSAccessLicense,
			Username:  cfg.UPSUsername,
			Password:  cfg.UPSPassword,
			UseMock:   cfg.UPSUseMock,
		}, logger, tracer))
	}

	if cfg.DHLEnabled {
		carriers = append(carriers, dhl.New(dhl.Config{
			SiteID:   cfg.DHLSiteID,
			Password: cfg.DHLPassword,
			UseMock:  cfg.DHLUseMock,
		}, logger, tracer))
	}

	if cfg.AramexEnabled {
		carriers = append(carriers, aramex.New(aramex.Config{
			Username:           cfg.AramexUsername,
			Password:           cfg.AramexPassword,
			AccountNumber:      cfg.AramexAccountNumber,
			AccountPin:         cfg.AramexAccountPin,
			AccountEntity:      cfg.AramexAccountEntity,
			AccountCountryCode: cfg.AramexAccountCountry,
			UseMock:            cfg.AramexUseMock,
		}, logger, tracer))
	}

	if cfg.USPSEnabled {
		carriers = append(carriers, usps.New(usps.Config{
			UserID:  cfg.USPSUserID,
			BaseURL: cfg.USPSBaseURL,
			UseMock: cfg.USPSUseMock,
		}, logger, tracer))
	}

	return postal.New(postal.Options{
		ShipperAddress:  shipperAddress(cfg),
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          logger,
		Tracer:          tracer,
	}, carriers...)
}

// shipperAddress builds the fallback origin from configuration, or nil when
// none is configured.
func shipperAddress(cfg *config.Config) *postal.Address {
	if cfg.ShipperCity == "" || cfg.ShipperLines == "" {
		return nil
	}
	return &postal.Address{
		Name:        cfg.ShipperName,
		Phone:       cfg.ShipperPhone,
		Lines:       strings.Split(cfg.ShipperLines, ";"),
		City:        cfg.ShipperCity,
		Subdivision: cfg.ShipperSubdivision,
		PostalCode:  cfg.ShipperPostalCode,
		CountryCode: cfg.ShipperCountryCode,
	}
}
