// Package server exposes a thin HTTP/JSON surface over the carrier
// abstraction for rate shopping and address validation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/postalops/postal/internal/telemetry"
	"github.com/postalops/postal/pkg/postal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the rating service.
type Server struct {
	port     int
	postal   *postal.Postal
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, p *postal.Postal, logger *otelzap.Logger) *Server {
	registry := prometheus.NewRegistry()
	return &Server{
		port:     cfg.Port,
		postal:   p,
		logger:   logger,
		metrics:  telemetry.NewMetrics(registry),
		registry: registry,
	}
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/carriers", s.handleCarriers)
	mux.HandleFunc("/v1/rates", s.handleRates)
	mux.HandleFunc("/v1/address/validate", s.handleValidateAddress)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}

	carriers := s.postal.Carriers()
	dtos := make([]carrierDTO, len(carriers))
	for i, c := range carriers {
		dtos[i] = carrierToDTO(c)
	}
	writeJSON(w, http.StatusOK, carriersResponse{Carriers: dtos})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var dto rateRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	resp := rateResponse{Options: []optionDTO{}}
	for result := range s.postal.OptionsConcurrent(r.Context(), req) {
		if result.Err != nil {
			s.metrics.RecordError(result.CarrierName, errorType(result.Err))
			resp.Errors = append(resp.Errors, carrierErrorDTO{
				Carrier: result.CarrierName,
				Type:    errorType(result.Err),
				Message: result.Err.Error(),
			})
			continue
		}
		resp.Options = append(resp.Options, optionToDTO(*result.Option))
	}
	s.metrics.RecordRequest("rates", "all", "ok", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var dto addressDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	addr := dto.toAddress()
	if err := addr.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	match, err := s.postal.ValidateAddress(r.Context(), addr)
	if err != nil {
		s.metrics.RecordRequest("validate_address", "all", "error", time.Since(start).Seconds())
		status := http.StatusBadGateway
		if postal.IsNotSupported(err) {
			status = http.StatusNotImplemented
		}
		var addrErr *postal.AddressError
		if errors.As(err, &addrErr) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	s.metrics.RecordRequest("validate_address", "all", "ok", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, validateResponse{
		Matched: match.Matched,
		Address: addressFromPostal(match.Address),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorType buckets an error for metric labels.
func errorType(err error) string {
	var (
		notSupported *postal.NotSupportedError
		exceeds      *postal.ExceedsLimitsError
		addrErr      *postal.AddressError
		carrierErr   *postal.CarrierError
	)
	switch {
	case errors.As(err, &notSupported):
		return "not_supported"
	case errors.As(err, &exceeds):
		return "exceeds_limits"
	case errors.As(err, &addrErr):
		return "address"
	case errors.As(err, &carrierErr):
		return "carrier"
	default:
		return "unknown"
	}
}
