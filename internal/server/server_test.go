package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/postalops/postal/internal/server"
	"github.com/postalops/postal/pkg/postal"
	"github.com/postalops/postal/pkg/postal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, carriers ...postal.Carrier) *server.Server {
	t.Helper()

	if len(carriers) == 0 {
		carriers = []postal.Carrier{mock.New("test-carrier")}
	}
	logger := otelzap.New(zap.NewNop())
	p, err := postal.New(postal.Options{Logger: logger}, carriers...)
	require.NoError(t, err)

	return server.New(server.Config{Port: 8080}, p, logger)
}

const rateBody = `{
	"origin": {
		"lines": ["100 Main St"], "city": "Boston",
		"subdivision": "MA", "postal_code": "02108", "country_code": "US"
	},
	"destination": {
		"lines": ["200 SW Market St"], "city": "Portland",
		"subdivision": "OR", "postal_code": "97201", "country_code": "US"
	},
	"packages": [{"length": 12, "width": 9, "height": 6, "weight": 4}]
}`

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Carriers(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/carriers", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Carriers []struct {
			Name     string `json:"name"`
			Services []struct {
				Code string `json:"code"`
			} `json:"services"`
		} `json:"carriers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Carriers, 1)
	assert.Equal(t, "test-carrier", resp.Carriers[0].Name)
	assert.Len(t, resp.Carriers[0].Services, 2)
}

func TestServer_Carriers_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/carriers", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Rates(t *testing.T) {
	srv := newTestServer(t, mock.New("alpha"), mock.New("beta"))

	req := httptest.NewRequest(http.MethodPost, "/v1/rates", strings.NewReader(rateBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Options []struct {
			Carrier     string `json:"carrier"`
			ServiceCode string `json:"service_code"`
			Price       struct {
				Total struct {
					Amount   float64 `json:"amount"`
					Currency string  `json:"currency"`
				} `json:"total"`
			} `json:"price"`
		} `json:"options"`
		Errors []json.RawMessage `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Two canned services per carrier.
	assert.Len(t, resp.Options, 4)
	assert.Empty(t, resp.Errors)
	for _, opt := range resp.Options {
		assert.Greater(t, opt.Price.Total.Amount, 0.0)
		assert.NotEmpty(t, opt.Price.Total.Currency)
	}
}

func TestServer_Rates_PartialFailure(t *testing.T) {
	broken := mock.New("broken")
	broken.FailGetServices = postal.NewCarrierError("broken", "DOWN", "backend outage")
	srv := newTestServer(t, mock.New("healthy"), broken)

	req := httptest.NewRequest(http.MethodPost, "/v1/rates", strings.NewReader(rateBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Options []struct {
			Carrier string `json:"carrier"`
		} `json:"options"`
		Errors []struct {
			Carrier string `json:"carrier"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Len(t, resp.Options, 2, "the healthy carrier still quotes")
	for _, opt := range resp.Options {
		assert.Equal(t, "healthy", opt.Carrier)
	}
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "broken", resp.Errors[0].Carrier)
	assert.Equal(t, "carrier", resp.Errors[0].Type)
	assert.Contains(t, resp.Errors[0].Message, "backend outage")
}

func TestServer_Rates_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/rates", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid JSON")
}

func TestServer_Rates_MissingDestination(t *testing.T) {
	srv := newTestServer(t)

	body := `{"packages": [{"length": 12, "width": 9, "height": 6, "weight": 4}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rates", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Rates_InvalidPackage(t *testing.T) {
	srv := newTestServer(t)

	body := strings.Replace(rateBody, `"weight": 4`, `"weight": 0`, 1)
	req := httptest.NewRequest(http.MethodPost, "/v1/rates", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ValidateAddress(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"lines": ["200 SW Market St"], "city": "Portland",
		"subdivision": "OR", "postal_code": "97201", "country_code": "US"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/address/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Matched bool `json:"matched"`
		Address struct {
			City string `json:"city"`
		} `json:"address"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Equal(t, "Portland", resp.Address.City)
}

func TestServer_ValidateAddress_NoCapableCarrier(t *testing.T) {
	carrier := mock.NewWithCapabilities("no-av", postal.Capabilities{
		Domestic: true, International: true,
	})
	srv := newTestServer(t, carrier)

	body := `{
		"lines": ["200 SW Market St"], "city": "Portland",
		"subdivision": "OR", "postal_code": "97201", "country_code": "US"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/address/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestServer_ValidateAddress_InvalidAddress(t *testing.T) {
	srv := newTestServer(t)

	body := `{"lines": [], "city": "", "country_code": "XX"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/address/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
