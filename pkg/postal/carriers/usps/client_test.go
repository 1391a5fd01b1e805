package usps_test

import (
	"context"
	"sync"
	"testing"

	"github.com/postalops/postal/pkg/postal"
	"github.com/postalops/postal/pkg/postal/carriers/usps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockAPI *usps.MockAPIClient) *usps.Client {
	logger := otelzap.New(zap.NewNop())
	return usps.NewWithAPIClient(
		usps.Config{UserID: "TESTUSER0123"},
		mockAPI,
		logger,
		nil,
	)
}

func domesticRequest(t *testing.T, pkgOpts ...postal.PackageOption) *postal.Request {
	t.Helper()
	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	req, err := postal.NewRequest(origin, dest,
		[]*postal.Package{postal.NewPackage(12, 9, 6, 4, pkgOpts...)})
	require.NoError(t, err)
	return req
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "usps", newTestClient(usps.NewMockAPIClient()).Name())
}

func TestClient_Capabilities(t *testing.T) {
	caps := newTestClient(usps.NewMockAPIClient()).Capabilities()
	assert.True(t, caps.Domestic)
	assert.False(t, caps.International)
	assert.True(t, caps.AddressValidation)
	assert.True(t, caps.AutoResidential)
	assert.False(t, caps.AtomicMultiship)
}

func TestClient_GetServices(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	options, err := client.GetServices(context.Background(), domesticRequest(t))
	require.NoError(t, err)
	assert.Len(t, options, 4)

	byCode := map[string]postal.Option{}
	for _, opt := range options {
		byCode[opt.Service.Code] = opt
		assert.True(t, opt.Price.Valid())
		assert.Equal(t, "USD", opt.Price.Total.Currency)
	}

	priority, ok := byCode["PRIORITY"]
	require.True(t, ok)
	assert.True(t, priority.Trackable)
	assert.NotNil(t, priority.DeliveryEstimate)

	media, ok := byCode["MEDIA"]
	require.True(t, ok)
	assert.False(t, media.Trackable, "media mail carries no tracking")
	assert.Nil(t, media.DeliveryEstimate, "media mail has no commitment date")
}

func TestClient_GetServices_InternationalRejected(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"Unter den Linden 1"}, City: "Berlin",
		PostalCode: "10117", CountryCode: "DE",
	}
	req, err := postal.NewRequest(origin, dest,
		[]*postal.Package{postal.NewPackage(12, 9, 6, 4)})
	require.NoError(t, err)

	_, err = client.GetServices(context.Background(), req)
	require.Error(t, err)
	assert.True(t, postal.IsNotSupported(err))
}

func TestClient_GetServices_Territories(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"52 Calle Fortaleza"}, City: "San Juan",
		Subdivision: "PR", PostalCode: "00901", CountryCode: "PR",
		Urbanization: "Urb. Las Gladiolas",
	}
	req, err := postal.NewRequest(origin, dest,
		[]*postal.Package{postal.NewPackage(12, 9, 6, 4)})
	require.NoError(t, err)

	options, err := client.GetServices(context.Background(), req)
	require.NoError(t, err, "US territories ride the domestic network")
	assert.NotEmpty(t, options)
}

func TestClient_GetServices_Overweight(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	req := domesticRequest(t)
	req.Packages[0].Weight = 71

	_, err := client.GetServices(context.Background(), req)
	require.Error(t, err)
	assert.True(t, postal.IsExceedsLimits(err))
}

func TestClient_GetServices_OversizeGirth(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	// 60 + 2*(30+20) = 160 in, past the length-plus-girth limit.
	req, err := postal.NewRequest(origin, dest,
		[]*postal.Package{postal.NewPackage(60, 30, 20, 10)})
	require.NoError(t, err)

	_, err = client.GetServices(context.Background(), req)
	require.Error(t, err)
	assert.True(t, postal.IsExceedsLimits(err))
}

func TestClient_Quote_Caches(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	var mu sync.Mutex
	calls := 0
	inner := usps.NewMockAPIClient()
	mockAPI.OnGetRates = func(ctx context.Context, req *usps.RateRequest) (*usps.RateReply, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return inner.GetRates(ctx, req)
	}
	client := newTestClient(mockAPI)

	req := domesticRequest(t)
	ctx := context.Background()

	options, err := client.GetServices(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, options)

	_, err = client.Quote(ctx, options[0].Service, req)
	require.NoError(t, err)
	_, err = client.DeliveryEstimate(ctx, options[0].Service, req)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestClient_GetServices_WireWeightSplit(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	var captured []usps.WirePackage
	inner := usps.NewMockAPIClient()
	mockAPI.OnGetRates = func(ctx context.Context, req *usps.RateRequest) (*usps.RateReply, error) {
		captured = req.Packages
		return inner.GetRates(ctx, req)
	}
	client := newTestClient(mockAPI)

	// 4.3 lb splits into 4 lb 4.8 oz.
	req := domesticRequest(t)
	req.Packages[0].Weight = 4.3

	_, err := client.GetServices(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.Equal(t, 4, captured[0].Pounds)
	assert.InDelta(t, 4.8, captured[0].Ounces, 0.05)
	assert.True(t, captured[0].Machinable)
}

func TestClient_TranslatePackageType(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	variable, err := client.TranslatePackageType(postal.TypePackage, false)
	require.NoError(t, err)
	assert.Equal(t, "VARIABLE", variable.Code)

	flatRate, err := client.TranslatePackageType(postal.TypePackage, true)
	require.NoError(t, err)
	assert.Equal(t, "MD FLAT RATE BOX", flatRate.Code)

	_, err = client.TranslatePackageType(
		postal.PackageType{Carrier: "fedex", Code: "FEDEX_BOX", Name: "FedEx Box"}, false)
	require.Error(t, err)
	assert.True(t, postal.IsNotSupported(err))
}

func TestClient_ValidateAddress(t *testing.T) {
	client := newTestClient(usps.NewMockAPIClient())

	match, err := client.ValidateAddress(context.Background(), &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	})
	require.NoError(t, err)
	assert.True(t, match.Matched)
	assert.Equal(t, "97201-0001", match.Address.PostalCode, "ZIP+4 is joined into the postal code")
	assert.True(t, match.Address.Residential)
}

func TestClient_ValidateAddress_Undetermined(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	mockAPI.OnVerifyAddress = func(ctx context.Context, req *usps.VerifyRequest) (*usps.VerifyReply, error) {
		return &usps.VerifyReply{
			Matched:    true,
			ReturnText: "Default address: The address you entered was found but more information is needed",
			Address1:   req.Address1,
			City:       req.City,
			State:      req.State,
			ZIP5:       req.ZIP5,
		}, nil
	}
	client := newTestClient(mockAPI)

	original := &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	match, err := client.ValidateAddress(context.Background(), original)
	require.NoError(t, err)
	assert.False(t, match.Matched, "an ambiguous match must not be reported as corrected")
	assert.True(t, original.Equal(match.Address))
}

func TestClient_ValidateAddress_NotFound(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	mockAPI.OnVerifyAddress = func(ctx context.Context, req *usps.VerifyRequest) (*usps.VerifyReply, error) {
		return &usps.VerifyReply{Matched: false}, nil
	}
	client := newTestClient(mockAPI)

	original := &postal.Address{
		Lines: []string{"1 Nowhere Ln"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	match, err := client.ValidateAddress(context.Background(), original)
	require.NoError(t, err)
	assert.False(t, match.Matched)
	assert.True(t, original.Equal(match.Address))
}

func TestClient_Ship_PerPackageLabels(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	var mu sync.Mutex
	calls := 0
	inner := usps.NewMockAPIClient()
	mockAPI.OnCreateLabel = func(ctx context.Context, req *usps.LabelRequest) (*usps.LabelReply, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return inner.CreateLabel(ctx, req)
	}
	client := newTestClient(mockAPI)

	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	req, err := postal.NewRequest(origin, dest, []*postal.Package{
		postal.NewPackage(12, 9, 6, 4),
		postal.NewPackage(10, 8, 4, 2),
	})
	require.NoError(t, err)

	svc, err := client.ServiceByCode("PRIORITY")
	require.NoError(t, err)

	result, err := client.Ship(context.Background(), svc, req)
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "each package labels separately")
	require.Len(t, result.Packages, 2)
	assert.NotEqual(t, result.Packages[0].TrackingNumber, result.Packages[1].TrackingNumber)
	assert.Equal(t, result.Packages[0].TrackingNumber, result.Shipment.TrackingNumber)
	for _, pr := range result.Packages {
		assert.Equal(t, postal.LabelPDF, pr.Label.Format)
		assert.NotEmpty(t, pr.Label.Data)
	}
	assert.True(t, result.Price.Valid())
	// Two labels at the mock's 14.20 postage and 1.10 fees each.
	assert.InDelta(t, 30.60, result.Price.Total.Amount, 1e-9)
}

func TestClient_Ship_PartialCompletion(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	var mu sync.Mutex
	calls := 0
	inner := usps.NewMockAPIClient()
	mockAPI.OnCreateLabel = func(ctx context.Context, req *usps.LabelRequest) (*usps.LabelReply, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n > 1 {
			return nil, &usps.APIError{Number: "-2147219099", Description: "label printer on fire"}
		}
		return inner.CreateLabel(ctx, req)
	}
	client := newTestClient(mockAPI)

	origin := &postal.Address{
		Lines: []string{"100 Main St"}, City: "Boston",
		Subdivision: "MA", PostalCode: "02108", CountryCode: "US",
	}
	dest := &postal.Address{
		Lines: []string{"200 SW Market St"}, City: "Portland",
		Subdivision: "OR", PostalCode: "97201", CountryCode: "US",
	}
	req, err := postal.NewRequest(origin, dest, []*postal.Package{
		postal.NewPackage(12, 9, 6, 4),
		postal.NewPackage(10, 8, 4, 2),
	})
	require.NoError(t, err)

	svc, err := client.ServiceByCode("PRIORITY")
	require.NoError(t, err)

	result, err := client.Ship(context.Background(), svc, req)
	require.Error(t, err)

	// The first package was labeled remotely; its tracking number must not
	// be discarded with the failure.
	require.NotNil(t, result)
	require.Len(t, result.Packages, 1)
	assert.NotEmpty(t, result.Packages[0].TrackingNumber)
	assert.Equal(t, result.Packages[0].TrackingNumber, result.Shipment.TrackingNumber)
	assert.True(t, result.Price.Valid())
}

func TestClient_Ship_MapsAddressFault(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	mockAPI.OnCreateLabel = func(ctx context.Context, req *usps.LabelRequest) (*usps.LabelReply, error) {
		return nil, &usps.APIError{Number: "-2147219401", Description: "Address Not Found"}
	}
	client := newTestClient(mockAPI)

	svc, err := client.ServiceByCode("PRIORITY")
	require.NoError(t, err)

	_, err = client.Ship(context.Background(), svc, domesticRequest(t))
	require.Error(t, err)
	assert.True(t, postal.IsAddressError(err))
}

func TestClient_GetServices_RemoteFault(t *testing.T) {
	mockAPI := usps.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetServices(context.Background(), domesticRequest(t))
	require.Error(t, err)

	var carrierErr *postal.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, "usps", carrierErr.Carrier)
}
