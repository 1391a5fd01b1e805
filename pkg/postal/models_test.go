package postal_test

import (
	"testing"
	"time"

	"github.com/postalops/postal/pkg/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usAddress() *postal.Address {
	return &postal.Address{
		Name:        "Acme Corp",
		Lines:       []string{"100 Main St"},
		City:        "Portland",
		Subdivision: "OR",
		PostalCode:  "97201",
		CountryCode: "US",
		Phone:       "503-555-0100",
	}
}

func dePAddress() *postal.Address {
	return &postal.Address{
		Name:        "Beispiel GmbH",
		Lines:       []string{"Hauptstrasse 5"},
		City:        "Berlin",
		PostalCode:  "10115",
		CountryCode: "DE",
	}
}

func TestAddress_Validate(t *testing.T) {
	require.NoError(t, usAddress().Validate())
}

func TestAddress_Validate_MissingFields(t *testing.T) {
	addr := &postal.Address{CountryCode: "US"}
	err := addr.Validate()
	require.Error(t, err)
	assert.True(t, postal.IsAddressError(err))
}

func TestAddress_Validate_BadCountry(t *testing.T) {
	// "XX" and "none" resolve to non-country sentinels in the ISO tables;
	// all of these must fail, not just codes the tables have never seen.
	for _, code := range []string{"XX", "ZZ", "USA", "none"} {
		addr := usAddress()
		addr.CountryCode = code
		err := addr.Validate()
		require.Error(t, err, "country code %q", code)
		assert.True(t, postal.IsAddressError(err))
	}

	addr := usAddress()
	addr.CountryCode = "XX"
	assert.Contains(t, addr.Validate().Error(), "countrycode")
}

func TestAddress_Validate_UrbanizationOutsidePR(t *testing.T) {
	addr := usAddress()
	addr.Urbanization = "URB LAS GLADIOLAS"
	err := addr.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urbanization")

	pr := usAddress()
	pr.CountryCode = "PR"
	pr.Urbanization = "URB LAS GLADIOLAS"
	assert.NoError(t, pr.Validate())
}

func TestAddress_EqualAndClone(t *testing.T) {
	a := usAddress()
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Lines[0] = "200 Oak Ave"
	assert.False(t, a.Equal(b))
	assert.Equal(t, "100 Main St", a.Lines[0], "clone must not share the lines slice")
}

func TestPackage_Defaults(t *testing.T) {
	pkg := postal.NewPackage(10, 8, 4, 2.5)
	assert.Equal(t, postal.TypePackage, pkg.Type)
	assert.False(t, pkg.DocumentsOnly)
	require.NoError(t, pkg.Validate())
}

func TestPackage_Validate_NonPositive(t *testing.T) {
	assert.Error(t, postal.NewPackage(0, 8, 4, 2.5).Validate())
	assert.Error(t, postal.NewPackage(10, 8, 4, 0).Validate())
	assert.Error(t, postal.NewPackage(10, -1, 4, 2.5).Validate())
}

func TestPackage_DeclaredAndInsuredValue(t *testing.T) {
	pkg := postal.NewPackage(10, 8, 4, 2.5, postal.WithDeclarations(
		postal.Declaration{Description: "widgets", Value: postal.Money{Amount: 25, Currency: "USD"}, Units: 4, Insure: true},
		postal.Declaration{Description: "manual", Value: postal.Money{Amount: 5, Currency: "USD"}, Units: 1},
	))

	declared, err := pkg.DeclaredValue()
	require.NoError(t, err)
	assert.Equal(t, 105.0, declared.Amount)

	insured, err := pkg.InsuredValue()
	require.NoError(t, err)
	assert.Equal(t, 100.0, insured.Amount)
	assert.LessOrEqual(t, insured.Amount, declared.Amount)
}

func TestPackage_DeclaredValue_CurrencyMismatch(t *testing.T) {
	pkg := postal.NewPackage(10, 8, 4, 2.5, postal.WithDeclarations(
		postal.Declaration{Description: "a", Value: postal.Money{Amount: 10, Currency: "USD"}, Units: 1},
		postal.Declaration{Description: "b", Value: postal.Money{Amount: 10, Currency: "EUR"}, Units: 1},
	))
	_, err := pkg.DeclaredValue()
	assert.Error(t, err)
}

func TestPackage_Fingerprint_DimensionOrder(t *testing.T) {
	a := postal.NewPackage(10, 8, 4, 2.5)
	b := postal.NewPackage(4, 10, 8, 2.5)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := postal.NewPackage(10, 8, 5, 2.5)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestPackage_Fingerprint_DistinguishesType(t *testing.T) {
	a := postal.NewPackage(10, 8, 4, 2.5)
	b := postal.NewPackage(10, 8, 4, 2.5, postal.WithType(postal.TypeEnvelope))
	c := postal.NewPackage(10, 8, 4, 2.5, postal.AsDocuments())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestNewRequest_RequiresPackages(t *testing.T) {
	_, err := postal.NewRequest(usAddress(), dePAddress(), nil)
	assert.Error(t, err)
}

func TestNewRequest_PastShipTimeNormalized(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	req, err := postal.NewRequest(usAddress(), dePAddress(),
		[]*postal.Package{postal.NewPackage(10, 8, 4, 2)},
		postal.WithShipTime(past),
	)
	require.NoError(t, err)
	assert.Nil(t, req.ShipTime, "a past ship time means as-soon-as-possible")
}

func TestNewRequest_FutureShipTimeKept(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	req, err := postal.NewRequest(usAddress(), dePAddress(),
		[]*postal.Package{postal.NewPackage(10, 8, 4, 2)},
		postal.WithShipTime(future),
	)
	require.NoError(t, err)
	require.NotNil(t, req.ShipTime)
	assert.True(t, req.ShipTime.Equal(future))
}

func TestRequest_Totals(t *testing.T) {
	req, err := postal.NewRequest(usAddress(), dePAddress(), []*postal.Package{
		postal.NewPackage(10, 8, 4, 2.5, postal.WithDeclarations(
			postal.Declaration{Description: "widgets", Value: postal.Money{Amount: 20, Currency: "USD"}, Units: 2, Insure: true},
		)),
		postal.NewPackage(6, 6, 6, 1.5, postal.WithDeclarations(
			postal.Declaration{Description: "gadgets", Value: postal.Money{Amount: 15, Currency: "USD"}, Units: 1},
		)),
	})
	require.NoError(t, err)

	assert.InDelta(t, 4.0, req.TotalWeight(), 1e-9)

	declared, err := req.TotalDeclaredValue()
	require.NoError(t, err)
	assert.Equal(t, 55.0, declared.Amount)

	insured, err := req.TotalInsuredValue()
	require.NoError(t, err)
	assert.Equal(t, 40.0, insured.Amount)
}

func TestRequest_DocumentsOnly(t *testing.T) {
	docs := postal.NewPackage(9, 12, 0.5, 0.4, postal.AsDocuments())
	parcel := postal.NewPackage(10, 8, 4, 2)

	req, err := postal.NewRequest(usAddress(), dePAddress(), []*postal.Package{docs, parcel})
	require.NoError(t, err)
	assert.False(t, req.DocumentsOnly())

	req, err = postal.NewRequest(usAddress(), dePAddress(), []*postal.Package{docs})
	require.NoError(t, err)
	assert.True(t, req.DocumentsOnly())
}

func TestRequest_International(t *testing.T) {
	pkgs := []*postal.Package{postal.NewPackage(10, 8, 4, 2)}

	req, err := postal.NewRequest(usAddress(), dePAddress(), pkgs)
	require.NoError(t, err)
	intl, err := req.International(nil)
	require.NoError(t, err)
	assert.True(t, intl)

	domestic := usAddress()
	domestic.City = "Seattle"
	req, err = postal.NewRequest(usAddress(), domestic, pkgs)
	require.NoError(t, err)
	intl, err = req.International(nil)
	require.NoError(t, err)
	assert.False(t, intl)
}

func TestRequest_International_OriginFallback(t *testing.T) {
	pkgs := []*postal.Package{postal.NewPackage(10, 8, 4, 2)}
	req, err := postal.NewRequest(nil, dePAddress(), pkgs)
	require.NoError(t, err)

	_, err = req.International(nil)
	assert.Error(t, err, "no origin anywhere is an error")

	intl, err := req.International(usAddress())
	require.NoError(t, err)
	assert.True(t, intl)
}

func TestRequest_Fingerprint_PackageOrder(t *testing.T) {
	a := postal.NewPackage(10, 8, 4, 2.5)
	b := postal.NewPackage(6, 6, 6, 1.5)

	r1, err := postal.NewRequest(usAddress(), dePAddress(), []*postal.Package{a, b})
	require.NoError(t, err)
	r2, err := postal.NewRequest(usAddress(), dePAddress(), []*postal.Package{b, a})
	require.NoError(t, err)

	assert.Equal(t, r1.Fingerprint(), r2.Fingerprint())
}

func TestRequest_Fingerprint_DistinguishesDestination(t *testing.T) {
	pkgs := []*postal.Package{postal.NewPackage(10, 8, 4, 2.5)}

	r1, err := postal.NewRequest(usAddress(), dePAddress(), pkgs)
	require.NoError(t, err)

	other := dePAddress()
	other.City = "Hamburg"
	r2, err := postal.NewRequest(usAddress(), other, pkgs)
	require.NoError(t, err)

	assert.NotEqual(t, r1.Fingerprint(), r2.Fingerprint())
}

func TestRequest_Clone_Isolation(t *testing.T) {
	req, err := postal.NewRequest(usAddress(), dePAddress(),
		[]*postal.Package{postal.NewPackage(10, 8, 4, 2)},
		postal.WithCarrierOptions("ups", "opts"),
	)
	require.NoError(t, err)

	cp := req.Clone()
	cp.Packages = append(cp.Packages, postal.NewPackage(1, 1, 1, 1))
	cp.CarrierOptions["dhl"] = "other"

	assert.Len(t, req.Packages, 1)
	assert.NotContains(t, req.CarrierOptions, "dhl")
}
