package postal_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/postalops/postal/pkg/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrierError_Error(t *testing.T) {
	err := postal.NewCarrierError("fedex", "SERVICE.UNAVAILABLE", "route not served")
	assert.Equal(t, "fedex error (SERVICE.UNAVAILABLE): route not served", err.Error())
}

func TestCarrierError_WithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := postal.NewCarrierError("ups", "TRANSPORT", "request failed").WithCause(cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestCarrierError_IsByCode(t *testing.T) {
	a := postal.NewCarrierError("fedex", "RATE.LIMIT", "slow down")
	b := postal.NewCarrierError("ups", "RATE.LIMIT", "different message")
	c := postal.NewCarrierError("fedex", "OTHER", "slow down")

	assert.True(t, errors.Is(a, b), "same code matches regardless of carrier")
	assert.False(t, errors.Is(a, c))
}

func TestCarrierError_WrappedStillMatches(t *testing.T) {
	inner := postal.NewCarrierError("dhl", "4120", "product unavailable")
	wrapped := fmt.Errorf("rating leg: %w", inner)

	var target *postal.CarrierError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "4120", target.Code)
}

func TestAddressError_FieldsSorted(t *testing.T) {
	err := &postal.AddressError{
		Carrier: "usps",
		Message: "invalid address",
		Fields: map[string]string{
			"zip":  "not found",
			"city": "required",
		},
	}
	assert.Equal(t, "usps: invalid address (city: required; zip: not found)", err.Error())
}

func TestErrorPredicates(t *testing.T) {
	notSupported := &postal.NotSupportedError{Carrier: "dhl", What: "domestic routes"}
	exceeds := &postal.ExceedsLimitsError{Carrier: "fedex", Limit: "weight", Message: "too heavy"}
	addr := &postal.AddressError{Message: "invalid address"}

	assert.True(t, postal.IsNotSupported(notSupported))
	assert.False(t, postal.IsNotSupported(exceeds))

	assert.True(t, postal.IsExceedsLimits(exceeds))
	assert.False(t, postal.IsExceedsLimits(addr))

	assert.True(t, postal.IsAddressError(addr))
	assert.False(t, postal.IsAddressError(notSupported))

	// Predicates see through wrapping.
	assert.True(t, postal.IsNotSupported(fmt.Errorf("carrier: %w", notSupported)))
}

func TestConfigurationError_Error(t *testing.T) {
	err := &postal.ConfigurationError{Message: "duplicate carrier fedex"}
	assert.Equal(t, "configuration error: duplicate carrier fedex", err.Error())
}
