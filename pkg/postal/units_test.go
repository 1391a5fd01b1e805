package postal_test

import (
	"testing"

	"github.com/postalops/postal/pkg/postal"
	"github.com/stretchr/testify/assert"
)

func TestUnits_Conversions(t *testing.T) {
	assert.InDelta(t, 2.54, postal.InchesToCentimeters(1), 1e-9)
	assert.InDelta(t, 25.4, postal.InchesToCentimeters(10), 1e-9)
	assert.InDelta(t, 1, postal.CentimetersToInches(2.54), 1e-9)
	assert.InDelta(t, 0.453592, postal.PoundsToKilograms(1), 1e-9)
	assert.InDelta(t, 1, postal.KilogramsToPounds(0.453592), 1e-9)
}

func TestUnits_RoundTrip(t *testing.T) {
	for _, v := range []float64{0.1, 1, 12.75, 150, 9999.99} {
		assert.InDelta(t, v, postal.CentimetersToInches(postal.InchesToCentimeters(v)), 1e-9)
		assert.InDelta(t, v, postal.KilogramsToPounds(postal.PoundsToKilograms(v)), 1e-9)
	}
}

func TestPackage_MetricConstruction(t *testing.T) {
	// 30x20x10 cm, 2 kg.
	pkg := postal.NewPackage(30, 20, 10, 2, postal.Metric())

	assert.InDelta(t, 11.811, pkg.Length, 1e-3)
	assert.InDelta(t, 7.874, pkg.Width, 1e-3)
	assert.InDelta(t, 3.937, pkg.Height, 1e-3)
	assert.InDelta(t, 4.409, pkg.Weight, 1e-3)
}
