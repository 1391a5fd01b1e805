package postal_test

import (
	"testing"

	"github.com/postalops/postal/pkg/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTypeTable() postal.TypeTable {
	return postal.TypeTable{
		Carrier: "acme",
		Generic: map[string]postal.PackageType{
			"package":  {Carrier: "acme", Code: "BOX", Name: "Box"},
			"envelope": {Carrier: "acme", Code: "ENV", Name: "Envelope"},
		},
		Proprietary: map[string]postal.PackageType{
			"envelope": {Carrier: "acme", Code: "ACME_ENV", Name: "Acme Express Envelope"},
		},
	}
}

func TestTypeTable_Translate_Generic(t *testing.T) {
	table := testTypeTable()

	got, converted, err := table.Translate(postal.TypePackage, false)
	require.NoError(t, err)
	assert.Equal(t, "BOX", got.Code)
	assert.False(t, converted)
}

func TestTypeTable_Translate_ProprietaryUpgrade(t *testing.T) {
	table := testTypeTable()

	got, converted, err := table.Translate(postal.TypeEnvelope, true)
	require.NoError(t, err)
	assert.Equal(t, "ACME_ENV", got.Code)
	assert.True(t, converted)
}

func TestTypeTable_Translate_NoUpgradeDefined(t *testing.T) {
	table := testTypeTable()

	// No branded box exists, so the request falls back to the generic map.
	got, converted, err := table.Translate(postal.TypePackage, true)
	require.NoError(t, err)
	assert.Equal(t, "BOX", got.Code)
	assert.False(t, converted)
}

func TestTypeTable_Translate_OwnProprietaryPassthrough(t *testing.T) {
	table := testTypeTable()
	own := postal.PackageType{Carrier: "acme", Code: "ACME_TUBE", Name: "Acme Tube"}

	got, converted, err := table.Translate(own, false)
	require.NoError(t, err)
	assert.Equal(t, own, got)
	assert.False(t, converted)
}

func TestTypeTable_Translate_ForeignProprietary(t *testing.T) {
	table := testTypeTable()
	foreign := postal.PackageType{Carrier: "rival", Code: "RIVAL_BOX"}

	_, _, err := table.Translate(foreign, false)
	require.Error(t, err)
	assert.True(t, postal.IsNotSupported(err))
}

func TestTypeTable_Translate_UnmappedGeneric(t *testing.T) {
	table := testTypeTable()

	_, _, err := table.Translate(postal.TypeSoftpak, false)
	require.Error(t, err)
	assert.True(t, postal.IsNotSupported(err))
}
