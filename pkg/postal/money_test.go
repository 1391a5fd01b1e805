package postal_test

import (
	"errors"
	"testing"

	"github.com/postalops/postal/pkg/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Add(t *testing.T) {
	a := postal.Money{Amount: 10.50, Currency: "USD"}
	b := postal.Money{Amount: 4.25, Currency: "USD"}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, 14.75, sum.Amount)
	assert.Equal(t, "USD", sum.Currency)
}

func TestMoney_Add_ZeroAdoptsCurrency(t *testing.T) {
	zero := postal.Zero()
	eur := postal.Money{Amount: 9.99, Currency: "EUR"}

	sum, err := zero.Add(eur)
	require.NoError(t, err)
	assert.Equal(t, "EUR", sum.Currency)
	assert.Equal(t, 9.99, sum.Amount)

	// Other direction too.
	sum, err = eur.Add(postal.Money{Amount: 0, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", sum.Currency)
}

func TestMoney_Add_CurrencyMismatch(t *testing.T) {
	usd := postal.Money{Amount: 10, Currency: "USD"}
	eur := postal.Money{Amount: 10, Currency: "EUR"}

	_, err := usd.Add(eur)
	require.Error(t, err)
	assert.True(t, errors.Is(err, postal.ErrCurrencyMismatch))
}

func TestMoney_Mul(t *testing.T) {
	m := postal.Money{Amount: 3.50, Currency: "USD"}
	assert.Equal(t, postal.Money{Amount: 10.50, Currency: "USD"}, m.Mul(3))
	assert.Equal(t, postal.Money{Amount: 0, Currency: "USD"}, m.Mul(0))
}

func TestSumMoney(t *testing.T) {
	total, err := postal.SumMoney(
		postal.Money{Amount: 1.10, Currency: "CAD"},
		postal.Money{Amount: 2.20, Currency: "CAD"},
		postal.Zero(),
	)
	require.NoError(t, err)
	assert.InDelta(t, 3.30, total.Amount, 1e-9)
	assert.Equal(t, "CAD", total.Currency)
}

func TestSumMoney_Empty(t *testing.T) {
	total, err := postal.SumMoney()
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, postal.DefaultCurrency, total.Currency)
}

func TestBreakdown_Valid(t *testing.T) {
	b := postal.Breakdown{
		Total: postal.Money{Amount: 15.82, Currency: "USD"},
		Base:  postal.Money{Amount: 14.00, Currency: "USD"},
		Fees:  postal.Money{Amount: 1.82, Currency: "USD"},
	}
	assert.True(t, b.Valid())
}

func TestBreakdown_Valid_Mismatch(t *testing.T) {
	b := postal.Breakdown{
		Total: postal.Money{Amount: 20.00, Currency: "USD"},
		Base:  postal.Money{Amount: 14.00, Currency: "USD"},
		Fees:  postal.Money{Amount: 1.82, Currency: "USD"},
	}
	assert.False(t, b.Valid())
}

func TestBreakdown_Valid_MixedCurrency(t *testing.T) {
	b := postal.Breakdown{
		Total: postal.Money{Amount: 15.82, Currency: "USD"},
		Base:  postal.Money{Amount: 14.00, Currency: "EUR"},
		Fees:  postal.Money{Amount: 1.82, Currency: "USD"},
	}
	assert.False(t, b.Valid())
}
