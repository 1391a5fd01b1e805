package postal

import "fmt"

// DefaultCurrency is the currency of the zero sentinel used when aggregating
// monetary values from an empty set.
const DefaultCurrency = "USD"

// Money represents a currency-tagged monetary amount.
type Money struct {
	Amount   float64
	Currency string
}

// Zero returns the zero-currency sentinel. Summing an empty list of values
// yields this rather than an error.
func Zero() Money {
	return Money{Amount: 0, Currency: DefaultCurrency}
}

// IsZero reports whether the amount is zero, regardless of currency tag.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Amount, m.Currency)
}

// Add sums two monetary values. A zero-amount operand adopts the other
// operand's currency; adding non-zero amounts in different currencies fails
// loudly rather than silently picking one.
func (m Money) Add(other Money) (Money, error) {
	switch {
	case m.IsZero():
		return other, nil
	case other.IsZero():
		return m, nil
	case m.Currency != other.Currency:
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Mul scales the amount by an integer count.
func (m Money) Mul(n int) Money {
	return Money{Amount: m.Amount * float64(n), Currency: m.Currency}
}

// SumMoney aggregates a list of monetary values through the zero sentinel.
func SumMoney(values ...Money) (Money, error) {
	total := Zero()
	for _, v := range values {
		var err error
		total, err = total.Add(v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Breakdown is a decomposed price: Total must equal Base plus Fees.
type Breakdown struct {
	Total Money
	Base  Money
	Fees  Money
}

// Valid reports whether Total equals Base plus Fees within floating-point
// tolerance and all three parts share one currency.
func (b Breakdown) Valid() bool {
	sum, err := b.Base.Add(b.Fees)
	if err != nil {
		return false
	}
	if !sum.IsZero() && !b.Total.IsZero() && sum.Currency != b.Total.Currency {
		return false
	}
	diff := b.Total.Amount - sum.Amount
	return diff < 1e-6 && diff > -1e-6
}
