// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., cents for USD).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
//   - No value ever passes through a binary float; decimals are exact.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary amount as an integer in the
// smallest currency unit (e.g., cents for USD).
type Amount = int64

// ToCurrency converts a Code to a Currency with its minor unit decimals.
func (c Code) ToCurrency() Currency {
	if d, ok := minorUnitDecimals[c]; ok {
		return Currency{Code: c, Decimals: d}
	}
	return Currency{Code: c, Decimals: 2}
}

// IsValid checks if the currency code is valid
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// Currency represents a monetary unit with its standard decimal places
type Currency struct {
	Code     Code // 3-letter ISO 4217 code (e.g., "USD")
	Decimals int  // Number of decimal places (0-8)
}

// IsValid checks if the currency is valid.
func (c Currency) IsValid() bool {
	if c.Decimals < 0 || c.Decimals > 8 {
		return false
	}
	return c.Code.IsValid()
}

// String returns the currency code as a string
func (c Currency) String() string { return string(c.Code) }

// ParseCurrency resolves a currency code string into a Currency.
func ParseCurrency(code string) (Currency, error) {
	c := Code(code)
	if !c.IsValid() {
		return Currency{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return c.ToCurrency(), nil
}

// Money represents a monetary value in a specific currency.
type Money struct {
	amount   Amount
	currency Currency
}

// MarshalJSON encodes the amount as an exact decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"amount":   m.Decimal().StringFixed(int32(m.currency.Decimals)),
		"currency": m.currency.Code,
	})
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := New(aux.Amount, aux.Currency)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// Zero creates a Money object with zero amount in the specified currency.
func Zero(currency Currency) *Money {
	return &Money{currency: currency}
}

// New creates a Money value from an exact decimal in major units.
// The currency parameter can be a Code, Currency, or string (e.g., "USD").
// Invariants enforced:
//   - Currency must be valid.
//   - Amount must not have more decimal places than allowed by the currency.
func New(amount decimal.Decimal, currency any) (*Money, error) {
	c, err := resolveCurrency(currency)
	if err != nil {
		return nil, err
	}
	units, err := ToMinorUnits(amount, c)
	if err != nil {
		return nil, err
	}
	return &Money{amount: units, currency: c}, nil
}

// Parse creates a Money value from a decimal string such as "-50.01".
func Parse(amount string, currency any) (*Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return New(d, currency)
}

// Must is like New but panics on error. Intended for tests and constants.
func Must(amount string, currency any) *Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(fmt.Sprintf("money.Must(%v, %v): %v", amount, currency, err))
	}
	return m
}

// NewFromSmallestUnit creates a new Money object from the smallest currency unit.
func NewFromSmallestUnit(amount int64, currency any) (*Money, error) {
	c, err := resolveCurrency(currency)
	if err != nil {
		return nil, err
	}
	return &Money{amount: amount, currency: c}, nil
}

func resolveCurrency(currency any) (Currency, error) {
	var c Currency
	switch v := currency.(type) {
	case string:
		return ParseCurrency(v)
	case Code:
		c = v.ToCurrency()
	case Currency:
		c = v
	default:
		return Currency{}, fmt.Errorf(
			"invalid currency type: %T, expected string, Code, or Currency",
			currency,
		)
	}
	if !c.IsValid() {
		return Currency{}, fmt.Errorf("%w: %v", ErrInvalidCurrency, c)
	}
	return c, nil
}

// Amount returns the amount of the Money object in the smallest currency unit.
func (m *Money) Amount() Amount {
	return m.amount
}

// Decimal returns the amount in major units as an exact decimal.
func (m *Money) Decimal() decimal.Decimal {
	return FromMinorUnits(m.amount, m.currency)
}

// Currency returns the currency of the Money object.
func (m *Money) Currency() Currency {
	return m.currency
}

// CurrencyCode returns the currency code of the Money object.
func (m *Money) CurrencyCode() Code {
	return m.currency.Code
}

// Sign returns -1, 0 or 1.
func (m *Money) Sign() int {
	switch {
	case m.amount < 0:
		return -1
	case m.amount > 0:
		return 1
	default:
		return 0
	}
}

// Add returns a new Money object with the sum of amounts.
// Invariants enforced:
//   - Currencies must match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m.currency != other.currency {
		return nil, fmt.Errorf(
			"%w: %s and %s",
			ErrMismatchedCurrencies,
			m.currency.Code,
			other.currency.Code,
		)
	}
	return &Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Subtract returns a new Money object with the difference of amounts.
// The result can be negative if the subtrahend is larger than the minuend.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m.currency != other.currency {
		return nil, fmt.Errorf(
			"%w: %s and %s",
			ErrMismatchedCurrencies,
			m.currency.Code,
			other.currency.Code,
		)
	}
	return &Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// Negate negates the current Money object.
func (m *Money) Negate() *Money {
	return &Money{amount: -m.amount, currency: m.currency}
}

// Abs returns the absolute value of the Money amount.
func (m *Money) Abs() *Money {
	if m.amount < 0 {
		return m.Negate()
	}
	return m
}

// Equals checks if the current Money object is equal to another Money object.
func (m *Money) Equals(other *Money) bool {
	if m == nil || other == nil {
		return false
	}
	return m.currency == other.currency && m.amount == other.amount
}

// IsPositive returns true if the Money is not nil and its amount is greater than zero.
func (m *Money) IsPositive() bool {
	return m != nil && m.amount > 0
}

// IsNegative returns true if the Money is not nil and its amount is less than zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.amount < 0
}

// IsZero returns true if the Money is nil or its amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.amount == 0
}

// Convert converts the value into another currency at the given rate.
// The magnitude is rounded half-up to the target minor unit and the sign
// is re-applied afterwards, so positive and negative amounts round symmetrically.
func (m *Money) Convert(rate decimal.Decimal, to Currency) (*Money, error) {
	if !rate.IsPositive() {
		return nil, fmt.Errorf("conversion rate must be positive, got %s", rate)
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurrency, to)
	}
	magnitude := m.Abs().Decimal().Mul(rate)
	converted := RoundHalfUp(magnitude, to.Decimals)
	if m.amount < 0 {
		converted = converted.Neg()
	}
	return New(converted, to)
}

// String returns a string representation of the Money object.
func (m *Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(int32(m.currency.Decimals)), m.currency.Code)
}

// ToMinorUnits converts an exact decimal in major units into minor units.
// It never rounds: an amount finer than the currency's minor unit is rejected.
func ToMinorUnits(amount decimal.Decimal, currency Currency) (int64, error) {
	scaled := amount.Shift(int32(currency.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s for %s", ErrTooManyDecimals, amount, currency.Code)
	}
	bi := scaled.BigInt()
	if !bi.IsInt64() || bi.Int64() == math.MinInt64 {
		return 0, fmt.Errorf("%w: %s", ErrAmountExceedsMaxSafeInt, amount)
	}
	return bi.Int64(), nil
}

// FromMinorUnits converts minor units back into an exact decimal in major units.
func FromMinorUnits(units int64, currency Currency) decimal.Decimal {
	return decimal.New(units, -int32(currency.Decimals))
}

// RoundHalfUp rounds the magnitude of d half-up (away from zero) to the given places.
func RoundHalfUp(d decimal.Decimal, places int) decimal.Decimal {
	return d.Round(int32(places))
}
