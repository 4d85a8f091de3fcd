package money

import "errors"

// Common money package errors
var (
	// ErrInvalidCurrency is returned when a currency code is not a valid ISO 4217 code.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrMismatchedCurrencies is returned when performing operations on money with
	// different currencies
	ErrMismatchedCurrencies = errors.New("mismatched currencies")

	// ErrTooManyDecimals is returned when an amount carries more decimal places
	// than the currency's minor unit allows.
	ErrTooManyDecimals = errors.New("amount has more decimal places than the currency allows")

	// ErrAmountExceedsMaxSafeInt is returned when an amount does not fit into int64 minor units.
	ErrAmountExceedsMaxSafeInt = errors.New("amount exceeds maximum safe integer value")
)
