package money

// Code represents a currency code (e.g., "USD", "EUR").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	GBP Code = "GBP" // British Pound
	CHF Code = "CHF" // Swiss Franc
	SEK Code = "SEK" // Swedish Krona
	JPY Code = "JPY" // Japanese Yen
	KWD Code = "KWD" // Kuwaiti Dinar
)

// minorUnitDecimals lists currencies whose minor unit is not the usual cent.
var minorUnitDecimals = map[Code]int{
	JPY:   0,
	KWD:   3,
	"KRW": 0,
	"ISK": 0,
	"BHD": 3,
	"OMR": 3,
	"TND": 3,
}
