// Package types provides common types used across Credits.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Money represents a monetary value in micro-units: millionths of the
// display currency. All arithmetic is integer-only — no floating point
// except at display boundaries, where values are rounded.
//
// Examples:
//   - USD(1_000_000) = $1.00
//   - USD(4_900_000) = $4.90
//   - EUR(250_000)   = €0.25
type Money struct {
	Amount   int64  `json:"amount"`   // Micro-units (millionths of the major unit)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// MicrosPerUnit is the number of micro-units in one major currency unit.
const MicrosPerUnit int64 = 1_000_000

// Common currency constructors

// USD creates a Money value in US Dollars (micro-dollars).
func USD(micros int64) Money { return Money{Amount: micros, Currency: "usd"} }

// EUR creates a Money value in Euros (micro-euros).
func EUR(micros int64) Money { return Money{Amount: micros, Currency: "eur"} }

// GBP creates a Money value in British Pounds (micro-pounds).
func GBP(micros int64) Money { return Money{Amount: micros, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (micro-yen).
func JPY(micros int64) Money { return Money{Amount: micros, Currency: "jpy"} }

// Micros creates a Money value from a raw micro-unit amount and currency.
func Micros(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// FromMajor converts a display-boundary float (major units) into Money,
// rounding half away from zero to the nearest micro-unit.
func FromMajor(value float64, currency string) Money {
	return Money{
		Amount:   int64(math.Round(value * float64(MicrosPerUnit))),
		Currency: strings.ToLower(currency),
	}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Divide divides the Money by a divisor. Uses integer division.
func (m Money) Divide(divisor int64) Money {
	if divisor == 0 {
		panic("money: division by zero")
	}
	return Money{Amount: m.Amount / divisor, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Money{Amount: -m.Amount, Currency: m.Currency}
	}
	return m
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Min returns the smaller of two Money values. Panics if currencies don't match.
func (m Money) Min(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount < other.Amount {
		return m
	}
	return other
}

// Max returns the larger of two Money values. Panics if currencies don't match.
func (m Money) Max(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount > other.Amount {
		return m
	}
	return other
}

// Formatting methods

// Major returns the value in major units as a float. Display use only;
// never feed the result back into arithmetic.
func (m Money) Major() float64 {
	return float64(m.Amount) / float64(MicrosPerUnit)
}

// FormatMajor returns the major unit string without currency symbol,
// rounded half away from zero to the currency's display precision.
// For 2-decimal currencies: "49.00" for USD(49_000_000).
// For 0-decimal currencies (JPY): "100" for JPY(100_000_000).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)

	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	// Scale micros down to the display precision, rounding half up.
	displayDivisor := MicrosPerUnit
	for i := 0; i < decimals; i++ {
		displayDivisor /= 10
	}
	displayUnits := (absAmount + displayDivisor/2) / displayDivisor

	var result string
	if decimals == 0 {
		result = fmt.Sprintf("%d", displayUnits)
	} else {
		minorDivisor := int64(1)
		for i := 0; i < decimals; i++ {
			minorDivisor *= 10
		}
		format := fmt.Sprintf("%%d.%%0%dd", decimals)
		result = fmt.Sprintf(format, displayUnits/minorDivisor, displayUnits%minorDivisor)
	}

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "$49.00", "€199.00", "£99.00", "¥100"
func (m Money) String() string {
	symbol := currencySymbol(m.Currency)
	return symbol + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"cad": "C$",
		"aud": "A$",
		"chf": "CHF ",
		"cny": "¥",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	// Currencies displayed without decimal places
	zeroDecimal := map[string]bool{
		"jpy": true, // Japanese Yen
		"krw": true, // Korean Won
		"vnd": true, // Vietnamese Dong
		"clp": true, // Chilean Peso
		"idr": true, // Indonesian Rupiah
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	// Most currencies have 2 decimal places
	return 2
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
