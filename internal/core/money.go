// Package core holds the canonical finance entities and the pure helpers
// that derive presentation aggregates from them.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultCurrencySymbol prefixes formatted amounts unless configured otherwise.
const DefaultCurrencySymbol = "₹"

// Money is an amount in minor units (cents).
type Money struct {
	Cents int64
}

const (
	// maxUnits is the largest whole amount whose cents fit in an int64.
	maxUnits = math.MaxInt64 / 100
	maxCents = maxUnits * 100
)

// ParseAmount reads a positive amount typed into a form. Either "." or ","
// separates the decimals, a third decimal rounds half-up and anything past
// it is ignored: "12,345" is 12.35. Signs, zero and non-digits are rejected.
func ParseAmount(s string) (Money, error) {
	whole, frac, _ := strings.Cut(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), ".")
	if whole == "" && frac == "" || !digitsOnly(whole) || !digitsOnly(frac) {
		return Money{}, ErrInvalidAmount
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > maxUnits {
			return Money{}, ErrInvalidAmount
		}
		units = n
	}

	frac += "00"
	cents := units*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

func digitsOnly(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// MoneyFromFloat rounds f to the nearest cent. NaN is zero; values beyond
// the int64 range, infinities included, are clamped to ±maxCents.
func MoneyFromFloat(f float64) Money {
	if math.IsNaN(f) {
		return Money{}
	}
	c := math.Round(f * 100)
	switch {
	case c >= math.MaxInt64: // float64(MaxInt64) is 2^63
		return Money{Cents: maxCents}
	case c <= -math.MaxInt64:
		return Money{Cents: -maxCents}
	}
	return Money{Cents: int64(c)}
}

// ParseMoney reads a remote numeric value: a JSON number, a float or int, or
// a numeric string. Anything else reports false.
func ParseMoney(v any) (Money, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return Money{}, false
		}
		return MoneyFromFloat(f), true
	case float64:
		return MoneyFromFloat(n), true
	case float32:
		return MoneyFromFloat(float64(n)), true
	case int:
		return Money{Cents: int64(n) * 100}, true
	case int64:
		return Money{Cents: n * 100}, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Money{}, false
		}
		return MoneyFromFloat(f), true
	}
	return Money{}, false
}

// Float returns the amount in major units, as sent to the API.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal renders the amount with exactly two decimals, e.g. "-12.05".
func (m Money) Decimal() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + twoDigits(c%100)
}

// Format renders the amount prefixed by symbol, e.g. "₹12.50" or "-₹3.00".
func (m Money) Format(symbol string) string {
	if m.Cents < 0 {
		return "-" + symbol + Money{Cents: -m.Cents}.Decimal()
	}
	return symbol + m.Decimal()
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
