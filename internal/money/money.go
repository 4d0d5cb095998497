// Package money implements the decimal amount type used for compensation and withholding.
//
// Amounts are exact decimals; conversion to the provider's two-digit wire
// string happens once, in internal/convert, via WireString.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// ErrNotFinite is returned for NaN and infinite inputs.
var ErrNotFinite = errors.New("amount is not a finite number")

// arith is the shared arithmetic context. Round-half-up matches how amounts
// are printed on paper forms.
var arith = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Amount is an immutable decimal value. The zero value is 0.
type Amount struct {
	d *apd.Decimal
}

// Parse reads a plain decimal string such as "5000", "5000.5" or "-100".
func Parse(s string) (Amount, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Amount{}, ErrNotFinite
	}
	return Amount{d: d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat converts a float carried by a loosely typed importer.
func FromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, ErrNotFinite
	}
	return Parse(strconv.FormatFloat(f, 'f', -1, 64))
}

func (a Amount) dec() *apd.Decimal {
	if a.d == nil {
		return apd.New(0, 0)
	}
	return a.d
}

// IsSet reports whether the amount was explicitly provided.
func (a Amount) IsSet() bool { return a.d != nil }

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.dec().Sign() }

// IsPositive reports a > 0.
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int { return a.dec().Cmp(b.dec()) }

// Ratio returns a/b as a float for advisory display; 0 when b is zero.
func (a Amount) Ratio(b Amount) float64 {
	if b.Sign() == 0 {
		return 0
	}
	var q apd.Decimal
	if _, err := arith.Quo(&q, a.dec(), b.dec()); err != nil {
		return 0
	}
	f, err := q.Float64()
	if err != nil {
		return 0
	}
	return f
}

// Round2 returns the amount rounded half-up to two fractional digits.
func (a Amount) Round2() Amount {
	var q apd.Decimal
	if _, err := arith.Quantize(&q, a.dec(), -2); err != nil {
		// Quantize only fails on precision overflow, which 34 digits rules out for money.
		return a
	}
	return Amount{d: &q}
}

// WireString renders the amount with exactly two fractional digits and no grouping.
func (a Amount) WireString() string {
	return a.Round2().dec().Text('f')
}

// String renders the exact decimal value.
func (a Amount) String() string { return a.dec().Text('f') }

// MarshalJSON emits the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	return a.UnmarshalText(b)
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler (used by YAML fixtures).
func (a *Amount) UnmarshalText(b []byte) error {
	v, err := Parse(string(bytes.TrimSpace(b)))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
