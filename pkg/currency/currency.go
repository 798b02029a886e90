package currency

import (
	"fmt"
	"math/big"
	"strings"
)

// Unit represents a currency unit
type Unit struct {
	Symbol   string
	Decimals int
}

// NativeDecimals is the precision of the EVM native coin.
const NativeDecimals = 18

// Native returns the display unit of an EVM chain's native coin.
func Native(symbol string) Unit {
	if symbol == "" {
		symbol = "ETH"
	}
	return Unit{Symbol: symbol, Decimals: NativeDecimals}
}

func (u Unit) scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(u.Decimals)), nil)
}

// Format renders an amount of base units (wei) in this unit without rounding,
// trailing zeros trimmed, e.g. 1500000000000000000 -> "1.5".
func (u Unit) Format(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	if u.Decimals <= 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	whole, frac := new(big.Int).QuoRem(abs, u.scale(), new(big.Int))

	s := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", u.Decimals-len(fs)) + fs
		s += "." + strings.TrimRight(fs, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}

// String formats amount followed by the unit symbol.
func (u Unit) String(amount *big.Int) string {
	return u.Format(amount) + " " + u.Symbol
}

// Float converts base units to a float64 in this unit, for gauges.
func (u Unit) Float(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(amount, u.scale()).Float64()
	return f
}

// Parse reads a decimal string in this unit and returns base units. More
// fractional digits than Decimals is an error.
func (u Unit) Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > u.Decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, u.Decimals)
	}
	digits := whole + frac + strings.Repeat("0", u.Decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// Percent returns floor(amount * pct / 100).
func Percent(amount *big.Int, pct int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return out.Quo(out, big.NewInt(100))
}
