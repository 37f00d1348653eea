package frame

import (
	"fmt"
	"math"
	"math/big"
)

type Rational struct {
	Num int64
	Den int64
}

var (
	// Millisecond is the time base of wall-clock ticks.
	Millisecond = Rational{Num: 1, Den: 1000}
)

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return math.NaN()
	}
	return float64(r.Num) / float64(r.Den)
}

// Rounding selects how Rescale resolves results which fall between two
// units of the target time base.
type Rounding int

const (
	// RoundNearInf rounds to the nearest unit, halfway cases away from zero.
	RoundNearInf = Rounding(iota)

	// RoundDown rounds toward negative infinity.
	RoundDown
)

// Rescale converts value expressed in units of "from" into units of "to":
//
//	value * from.Num * to.Den / (from.Den * to.Num)
//
// rounding to the nearest integer, halfway cases away from zero.
func Rescale(value int64, from, to Rational) int64 {
	return RescaleRnd(value, from, to, RoundNearInf)
}

// RescaleRnd is Rescale with an explicit rounding; the result saturates
// at the int64 bounds.
func RescaleRnd(value int64, from, to Rational, rnd Rounding) int64 {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Errorf("invalid time base in rescale: %v -> %v", from, to))
	}

	num := big.NewInt(value)
	num.Mul(num, big.NewInt(from.Num))
	num.Mul(num, big.NewInt(to.Den))

	den := big.NewInt(from.Den)
	den.Mul(den, big.NewInt(to.Num))

	switch rnd {
	case RoundDown:
		// den > 0, so the euclidean quotient is the floor
		num.Div(num, den)
	default:
		half := new(big.Int).Rsh(den, 1)
		if num.Sign() < 0 {
			num.Sub(num, half)
		} else {
			num.Add(num, half)
		}
		num.Quo(num, den)
	}

	if !num.IsInt64() {
		if num.Sign() < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return num.Int64()
}
