// Package logmath implements integer log-domain arithmetic in an arbitrary
// base, plus the natural-log float helpers used by the acoustic scorer.
//
// Values are stored as int32 multiples of log_B, optionally right-shifted by
// Shift bits. Addition in the probability domain is done with a precomputed
// table of log_B(1 + B^-d) indexed by the difference of the two operands.
package logmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBase is returned when the base is not a finite number above 1.
var ErrInvalidBase = errors.New("logmath: base must be finite and greater than 1")

// DefaultBase is the base used by the decoder unless configured otherwise.
const DefaultBase = 1.0001

// LogMath converts between probabilities and integer log values.
// A LogMath is immutable after New and safe for concurrent use.
type LogMath struct {
	base      float64
	logBase   float64 // ln(base)
	invLnBase float64 // 1/ln(base)
	log10Base float64 // log10(base)
	shift     int
	zero      int32
	table     []int32
}

// New creates a LogMath for the given base. When useTable is false, Add
// falls back to exact computation.
func New(base float64, shift int, useTable bool) (*LogMath, error) {
	if math.IsNaN(base) || math.IsInf(base, 0) || base <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase, base)
	}
	if shift < 0 || shift > 16 {
		return nil, fmt.Errorf("logmath: shift %d out of range [0,16]", shift)
	}
	lm := &LogMath{
		base:      base,
		logBase:   math.Log(base),
		log10Base: math.Log10(base),
		shift:     shift,
		zero:      math.MinInt32 >> (shift + 2),
	}
	lm.invLnBase = 1.0 / lm.logBase
	if useTable {
		lm.buildTable()
	}
	return lm, nil
}

// Default returns a LogMath with DefaultBase, no shift and an add table.
func Default() *LogMath {
	lm, _ := New(DefaultBase, 0, true)
	return lm
}

func (lm *LogMath) buildTable() {
	// Entries shrink monotonically; stop at the first one that rounds to zero.
	for d := 0; ; d++ {
		byx := math.Exp(-float64(int64(d)<<lm.shift) * lm.logBase)
		k := int32(math.Log1p(byx)*lm.invLnBase+0.5) >> lm.shift
		if k <= 0 {
			break
		}
		lm.table = append(lm.table, k)
	}
}

// Base returns the logarithm base.
func (lm *LogMath) Base() float64 { return lm.base }

// Shift returns the number of bits log values are shifted by.
func (lm *LogMath) Shift() int { return lm.shift }

// Zero returns the value used for log(0). It is far enough from
// math.MinInt32 that sums of a few zeros do not overflow.
func (lm *LogMath) Zero() int32 { return lm.zero }

// TableSize reports the number of entries in the add table, 0 if absent.
func (lm *LogMath) TableSize() int { return len(lm.table) }

// Add returns log_B(B^p + B^q).
func (lm *LogMath) Add(p, q int32) int32 {
	if lm.table == nil {
		return lm.AddExact(p, q)
	}
	if p <= lm.zero {
		return q
	}
	if q <= lm.zero {
		return p
	}
	if p < q {
		p, q = q, p
	}
	d := int(p) - int(q)
	if d >= len(lm.table) {
		return p
	}
	return p + lm.table[d]
}

// AddExact computes log_B(B^p + B^q) without the table.
func (lm *LogMath) AddExact(p, q int32) int32 {
	if p <= lm.zero {
		return q
	}
	if q <= lm.zero {
		return p
	}
	if p < q {
		p, q = q, p
	}
	d := float64((int64(q)-int64(p))<<lm.shift) * lm.logBase
	r := int32(math.Log1p(math.Exp(d))*lm.invLnBase+0.5) >> lm.shift
	return p + r
}

// Log converts a probability to a log value. Non-positive input maps to Zero.
func (lm *LogMath) Log(p float64) int32 {
	if p <= 0 {
		return lm.zero
	}
	return lm.LnToLog(math.Log(p))
}

// Exp converts a log value back to a probability.
func (lm *LogMath) Exp(l int32) float64 {
	return math.Exp(lm.LogToLn(l))
}

// LnToLog converts a natural log to a log value.
func (lm *LogMath) LnToLog(ln float64) int32 {
	v := ln * lm.invLnBase
	if math.IsNaN(v) || v <= float64(lm.zero)*float64(int64(1)<<lm.shift) {
		return lm.zero
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32 >> lm.shift
	}
	return int32(math.Floor(v+0.5)) >> lm.shift
}

// LogToLn converts a log value to a natural log.
func (lm *LogMath) LogToLn(l int32) float64 {
	return float64(int64(l)<<lm.shift) * lm.logBase
}

// Log10ToLog converts a base-10 log to a log value.
func (lm *LogMath) Log10ToLog(l10 float64) int32 {
	return lm.LnToLog(l10 * math.Ln10)
}

// LogToLog10 converts a log value to a base-10 log.
func (lm *LogMath) LogToLog10(l int32) float64 {
	return float64(int64(l)<<lm.shift) * lm.log10Base
}
