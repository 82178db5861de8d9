// Package rgb implements the reversible base-256 encoding of a continuous
// sample into three 8-bit channels.
//
// A sample s is quantized as
//
//	q = round((s - base) / interval / 2^roundDigits) * 2^roundDigits
//
// and q is split into big-endian base-256 digits (R, G, B). Decoding
// reverses the split and scales back:
//
//	s' = base + (R*65536 + G*256 + B) * interval
//
// The range of quantized values across one encoded buffer must fit in
// 256^3, otherwise values alias under the decomposition.
package rgb

import (
	"fmt"
	"math"
)

// MaxRange is the number of distinct values three base-256 digits hold.
const MaxRange = 256 * 256 * 256

// Params describes the encoding. Params values are never mutated once built
// and can be shared between goroutines.
type Params struct {
	Base        float64 // value mapped to the all-zero triplet
	Interval    float64 // quantization step
	RoundDigits uint32  // low-order bits of q forced to zero
}

// DefaultParams matches the command line defaults (base 0, interval 1).
func DefaultParams() Params {
	return Params{Base: 0, Interval: 1}
}

// Validate reports unusable parameters.
func (p Params) Validate() error {
	if p.Interval == 0 || math.IsNaN(p.Interval) || math.IsInf(p.Interval, 0) {
		return fmt.Errorf("interval must be a finite non-zero number, got %v", p.Interval)
	}
	if math.IsNaN(p.Base) || math.IsInf(p.Base, 0) {
		return fmt.Errorf("base must be finite, got %v", p.Base)
	}
	if p.RoundDigits > 23 {
		return fmt.Errorf("round digits %d exceeds the 24 bits of a triplet", p.RoundDigits)
	}
	return nil
}

// Triplet is one encoded sample, most significant digit first.
type Triplet struct {
	R, G, B uint8
}

// RangeError is returned when the quantized range of a buffer cannot be
// represented by three base-256 digits.
type RangeError struct {
	Range float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("data range of %v larger than 256 ** 3", e.Range)
}

// Quantize shifts, scales and rounds a sample onto the encoding grid.
func Quantize(sample float64, p Params) float64 {
	shifted := (sample - p.Base) / p.Interval
	step := math.Ldexp(1, int(p.RoundDigits))
	return math.RoundToEven(shifted/step) * step
}

// Encode encodes a single sample. Negative quantized values go through the
// fractional decomposition, which wraps them like a 24-bit two's complement.
func Encode(sample float64, p Params) Triplet {
	q := Quantize(sample, p)
	if q >= 0 {
		return SplitUnsigned(q)
	}
	return SplitFractional(q)
}

// Decode maps a triplet back onto the quantization grid.
func Decode(t Triplet, base, interval float64) float64 {
	return base + (float64(t.R)*65536+float64(t.G)*256+float64(t.B))*interval
}

// SplitUnsigned extracts the digits of a non-negative q with shifts and masks.
func SplitUnsigned(q float64) Triplet {
	u := uint64(q)
	return Triplet{
		R: uint8((u >> 16) & 0xFF),
		G: uint8((u >> 8) & 0xFF),
		B: uint8(u & 0xFF),
	}
}

// SplitFractional extracts the digits of q by repeated floor division. It
// accepts negative q without a prior sign shift.
func SplitFractional(q float64) Triplet {
	d1 := math.Floor(q / 256)
	d2 := math.Floor(d1 / 256)
	d3 := math.Floor(d2 / 256)
	return Triplet{
		R: uint8((d2/256 - d3) * 256),
		G: uint8((d1/256 - d2) * 256),
		B: uint8((q/256 - d1) * 256),
	}
}

// RangeCheck reports whether a quantized range is too large to encode.
func RangeCheck(dataRange float64) bool {
	return dataRange > MaxRange
}

// ValidateRange checks the spread of data in interval units before encoding.
// NaN samples are ignored.
func ValidateRange(data []float64, base, interval float64) error {
	lo, hi, ok := minMax(data)
	if !ok {
		return nil
	}
	r := (hi-base)/interval - (lo-base)/interval
	if RangeCheck(math.Abs(r)) {
		return &RangeError{Range: math.Abs(r)}
	}
	return nil
}

func minMax(data []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}
