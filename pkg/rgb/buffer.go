package rgb

import (
	"fmt"
	"math"
)

// EncodeBuffer encodes a band of samples into a band-sequential 3xN byte
// buffer: out[0:n] holds R, out[n:2n] G and out[2n:3n] B.
//
// The regime is chosen once for the whole buffer from the minimum quantized
// value, so every pixel of a buffer goes through the same arithmetic.
func EncodeBuffer(data []float64, p Params) ([]uint8, error) {
	n := len(data)
	out := make([]uint8, 3*n)
	if n == 0 {
		return out, nil
	}

	q := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range data {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("sample %d is NaN", i)
		}
		q[i] = Quantize(v, p)
		lo = min(lo, q[i])
		hi = max(hi, q[i])
	}
	if RangeCheck(hi - lo) {
		return nil, &RangeError{Range: hi - lo}
	}

	split := SplitUnsigned
	if lo < 0 {
		split = SplitFractional
	}
	for i, v := range q {
		t := split(v)
		out[i] = t.R
		out[n+i] = t.G
		out[2*n+i] = t.B
	}
	return out, nil
}

// DecodeBuffer reverses EncodeBuffer.
func DecodeBuffer(planes []uint8, base, interval float64) ([]float64, error) {
	if len(planes)%3 != 0 {
		return nil, fmt.Errorf("rgb buffer length %d is not a multiple of 3", len(planes))
	}
	n := len(planes) / 3
	out := make([]float64, n)
	for i := range out {
		out[i] = Decode(Triplet{R: planes[i], G: planes[n+i], B: planes[2*n+i]}, base, interval)
	}
	return out, nil
}
