// Package trig provides the precomputed sin/cos tables used to convert
// packed azimuth angles (hundredths of a degree) into Cartesian
// projections without paying for a math.Sin/math.Cos call on every laser
// return.
package trig

import "math"

// TableSize is the number of entries in the lookup tables: one entry per
// hundredth of a degree over a full rotation, inclusive of both 0 and
// 360.00 degrees.
const TableSize = 36001

// Tables holds precomputed sine and cosine values indexed by angle in
// hundredths of a degree (0..36000).
type Tables struct {
	sin [TableSize]float64
	cos [TableSize]float64
}

// New builds a fresh set of lookup tables. Construction is cheap enough
// (36,001 sin/cos pairs) to run once at process startup and share the
// result across every FrameAssembler.
func New() *Tables {
	t := &Tables{}
	for i := 0; i < TableSize; i++ {
		rad := float64(i) / 100.0 * math.Pi / 180.0
		t.sin[i] = math.Sin(rad)
		t.cos[i] = math.Cos(rad)
	}
	return t
}

// Sin returns the sine of angle (hundredths of a degree), wrapping into
// [0, 36000) first.
func (t *Tables) Sin(hundredthsDeg int) float64 {
	return t.sin[normalize(hundredthsDeg)]
}

// Cos returns the cosine of angle (hundredths of a degree), wrapping into
// [0, 36000) first.
func (t *Tables) Cos(hundredthsDeg int) float64 {
	return t.cos[normalize(hundredthsDeg)]
}

func normalize(v int) int {
	v %= 36000
	if v < 0 {
		v += 36000
	}
	return v
}
