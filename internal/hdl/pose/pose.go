// Package pose provides the pose-lookup seam the frame assembler queries
// once per packet, plus validation of externally supplied poses before
// they are trusted.
package pose

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sample is a single pose observation: sensor position plus heading,
// expressed as cos/sin of the heading angle so callers never need to
// carry a raw angle (and its wrap-around) through the hot path.
type Sample struct {
	X, Y, Z           float64
	CosTheta, SinTheta float64
}

// Lookup resolves a pose sample for a GPS timestamp (microseconds since
// the top of the hour, matching the packet's own timestamp field). The
// second return reports whether a pose was available; when false, the
// caller must apply no transform at all rather than a zero one.
type Lookup func(gpsTimestampMicros uint32) (Sample, bool)

// Apply translates (x, y, z) by (tx, ty, tz). The frame assembler has
// already rotated points into the world azimuth frame via the sample's
// cos/sin heading before calling Apply, matching the original
// projection order (rotate by corrected azimuth first, translate last).
func Apply(x, y, z, tx, ty, tz float64) (float64, float64, float64) {
	return x + tx, y + ty, z + tz
}

// MatrixValidationTolerance bounds how far a rotation submatrix's
// determinant may drift from 1 before the transform is rejected as
// invalid.
const MatrixValidationTolerance = 0.01

// ValidateTransform reports whether a 4x4 row-major homogeneous
// transform m (16 elements) has a valid rotation submatrix: its
// determinant must be within MatrixValidationTolerance of 1.
func ValidateTransform(m [16]float64) error {
	rot := mat.NewDense(3, 3, []float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	})
	det := mat.Det(rot)
	if diff := det - 1.0; diff > MatrixValidationTolerance || diff < -MatrixValidationTolerance {
		return fmt.Errorf("pose: rotation submatrix determinant %.4f outside tolerance of 1.0", det)
	}
	return nil
}

// Compose returns the 4x4 row-major matrix product a*b, useful for
// combining a sensor-to-vehicle extrinsic with a vehicle-to-world pose
// before calling ValidateTransform on the result.
func Compose(a, b [16]float64) [16]float64 {
	am := mat.NewDense(4, 4, a[:])
	bm := mat.NewDense(4, 4, b[:])
	var out mat.Dense
	out.Mul(am, bm)
	var result [16]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			result[r*4+c] = out.At(r, c)
		}
	}
	return result
}
