package trig

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTables_MatchesMath(t *testing.T) {
	tbl := New()

	cases := []int{0, 100, 9000, 18000, 27000, 35999}
	for _, hundredths := range cases {
		rad := float64(hundredths) / 100.0 * math.Pi / 180.0
		require.InDelta(t, math.Sin(rad), tbl.Sin(hundredths), 1e-9)
		require.InDelta(t, math.Cos(rad), tbl.Cos(hundredths), 1e-9)
	}
}

func TestTables_WrapsNegativeAndOverflow(t *testing.T) {
	tbl := New()
	require.InDelta(t, tbl.Sin(0), tbl.Sin(36000), 1e-9)
	require.InDelta(t, tbl.Sin(35999), tbl.Sin(-1), 1e-9)
}
