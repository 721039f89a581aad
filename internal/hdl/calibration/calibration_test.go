package calibration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHDL32_HasVerticalScheduleAndDerivedFields(t *testing.T) {
	tbl := DefaultHDL32()

	require.Equal(t, hdl32VerticalAngles[0], tbl.Get(0).VerticalCorrection)
	require.Equal(t, hdl32VerticalAngles[31], tbl.Get(31).VerticalCorrection)

	c := tbl.Get(15) // vertical angle 0.00
	require.InDelta(t, 0.0, c.SinVertCorrection, 1e-9)
	require.InDelta(t, 1.0, c.CosVertCorrection, 1e-9)
	require.False(t, c.HasAzimuthCorrection)
}

func TestSet_RecomputesDerivedFieldsOnEveryUpdate(t *testing.T) {
	var tbl Table
	tbl.Set(3, LaserCorrection{VerticalCorrection: 90.0, VerticalOffset: 2.0})

	c := tbl.Get(3)
	require.InDelta(t, 1.0, c.SinVertCorrection, 1e-9)
	require.InDelta(t, 0.0, c.CosVertCorrection, 1e-9)
	require.InDelta(t, 2.0, c.SinVertOffsetCorr, 1e-9)
	require.InDelta(t, 0.0, c.CosVertOffsetCorr, 1e-9)

	// Overwriting must recompute, not accumulate.
	tbl.Set(3, LaserCorrection{VerticalCorrection: 0.0, VerticalOffset: 2.0, RotationalCorrection: 1.5})
	c = tbl.Get(3)
	require.InDelta(t, 0.0, c.SinVertCorrection, 1e-9)
	require.InDelta(t, 1.0, c.CosVertCorrection, 1e-9)
	require.True(t, c.HasAzimuthCorrection)
}

const sampleCalibrationXML = `<?xml version="1.0"?>
<boost_serialization>
  <DB>
    <points_>
      <item>
        <px>
          <id_>0</id_>
          <rotCorrection_>1.5</rotCorrection_>
          <vertCorrection_>-10.0</vertCorrection_>
          <distCorrection_>1.5</distCorrection_>
          <vertOffsetCorrection_>2.5</vertOffsetCorrection_>
          <horizOffsetCorrection_>4.0</horizOffsetCorrection_>
        </px>
      </item>
      <item>
        <px>
          <id_>1</id_>
          <rotCorrection_>0</rotCorrection_>
          <vertCorrection_>0</vertCorrection_>
          <distCorrection_>0</distCorrection_>
          <vertOffsetCorrection_>0</vertOffsetCorrection_>
          <horizOffsetCorrection_>0</horizOffsetCorrection_>
        </px>
      </item>
    </points_>
  </DB>
</boost_serialization>`

func TestLoadXML_ConvertsCentimetersToMeters(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cal-*.xml")
	require.NoError(t, err)
	_, err = f.WriteString(sampleCalibrationXML)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := LoadXML(f.Name())
	require.NoError(t, err)

	c := tbl.Get(0)
	require.InDelta(t, 1.5, c.RotationalCorrection, 1e-9)
	require.InDelta(t, 0.015, c.DistanceCorrection, 1e-9)
	require.InDelta(t, 0.025, c.VerticalOffset, 1e-9)
	require.InDelta(t, 0.04, c.HorizontalOffset, 1e-9)
	require.True(t, c.HasAzimuthCorrection)

	require.False(t, tbl.Get(1).HasAzimuthCorrection)
}

func TestLoadXML_DropsOutOfRangeLaserIDButKeepsOtherEntries(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cal-*.xml")
	require.NoError(t, err)
	_, err = f.WriteString(`<boost_serialization><DB><points_>
		<item><px><id_>99</id_><rotCorrection_>7</rotCorrection_></px></item>
		<item><px><id_>2</id_><rotCorrection_>1.5</rotCorrection_></px></item>
	</points_></DB></boost_serialization>`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := LoadXML(f.Name())
	require.NoError(t, err, "an out-of-range id_ drops only that entry, not the whole file")
	require.InDelta(t, 1.5, tbl.Get(2).RotationalCorrection, 1e-9)
}

func TestLoadXML_DropsEntryWithMissingLaserID(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cal-*.xml")
	require.NoError(t, err)
	_, err = f.WriteString(`<boost_serialization><DB><points_>
		<item><px><rotCorrection_>7</rotCorrection_></px></item>
		<item><px><id_>0</id_><rotCorrection_>1.5</rotCorrection_></px></item>
	</points_></DB></boost_serialization>`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := LoadXML(f.Name())
	require.NoError(t, err)
	// A missing id_ must never silently default to laser 0.
	require.InDelta(t, 1.5, tbl.Get(0).RotationalCorrection, 1e-9)
	require.False(t, tbl.Get(0).RotationalCorrection == 7, "the entry with no id_ must not be applied to laser 0")
}
