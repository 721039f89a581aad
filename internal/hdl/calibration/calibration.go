// Package calibration holds the per-laser geometric correction table for
// an HDL-style rotating LiDAR sensor: one entry per laser id, giving the
// azimuth, vertical, distance and offset corrections needed to project a
// raw (azimuth, distance) return into the sensor frame.
package calibration

import (
	"encoding/xml"
	"fmt"
	"log"
	"math"
	"os"
)

// LaserCorrection holds one laser's calibration and the values derived
// from it. The derived sin/cos products are recomputed whenever a source
// field changes so callers never observe a stale derived value.
type LaserCorrection struct {
	LaserID              int
	RotationalCorrection float64 // degrees, subtracted from block azimuth
	VerticalCorrection   float64 // degrees
	DistanceCorrection   float64 // meters
	VerticalOffset       float64 // meters
	HorizontalOffset     float64 // meters

	// Derived. Recomputed by recompute().
	SinVertCorrection    float64
	CosVertCorrection    float64
	SinVertOffsetCorr    float64
	CosVertOffsetCorr    float64
	HasAzimuthCorrection bool // true when RotationalCorrection != 0
}

func (c *LaserCorrection) recompute() {
	vertRad := c.VerticalCorrection * math.Pi / 180.0
	c.SinVertCorrection = math.Sin(vertRad)
	c.CosVertCorrection = math.Cos(vertRad)
	c.SinVertOffsetCorr = c.VerticalOffset * c.SinVertCorrection
	c.CosVertOffsetCorr = c.VerticalOffset * c.CosVertCorrection
	c.HasAzimuthCorrection = c.RotationalCorrection != 0
}

// Table is a fixed 64-slot table of laser corrections, indexed by laser
// id (0..63). Slots for lasers the sensor does not have are left at
// their zero value and simply never referenced by a real packet.
type Table struct {
	Lasers [64]LaserCorrection
}

// Set installs a correction for laserID, recomputing its derived fields.
func (t *Table) Set(laserID int, c LaserCorrection) {
	c.LaserID = laserID
	c.recompute()
	t.Lasers[laserID] = c
}

// Get returns the correction for laserID.
func (t *Table) Get(laserID int) *LaserCorrection {
	return &t.Lasers[laserID]
}

// hdl32VerticalAngles is the factory vertical-angle schedule for a
// 32-laser sensor, laser id 0..31, degrees.
var hdl32VerticalAngles = [32]float64{
	-30.67, -9.33, -29.33, -8.00,
	-28.00, -6.67, -26.67, -5.33,
	-25.33, -4.00, -24.00, -2.67,
	-22.67, -1.33, -21.33, 0.00,
	-20.00, 1.33, -18.67, 2.67,
	-17.33, 4.00, -16.00, 5.33,
	-14.67, 6.67, -13.33, 8.00,
	-12.00, 9.33, -10.67, 10.67,
}

// DefaultHDL32 returns the factory calibration table for an HDL-32
// sensor: no rotational/distance/offset corrections, only the fixed
// vertical-angle schedule.
func DefaultHDL32() *Table {
	t := &Table{}
	for i, v := range hdl32VerticalAngles {
		t.Set(i, LaserCorrection{VerticalCorrection: v})
	}
	return t
}

// xmlDB mirrors the boost_serialization calibration XML structure:
// <boost_serialization><DB><points_><item><px>...</px></item>...</points_></DB></boost_serialization>
type xmlDB struct {
	XMLName xml.Name  `xml:"boost_serialization"`
	DB      xmlDBBody `xml:"DB"`
}

type xmlDBBody struct {
	Points []xmlPoint `xml:"points_>item"`
}

type xmlPoint struct {
	Px xmlPx `xml:"px"`
}

type xmlPx struct {
	ID                *int    `xml:"id_"`
	RotCorrection     float64 `xml:"rotCorrection_"`
	VertCorrection    float64 `xml:"vertCorrection_"`
	DistCorrectionCM  float64 `xml:"distCorrection_"`
	VertOffsetCorrCM  float64 `xml:"vertOffsetCorrection_"`
	HorizOffsetCorrCM float64 `xml:"horizOffsetCorrection_"`
}

// LoadXML parses a calibration file in the boost_serialization XML
// format. Distance and offset corrections are stored in the file as
// centimeters and are converted to meters on load.
func LoadXML(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("calibration: open %s: %w", path, err)
	}
	defer f.Close()

	var db xmlDB
	if err := xml.NewDecoder(f).Decode(&db); err != nil {
		return nil, fmt.Errorf("calibration: decode %s: %w", path, err)
	}

	t := &Table{}
	for _, p := range db.DB.Points {
		if p.Px.ID == nil {
			log.Printf("calibration: dropping <px> entry with missing id_ in %s", path)
			continue
		}
		id := *p.Px.ID
		if id < 0 || id > 63 {
			log.Printf("calibration: dropping <px> entry with out-of-range id_ %d in %s", id, path)
			continue
		}
		t.Set(id, LaserCorrection{
			RotationalCorrection: p.Px.RotCorrection,
			VerticalCorrection:   p.Px.VertCorrection,
			DistanceCorrection:   p.Px.DistCorrectionCM / 100.0,
			VerticalOffset:       p.Px.VertOffsetCorrCM / 100.0,
			HorizontalOffset:     p.Px.HorizOffsetCorrCM / 100.0,
		})
	}
	return t, nil
}

// SelectionMask reports, per laser id, whether that laser's returns
// should be kept during frame assembly. The zero value (no lasers
// marked) is treated as "no restriction configured" and keeps every
// laser; call AllSelected explicitly to keep everything while still
// distinguishing "configured" from "unconfigured".
type SelectionMask [64]bool

// AllSelected returns a mask that keeps every laser.
func AllSelected() SelectionMask {
	var m SelectionMask
	for i := range m {
		m[i] = true
	}
	return m
}
