// Package frame assembles decoded HDL packets into 360-degree frames of
// calibrated, columnar point data, reconciling dual-return pairs as they
// arrive.
package frame

import (
	"math"

	"github.com/banshee-data/velocity.report/internal/hdl/calibration"
	"github.com/banshee-data/velocity.report/internal/hdl/packet"
	"github.com/banshee-data/velocity.report/internal/hdl/pose"
	"github.com/banshee-data/velocity.report/internal/hdl/trig"
)

// Dual-return flag bits, OR'd into Frame.DualFlags. A point with no
// matching echo (or whose match could not be located) carries
// DualDoubled, the union of all four bits, until a later firing at the
// same laser and rotational position narrows it down.
const (
	DualDistanceNear  = 1
	DualDistanceFar   = 2
	DualIntensityLow  = 4
	DualIntensityHigh = 8
	DualDoubled       = DualDistanceNear | DualDistanceFar | DualIntensityLow | DualIntensityHigh
)

// Frame holds one 360-degree revolution's worth of calibrated returns in
// column-of-arrays form so that a dual-return reconciliation can rewrite
// a single already-pushed point's flags and deltas without touching the
// rest of the frame.
type Frame struct {
	X, Y, Z            []float32
	Intensity          []uint8
	LaserID            []uint8
	Azimuth            []uint16 // hundredths of a degree
	DistanceM          []float64
	Timestamp          []uint32
	DualFlags          []uint32
	DualIntensityDelta []int16
	DualDistanceDelta  []float64
}

func newFrame() *Frame {
	return &Frame{}
}

// Len returns the number of points currently in the frame.
func (f *Frame) Len() int { return len(f.X) }

func (f *Frame) push(x, y, z float64, intensity uint8, laserID int, azimuth uint16, distM float64, ts uint32) int {
	f.X = append(f.X, float32(x))
	f.Y = append(f.Y, float32(y))
	f.Z = append(f.Z, float32(z))
	f.Intensity = append(f.Intensity, intensity)
	f.LaserID = append(f.LaserID, uint8(laserID))
	f.Azimuth = append(f.Azimuth, azimuth)
	f.DistanceM = append(f.DistanceM, distM)
	f.Timestamp = append(f.Timestamp, ts)
	f.DualFlags = append(f.DualFlags, 0)
	f.DualIntensityDelta = append(f.DualIntensityDelta, 0)
	f.DualDistanceDelta = append(f.DualDistanceDelta, 0)
	return len(f.X) - 1
}

// Config configures a FrameAssembler.
type Config struct {
	Trig        *trig.Tables
	Calibration *calibration.Table
	Selection   calibration.SelectionMask
	// PoseAt looks up a pose sample for a given GPS timestamp. May be
	// nil, in which case no pose transform is applied.
	PoseAt pose.Lookup
	// OnFrame is invoked once per completed frame. It may keep the Frame:
	// the assembler starts a fresh Frame after every split and never
	// writes to one it has handed out.
	OnFrame func(*Frame)
}

// Assembler is a streaming state machine that turns a sequence of
// decoded packets into completed Frames, applying calibration, the
// trig-table projection, and dual-return reconciliation as it goes.
type Assembler struct {
	cfg Config

	current      *Frame
	lastAzimuth  int // -1 before the first firing is seen
	lastPointID  [64]int
	splitCounter int

	// firstPointIDThisReturn is the point count recorded at the start of
	// the most recent non-dual firing block. A dual block that follows
	// it uses this to tell "no matching first-return point was pushed"
	// (prev < firstPointIDThisReturn) from a genuine match.
	firstPointIDThisReturn int
}

// New creates an Assembler. splitCounter delays a frame split by that
// many additional azimuth-wrap detections, matching the "merge N frames
// into one" behavior used by Reader.GetFrameRange.
func New(cfg Config, splitCounter int) *Assembler {
	a := &Assembler{cfg: cfg, current: newFrame(), lastAzimuth: -1, splitCounter: splitCounter}
	for i := range a.lastPointID {
		a.lastPointID[i] = -1
	}
	return a
}

// ProcessPacket feeds one decoded packet into the assembler.
func (a *Assembler) ProcessPacket(p *packet.Packet) {
	a.ProcessPacketFrom(p, 0)
}

// ProcessPacketFrom feeds one decoded packet into the assembler starting
// at firing block index skip, discarding the blocks before it. This is
// used for the first packet read after a FrameIndex-driven seek, where
// the leading skip blocks belong to the previous frame.
func (a *Assembler) ProcessPacketFrom(p *packet.Packet, skip int) {
	var azOffsetHundredths int
	var tx, ty, tz float64
	haveTransform := false

	if a.cfg.PoseAt != nil {
		if sample, ok := a.cfg.PoseAt(p.GPSTimestamp); ok {
			azOffsetHundredths = int(math.Round(math.Atan2(sample.SinTheta, sample.CosTheta) * 180.0 / math.Pi * 100.0))
			tx, ty, tz = sample.X, sample.Y, sample.Z
			haveTransform = true
		}
	}

	for _, block := range p.Blocks[skip:] {
		if int(block.RotationalPos) < a.lastAzimuth {
			a.splitFrame(false)
		}
		// A dual-return pair shares its rotational position across two
		// consecutive firing blocks: the comparison must happen before
		// last_azimuth is updated for this block.
		isDual := a.lastAzimuth == int(block.RotationalPos)
		a.processFiring(block, p.GPSTimestamp, azOffsetHundredths, tx, ty, tz, haveTransform, isDual)
		a.lastAzimuth = int(block.RotationalPos)
	}
}

func (a *Assembler) processFiring(block packet.FiringBlock, gpsTS uint32, azOffset int, tx, ty, tz float64, haveTransform, isDual bool) {
	if !isDual {
		a.firstPointIDThisReturn = a.current.Len()
	}

	for r := 0; r < 32; r++ {
		ret := block.Returns[r]
		if ret.DistanceRaw == 0 {
			continue
		}
		laserID := packet.LaserID(block.BlockID, r)
		if a.cfg.Selection != (calibration.SelectionMask{}) && !a.cfg.Selection[laserID] {
			continue
		}
		corr := a.cfg.Calibration.Get(laserID)

		azimuth := ((int(block.RotationalPos)+azOffset)%36000 + 36000) % 36000

		distM := packet.DistanceMeters(ret.DistanceRaw) + corr.DistanceCorrection

		var cosAzT, sinAzT float64
		if corr.HasAzimuthCorrection {
			rad := (float64(azimuth)/100.0 - corr.RotationalCorrection) * math.Pi / 180.0
			cosAzT, sinAzT = math.Cos(rad), math.Sin(rad)
		} else {
			cosAzT, sinAzT = a.cfg.Trig.Cos(azimuth), a.cfg.Trig.Sin(azimuth)
		}
		cosVert, sinVert := corr.CosVertCorrection, corr.SinVertCorrection

		xyDist := distM*cosVert - corr.SinVertOffsetCorr
		x := xyDist*sinAzT - corr.HorizontalOffset*cosAzT
		y := xyDist*cosAzT + corr.HorizontalOffset*sinAzT
		z := distM*sinVert + corr.CosVertOffsetCorr

		if haveTransform {
			x, y, z = pose.Apply(x, y, z, tx, ty, tz)
		}

		thisPointID := a.current.push(x, y, z, ret.Intensity, laserID, block.RotationalPos, distM, gpsTS)

		if isDual {
			a.reconcileDual(laserID, thisPointID, ret.Intensity, distM)
		} else {
			a.current.DualFlags[thisPointID] = DualDoubled
		}

		a.lastPointID[laserID] = thisPointID
	}
}

// reconcileDual patches the flags and deltas of both halves of a dual
// return pair: the point just pushed (thisPointID) and the point from
// its matching first return, if one exists.
func (a *Assembler) reconcileDual(laserID, thisPointID int, intensity uint8, distM float64) {
	f := a.current
	prev := a.lastPointID[laserID]

	if prev < a.firstPointIDThisReturn {
		// No matching first-return point was pushed for this laser.
		f.DualFlags[thisPointID] = DualDoubled
		return
	}

	prevIntensity := f.Intensity[prev]
	prevDistance := f.DistanceM[prev]

	var newFlags uint32
	if prevIntensity < intensity {
		f.DualFlags[prev] &^= DualIntensityHigh
		newFlags |= DualIntensityHigh
	} else {
		f.DualFlags[prev] &^= DualIntensityLow
		newFlags |= DualIntensityLow
	}
	if prevDistance < distM {
		f.DualFlags[prev] &^= DualDistanceFar
		newFlags |= DualDistanceFar
	} else {
		f.DualFlags[prev] &^= DualDistanceNear
		newFlags |= DualDistanceNear
	}
	f.DualFlags[thisPointID] = newFlags

	sumIntensity := int(prevIntensity) + int(intensity)
	meanDistance := (prevDistance + distM) / 2

	f.DualIntensityDelta[prev] = int16(2*int(prevIntensity) - sumIntensity)
	f.DualIntensityDelta[thisPointID] = int16(2*int(intensity) - sumIntensity)
	f.DualDistanceDelta[prev] = prevDistance - meanDistance
	f.DualDistanceDelta[thisPointID] = distM - meanDistance
}

// splitFrame finalizes the current frame and starts a new one. Unless
// force is set, the first splitCounter calls after New only count the
// counter down and keep the current frame open (frame merging for
// GetFrameRange); once it reaches zero every call splits.
func (a *Assembler) splitFrame(force bool) {
	if !force && a.splitCounter > 0 {
		a.splitCounter--
		return
	}
	if a.cfg.OnFrame != nil {
		a.cfg.OnFrame(a.current)
	}
	a.current = newFrame()
	for i := range a.lastPointID {
		a.lastPointID[i] = -1
	}
}

// Flush finalizes whatever partial frame is currently in progress. Call
// this after the last packet of a capture has been processed.
func (a *Assembler) Flush() {
	a.splitFrame(true)
}
