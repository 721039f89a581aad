// Package frameindex builds a one-shot pre-scan of a capture that
// records where each frame begins, enabling random-access seek-based
// frame retrieval without decoding the whole capture up front.
package frameindex

import (
	"errors"
	"fmt"
	"log"

	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/packet"
)

// Entry records where one frame starts: the capture position of the
// packet containing the frame boundary, and how many firing blocks
// within that packet belong to the previous frame and must be skipped.
type Entry struct {
	Position capture.Position
	Skip     int
}

// Index is the full pre-scan result: one Entry per frame boundary,
// entry 0 always describing the very first packet in the capture.
type Index struct {
	Entries []Entry
}

// NumberOfFrames reports how many frames the index describes.
func (idx *Index) NumberOfFrames() int {
	return len(idx.Entries)
}

// missedPacketDivisorMicros is the nominal inter-packet period used to
// estimate how many packets were dropped across a timestamp gap. It is
// intrinsic to the sensor's firing rate and is not meant to be
// reconfigured per capture.
const missedPacketDivisorMicros = 553.0

// missedPacketGapThresholdMicros is the smallest GPS-timestamp gap that
// is treated as evidence of dropped packets rather than normal jitter.
const missedPacketGapThresholdMicros = 600

// Build scans r from its current position to end of capture, recording
// a frame-boundary Entry every time a firing block's rotational
// position decreases relative to the previous one. It also logs a
// diagnostic whenever consecutive packets' GPS timestamps imply missed
// packets.
func Build(r capture.Reader) (*Index, error) {
	idx := &Index{}
	lastAzimuth := -1
	var lastTimestamp uint32
	firstRecord := true

	lastPos := r.Pos()
	idx.Entries = append(idx.Entries, Entry{Position: lastPos, Skip: 0})

	for {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, capture.ErrEOF) {
				break
			}
			return nil, fmt.Errorf("frameindex: read: %w", err)
		}

		p, err := packet.Decode(rec.Payload)
		if err != nil {
			// Malformed or mis-sized packets are silently skipped: they
			// contribute nothing to the index and never split a frame.
			log.Printf("frameindex: skipping malformed packet at position %d: %v", rec.Pos, err)
			continue
		}

		if !firstRecord && lastTimestamp != 0 {
			diff := int64(p.GPSTimestamp) - int64(lastTimestamp)
			if diff > missedPacketGapThresholdMicros {
				missed := int64(float64(diff)/missedPacketDivisorMicros + 0.5)
				log.Printf("frameindex: missed %d packets near position %d", missed, rec.Pos)
			}
		}
		lastTimestamp = p.GPSTimestamp
		firstRecord = false

		for skip, block := range p.Blocks {
			if int(block.RotationalPos) < lastAzimuth {
				idx.Entries = append(idx.Entries, Entry{Position: rec.Pos, Skip: skip})
			}
			lastAzimuth = int(block.RotationalPos)
		}
	}

	if firstRecord {
		// No decodable packet was found: the capture holds no frame.
		idx.Entries = nil
	}
	return idx, nil
}
