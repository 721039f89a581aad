// Package packet decodes raw HDL UDP payloads into the block/return
// structures the frame assembler consumes.
package packet

import (
	"encoding/binary"
	"fmt"
)

// Size is the fixed length, in bytes, of a valid HDL data packet
// payload (excluding any link-layer header).
const Size = 1206

const (
	// Block0to31 identifies a firing block covering laser ids 0..31.
	Block0to31 = 0xEEFF
	// Block32to63 identifies a firing block covering laser ids 32..63.
	Block32to63 = 0xDDFF

	blocksPerPacket   = 12
	returnsPerBlock   = 32
	blockHeaderBytes  = 4
	returnBytes       = 3
	blockBytes        = blockHeaderBytes + returnsPerBlock*returnBytes
	gpsTimestampBytes = 4
	factoryBytes      = 2
)

// LaserReturn is one laser's decoded range/intensity sample within a
// firing block, prior to any per-laser calibration.
type LaserReturn struct {
	DistanceRaw uint16 // 2mm units
	Intensity   uint8
}

// FiringBlock is one of the 12 firing blocks in a packet.
type FiringBlock struct {
	BlockID           uint16 // Block0to31 or Block32to63
	RotationalPos     uint16 // hundredths of a degree, 0..35999
	Returns           [returnsPerBlock]LaserReturn
}

// Packet is a fully decoded HDL data packet.
type Packet struct {
	Blocks        [blocksPerPacket]FiringBlock
	GPSTimestamp  uint32 // microseconds since the top of the hour
	FactoryByte1  byte
	FactoryByte2  byte
}

// Decode reinterprets a raw payload as an HDL data packet. The payload
// must be exactly Size bytes; any other length is a decode error and
// the caller must drop the packet without retrying, per the module's
// no-retry error handling policy. Beyond the length check, decoding
// never rejects a payload: an unrecognized block identifier or an
// out-of-range rotational position is stored as-is, matching the
// original reader's tolerance for otherwise-valid-length packets.
func Decode(payload []byte) (*Packet, error) {
	if len(payload) != Size {
		return nil, fmt.Errorf("packet: invalid payload length %d, want %d", len(payload), Size)
	}

	var p Packet
	off := 0
	for b := 0; b < blocksPerPacket; b++ {
		blockID := binary.LittleEndian.Uint16(payload[off : off+2])
		rot := binary.LittleEndian.Uint16(payload[off+2 : off+4])

		fb := FiringBlock{BlockID: blockID, RotationalPos: rot}
		ro := off + blockHeaderBytes
		for r := 0; r < returnsPerBlock; r++ {
			dist := binary.LittleEndian.Uint16(payload[ro : ro+2])
			intensity := payload[ro+2]
			fb.Returns[r] = LaserReturn{DistanceRaw: dist, Intensity: intensity}
			ro += returnBytes
		}
		p.Blocks[b] = fb
		off += blockBytes
	}

	p.GPSTimestamp = binary.LittleEndian.Uint32(payload[off : off+gpsTimestampBytes])
	off += gpsTimestampBytes
	p.FactoryByte1 = payload[off]
	p.FactoryByte2 = payload[off+1]

	return &p, nil
}

// LaserID returns the absolute laser id (0..63) for return index r
// within a firing block identified by blockID. Any identifier other
// than Block0to31 is treated as the upper block, matching the
// original reader's ternary default rather than requiring an exact
// match on Block32to63.
func LaserID(blockID uint16, r int) int {
	if blockID == Block0to31 {
		return r
	}
	return r + 32
}

// DistanceMeters converts a raw 2mm-unit distance sample to meters.
func DistanceMeters(raw uint16) float64 {
	return float64(raw) * 0.002
}
