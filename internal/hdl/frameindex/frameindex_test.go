package frameindex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/packet"
)

func rawPacket(rotations [12]uint16, gpsTimestamp uint32) []byte {
	buf := make([]byte, packet.Size)
	off := 0
	for b := 0; b < 12; b++ {
		binary.LittleEndian.PutUint16(buf[off:], packet.Block0to31)
		binary.LittleEndian.PutUint16(buf[off+2:], rotations[b])
		off += 4 + 32*3
	}
	binary.LittleEndian.PutUint32(buf[off:], gpsTimestamp)
	return buf
}

func TestBuild_NoWraps_SingleFrame(t *testing.T) {
	rots := [12]uint16{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100}
	r := capture.NewMockReader([][]byte{rawPacket(rots, 1000)})

	idx, err := Build(r)
	require.NoError(t, err)
	require.Equal(t, 1, idx.NumberOfFrames())
	require.Equal(t, 0, idx.Entries[0].Skip)
}

func TestBuild_DetectsWrapMidPacket(t *testing.T) {
	rots := [12]uint16{100, 200, 300, 50, 500, 600, 700, 800, 900, 1000, 1100, 1200}
	r := capture.NewMockReader([][]byte{rawPacket(rots, 1000)})

	idx, err := Build(r)
	require.NoError(t, err)
	require.Equal(t, 2, idx.NumberOfFrames())
	require.Equal(t, 3, idx.Entries[1].Skip, "the wrap happens at block index 3")
	require.Equal(t, capture.Position(0), idx.Entries[1].Position, "the boundary is within the first record")
}

func TestBuild_DetectsWrapAcrossPackets(t *testing.T) {
	first := [12]uint16{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100}
	second := [12]uint16{50, 150, 250, 350, 450, 550, 650, 750, 850, 950, 1050, 1150}
	r := capture.NewMockReader([][]byte{rawPacket(first, 1000), rawPacket(second, 2000)})

	idx, err := Build(r)
	require.NoError(t, err)
	require.Equal(t, 2, idx.NumberOfFrames())
	require.Equal(t, capture.Position(1), idx.Entries[1].Position)
	require.Equal(t, 0, idx.Entries[1].Skip)
}
