package replay

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/velocity.report/internal/hdl/calibration"
	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/packet"
	"github.com/banshee-data/velocity.report/internal/hdl/trig"
)

func rawPacket(rotations [12]uint16, gpsTimestamp uint32, laser0Distance uint16) []byte {
	buf := make([]byte, packet.Size)
	off := 0
	for b := 0; b < 12; b++ {
		binary.LittleEndian.PutUint16(buf[off:], packet.Block0to31)
		binary.LittleEndian.PutUint16(buf[off+2:], rotations[b])
		binary.LittleEndian.PutUint16(buf[off+4:], laser0Distance)
		buf[off+6] = 100
		off += 4 + 32*3
	}
	binary.LittleEndian.PutUint32(buf[off:], gpsTimestamp)
	return buf
}

func testConfig() Config {
	return Config{Trig: trig.New(), Calibration: calibration.DefaultHDL32()}
}

func threeFramePackets() [][]byte {
	frame1 := [12]uint16{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100}
	frame2 := [12]uint16{50, 150, 250, 350, 450, 550, 650, 750, 850, 950, 1050, 1150}
	frame3 := [12]uint16{75, 175, 275, 375, 475, 575, 675, 775, 875, 975, 1075, 1175}
	return [][]byte{
		rawPacket(frame1, 1000, 500),
		rawPacket(frame2, 2000, 500),
		rawPacket(frame3, 3000, 500),
	}
}

func fourFramePackets() [][]byte {
	frame1 := [12]uint16{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100}
	frame2 := [12]uint16{50, 150, 250, 350, 450, 550, 650, 750, 850, 950, 1050, 1150}
	frame3 := [12]uint16{75, 175, 275, 375, 475, 575, 675, 775, 875, 975, 1075, 1175}
	frame4 := [12]uint16{25, 125, 225, 325, 425, 525, 625, 725, 825, 925, 1025, 1125}
	return [][]byte{
		rawPacket(frame1, 1000, 500),
		rawPacket(frame2, 2000, 500),
		rawPacket(frame3, 3000, 500),
		rawPacket(frame4, 4000, 500),
	}
}

func TestReader_NumberOfFrames(t *testing.T) {
	r := capture.NewMockReader(threeFramePackets())
	rd, err := New(r, testConfig())
	require.NoError(t, err)
	require.Equal(t, 3, rd.NumberOfFrames())
}

func TestReader_GetFrame_RejectsOutOfRange(t *testing.T) {
	r := capture.NewMockReader(threeFramePackets())
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	_, err = rd.GetFrame(3)
	require.ErrorIs(t, err, ErrFrameOutOfRange)
}

func TestReader_GetFrame_DecodesExpectedPointCount(t *testing.T) {
	r := capture.NewMockReader(threeFramePackets())
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	f, err := rd.GetFrame(1)
	require.NoError(t, err)
	require.Equal(t, 12, f.Len())
}

func TestReader_GetFrameRange_MergesFrames(t *testing.T) {
	r := capture.NewMockReader(fourFramePackets())
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	f, err := rd.GetFrameRange(0, 2)
	require.NoError(t, err)
	require.Equal(t, 36, f.Len(), "split_counter=2 merges three physical revolutions before the aggregate frame is emitted")
}

func TestReader_DumpFrames_CopiesRecordsVerbatim(t *testing.T) {
	packets := threeFramePackets()
	r := capture.NewMockReader(packets)
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	w := &capture.MockWriter{}
	require.NoError(t, rd.DumpFrames(0, 0, w))
	require.Len(t, w.Written, 1)
	require.Equal(t, packets[0], w.Written[0])
}

func TestReader_DumpFrames_SingleFrameInclusiveRange(t *testing.T) {
	// dump_frames(k, k, out) must dump exactly frame k: endFrame is
	// inclusive, matching the original currentFrame <= endFrame loop.
	packets := threeFramePackets()
	r := capture.NewMockReader(packets)
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	w := &capture.MockWriter{}
	require.NoError(t, rd.DumpFrames(1, 1, w))
	require.Len(t, w.Written, 1)
	require.Equal(t, packets[1], w.Written[0])
}

func TestReader_DumpFrames_MultiFrameInclusiveRange(t *testing.T) {
	packets := threeFramePackets()
	r := capture.NewMockReader(packets)
	rd, err := New(r, testConfig())
	require.NoError(t, err)

	w := &capture.MockWriter{}
	require.NoError(t, rd.DumpFrames(0, 1, w))
	require.Len(t, w.Written, 2, "endFrame is inclusive, so frames 0 and 1 both dump")
	require.Equal(t, packets[0], w.Written[0])
	require.Equal(t, packets[1], w.Written[1])
}
