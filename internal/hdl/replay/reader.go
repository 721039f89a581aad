// Package replay provides the Reader facade: build (or load a cached)
// FrameIndex, then serve individual frames or frame ranges by seeking
// into the capture rather than decoding it from the start every time.
package replay

import (
	"errors"
	"fmt"
	"log"

	"github.com/banshee-data/velocity.report/internal/hdl/calibration"
	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/frame"
	"github.com/banshee-data/velocity.report/internal/hdl/frameindex"
	"github.com/banshee-data/velocity.report/internal/hdl/packet"
	"github.com/banshee-data/velocity.report/internal/hdl/pose"
	"github.com/banshee-data/velocity.report/internal/hdl/trig"
)

// ErrFrameOutOfRange is returned by GetFrame/GetFrameRange when the
// requested frame number is not covered by the index. A caller must
// reject n when n >= NumberOfFrames(): unlike a 0-based slice, "one past
// the end" is out of range here, not merely empty.
var ErrFrameOutOfRange = errors.New("replay: frame number out of range")

// Config configures a Reader.
type Config struct {
	Trig        *trig.Tables
	Calibration *calibration.Table
	Selection   calibration.SelectionMask
	PoseAt      pose.Lookup
}

// Reader is the facade over a capture: it owns the underlying
// capture.Reader and the FrameIndex built (or loaded) for it.
type Reader struct {
	cap   capture.Reader
	idx   *frameindex.Index
	cfg   Config
}

// New builds a Reader by scanning r's capture from the beginning. The
// caller retains ownership of r for as long as the Reader is used, and
// is responsible for calling Close.
func New(r capture.Reader, cfg Config) (*Reader, error) {
	if err := r.Seek(0); err != nil {
		return nil, fmt.Errorf("replay: seek to start: %w", err)
	}
	idx, err := frameindex.Build(r)
	if err != nil {
		return nil, fmt.Errorf("replay: build index: %w", err)
	}
	return &Reader{cap: r, idx: idx, cfg: cfg}, nil
}

// NewFromIndex builds a Reader from an already-built (e.g. cache-loaded)
// index, skipping the scan.
func NewFromIndex(r capture.Reader, idx *frameindex.Index, cfg Config) *Reader {
	return &Reader{cap: r, idx: idx, cfg: cfg}
}

// NumberOfFrames reports how many frames the underlying index covers.
func (rd *Reader) NumberOfFrames() int {
	return rd.idx.NumberOfFrames()
}

// Index exposes the underlying FrameIndex, e.g. for persisting to a cache.
func (rd *Reader) Index() *frameindex.Index {
	return rd.idx
}

// GetFrame seeks to frame number n and runs the assembler until it
// emits a frame, or the capture ends (in which case the in-progress
// frame is force-split and returned). n must satisfy 0 <= n <
// NumberOfFrames(); "one past the end" is out of range, not merely
// empty.
func (rd *Reader) GetFrame(n int) (*frame.Frame, error) {
	if n < 0 || n >= rd.NumberOfFrames() {
		return &frame.Frame{}, ErrFrameOutOfRange
	}
	return rd.assemble(n, 0)
}

// GetFrameRange clamps a negative startFrame to 0 (extending count by
// -startFrame to compensate), then runs the assembler with its split
// counter set to count so that count+1 consecutive revolutions (the
// start frame and count frames after it) are concatenated into a single
// aggregate frame.
func (rd *Reader) GetFrameRange(startFrame, count int) (*frame.Frame, error) {
	if startFrame < 0 {
		count -= startFrame
		startFrame = 0
	}
	if count <= 0 {
		return &frame.Frame{}, fmt.Errorf("replay: non-positive frame count %d", count)
	}
	if startFrame >= rd.NumberOfFrames() {
		return &frame.Frame{}, ErrFrameOutOfRange
	}
	return rd.assemble(startFrame, count)
}

// assemble seeks to the index entry for startFrame and decodes packets
// until the assembler (configured with the given splitCounter) emits a
// single frame, forcing a split if the capture ends first.
func (rd *Reader) assemble(startFrame, splitCounter int) (*frame.Frame, error) {
	entry := rd.idx.Entries[startFrame]
	if err := rd.cap.Seek(entry.Position); err != nil {
		return &frame.Frame{}, fmt.Errorf("replay: seek to frame %d: %w", startFrame, err)
	}

	var result *frame.Frame
	asm := frame.New(frame.Config{
		Trig:        rd.cfg.Trig,
		Calibration: rd.cfg.Calibration,
		Selection:   rd.cfg.Selection,
		PoseAt:      rd.cfg.PoseAt,
		OnFrame: func(f *frame.Frame) {
			if result == nil {
				result = f
			}
		},
	}, splitCounter)

	first := true
	for result == nil {
		rec, err := rd.cap.Next()
		if err != nil {
			if errors.Is(err, capture.ErrEOF) {
				asm.Flush()
				break
			}
			return &frame.Frame{}, fmt.Errorf("replay: read: %w", err)
		}
		p, err := packet.Decode(rec.Payload)
		if err != nil {
			log.Printf("replay: skipping malformed packet: %v", err)
			first = false
			continue
		}
		if first {
			asm.ProcessPacketFrom(p, entry.Skip)
			first = false
			continue
		}
		asm.ProcessPacket(p)
	}

	if result == nil {
		return &frame.Frame{}, fmt.Errorf("replay: capture ended before frame %d completed", startFrame)
	}
	return result, nil
}

// DumpFrames writes the payload of every record covering frames
// [startFrame, endFrame] to w unchanged. The link-layer header is not
// passed on; w supplies its own. Records are decoded only to find frame
// boundaries. endFrame is inclusive, matching the original reader's
// currentFrame <= endFrame loop condition: dumping a single frame k is
// DumpFrames(k, k, w). Reaching the end of the capture ends the last
// frame. This is the fast path for extracting a sub-capture.
func (rd *Reader) DumpFrames(startFrame, endFrame int, w capture.Writer) error {
	if startFrame < 0 || endFrame >= rd.NumberOfFrames() || startFrame > endFrame {
		return fmt.Errorf("replay: invalid dump range [%d,%d] of %d frames", startFrame, endFrame, rd.NumberOfFrames())
	}
	entry := rd.idx.Entries[startFrame]
	if err := rd.cap.Seek(entry.Position); err != nil {
		return fmt.Errorf("replay: seek: %w", err)
	}

	lastAzimuth := -1
	currentFrame := startFrame
	skip := entry.Skip
	for currentFrame <= endFrame {
		rec, err := rd.cap.Next()
		if err != nil {
			if errors.Is(err, capture.ErrEOF) {
				return nil
			}
			return fmt.Errorf("replay: read: %w", err)
		}
		p, err := packet.Decode(rec.Payload)
		if err != nil {
			log.Printf("replay: skipping malformed packet: %v", err)
			continue
		}
		// The first record's leading skip blocks belong to the previous
		// frame. A record is written only if one of its blocks falls in
		// [startFrame, endFrame].
		inRange := false
		for _, block := range p.Blocks[skip:] {
			if int(block.RotationalPos) < lastAzimuth {
				currentFrame++
			}
			lastAzimuth = int(block.RotationalPos)
			if currentFrame <= endFrame {
				inRange = true
			}
		}
		skip = 0
		if inRange {
			if err := w.WritePacket(rec.Payload); err != nil {
				return fmt.Errorf("replay: write: %w", err)
			}
		}
	}
	return nil
}

// Close releases the underlying capture reader.
func (rd *Reader) Close() error {
	return rd.cap.Close()
}
