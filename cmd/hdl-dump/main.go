//go:build pcap
// +build pcap

// Command hdl-dump extracts a sub-range of frames from a capture into a
// new capture file, copying each record's UDP payload verbatim under a
// synthesized link-layer header.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/velocity.report/internal/hdl/calibration"
	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/replay"
	"github.com/banshee-data/velocity.report/internal/hdl/trig"
)

func main() {
	pcapFile := flag.String("pcap", "", "path to the source capture")
	outFile := flag.String("out", "", "path to the destination capture")
	startFrame := flag.Int("start", 0, "first frame to include")
	endFrame := flag.Int("end", 0, "last frame to include (inclusive)")
	udpPort := flag.Int("udp-port", 2368, "UDP port to synthesize in output records")
	flag.Parse()

	if *pcapFile == "" || *outFile == "" {
		log.Fatal("missing -pcap or -out")
	}

	r, err := capture.OpenPcapReader(*pcapFile)
	if err != nil {
		log.Fatalf("opening capture: %v", err)
	}
	defer r.Close()

	rd, err := replay.New(r, replay.Config{
		Trig:        trig.New(),
		Calibration: calibration.DefaultHDL32(),
	})
	if err != nil {
		log.Fatalf("building frame index: %v", err)
	}

	w, err := capture.OpenPcapWriter(*outFile, *udpPort)
	if err != nil {
		log.Fatalf("opening output capture: %v", err)
	}
	defer w.Close()

	if err := rd.DumpFrames(*startFrame, *endFrame, w); err != nil {
		log.Fatalf("dumping frames: %v", err)
	}
	log.Printf("wrote frames [%d, %d] to %s", *startFrame, *endFrame, *outFile)
}
