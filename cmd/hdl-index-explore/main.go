//go:build pcap
// +build pcap

// Command hdl-index-explore builds a frame index for a capture and
// renders an HTML timeline of its frame boundaries for visual QA.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/diag"
	"github.com/banshee-data/velocity.report/internal/hdl/frameindex"
)

func main() {
	pcapFile := flag.String("pcap", "", "path to the capture to index")
	outHTML := flag.String("out", "index.html", "path to write the timeline chart to")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("missing -pcap")
	}

	r, err := capture.OpenPcapReader(*pcapFile)
	if err != nil {
		log.Fatalf("opening capture: %v", err)
	}
	defer r.Close()

	idx, err := frameindex.Build(r)
	if err != nil {
		log.Fatalf("building index: %v", err)
	}

	if err := diag.ExportIndexTimeline(idx, *outHTML); err != nil {
		log.Fatalf("exporting timeline: %v", err)
	}
	log.Printf("wrote %d frame boundaries to %s", idx.NumberOfFrames(), *outHTML)
}
