//go:build pcap
// +build pcap

// Command hdl-replay decodes a captured HDL packet stream into frames
// and reports basic per-frame statistics, exercising the same
// index-build-then-seek path a live consumer would use.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/banshee-data/velocity.report/internal/hdl/calibration"
	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/debugserver"
	"github.com/banshee-data/velocity.report/internal/hdl/indexcache"
	"github.com/banshee-data/velocity.report/internal/hdl/replay"
	"github.com/banshee-data/velocity.report/internal/hdl/trig"
)

func main() {
	pcapFile := flag.String("pcap", "", "path to the pcap capture to replay")
	calXML := flag.String("calibration", "", "path to a boost_serialization calibration XML file (defaults to factory HDL-32)")
	cacheDB := flag.String("cache", "", "path to a frame index cache sqlite database (optional)")
	debugHTTP := flag.String("debug-http", "", "address to serve a debug SQL browser on, e.g. localhost:6060 (requires -cache)")
	startFrame := flag.Int("start", 0, "first frame to report")
	count := flag.Int("count", 1, "number of frames after -start to merge into the report")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("missing -pcap")
	}

	var calTable *calibration.Table
	if *calXML != "" {
		t, err := calibration.LoadXML(*calXML)
		if err != nil {
			log.Fatalf("loading calibration: %v", err)
		}
		calTable = t
	} else {
		calTable = calibration.DefaultHDL32()
	}

	r, err := capture.OpenPcapReader(*pcapFile)
	if err != nil {
		log.Fatalf("opening capture: %v", err)
	}
	defer r.Close()

	var cache *indexcache.Cache
	if *cacheDB != "" {
		cache, err = indexcache.Open(*cacheDB)
		if err != nil {
			log.Fatalf("opening index cache: %v", err)
		}
		defer cache.Close()

		if *debugHTTP != "" {
			mux := http.NewServeMux()
			if err := debugserver.Mount(mux, cache.DB()); err != nil {
				log.Fatalf("mounting debug server: %v", err)
			}
			go func() {
				log.Printf("debug server listening on %s", *debugHTTP)
				log.Println(http.ListenAndServe(*debugHTTP, mux))
			}()
		}
	}

	cfg := replay.Config{
		Trig:        trig.New(),
		Calibration: calTable,
	}

	var rd *replay.Reader
	if cache != nil {
		if idx, ok := cache.Lookup(*pcapFile); ok {
			rd = replay.NewFromIndex(r, idx, cfg)
		}
	}
	if rd == nil {
		rd, err = replay.New(r, cfg)
		if err != nil {
			log.Fatalf("building frame index: %v", err)
		}
		if cache != nil {
			if err := cache.Store(*pcapFile, rd.Index(), 0); err != nil {
				log.Printf("warning: could not store index cache: %v", err)
			}
		}
	}

	fmt.Printf("capture has %d frames\n", rd.NumberOfFrames())
	f, err := rd.GetFrameRange(*startFrame, *count)
	if err != nil {
		log.Fatalf("reading frames: %v", err)
	}
	fmt.Printf("frames [%d, %d]: %d points\n", *startFrame, *startFrame+*count, f.Len())

	os.Exit(0)
}
