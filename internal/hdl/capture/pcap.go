//go:build pcap
// +build pcap

package capture

import (
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapReader reads capture records from a classic pcap file, decoding
// only far enough to recover the UDP payload and the file byte offset
// each record started at.
//
// Building this on pcapgo.Reader over an *os.File (rather than
// gopacket/pcap's libpcap binding) is what lets Seek reposition to an
// arbitrary earlier record: libpcap's OpenOffline has no notion of
// "resume from position N", but the underlying file does.
type PcapReader struct {
	f      *os.File
	r      *pcapgo.Reader
	linkTy gopacket.LayerType
	pos    Position
}

// OpenPcapReader opens path for sequential or seek-based record reads.
func OpenPcapReader(path string) (*PcapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: parse pcap header %s: %w", path, err)
	}
	return &PcapReader{f: f, r: r, linkTy: r.LinkType()}, nil
}

func (p *PcapReader) Next() (Record, error) {
	pos, err := p.f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return Record{}, fmt.Errorf("capture: tell: %w", err)
	}

	for {
		data, _, err := p.r.ReadPacketData()
		if err != nil {
			return Record{}, ErrEOF
		}
		pkt := gopacket.NewPacket(data, p.linkTy, gopacket.NoCopy)
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		payload := make([]byte, len(udp.Payload))
		copy(payload, udp.Payload)
		rec := Record{Payload: payload, Pos: Position(pos)}
		p.pos = Position(pos)
		return rec, nil
	}
}

func (p *PcapReader) Pos() Position {
	off, err := p.f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return p.pos
	}
	return Position(off)
}

func (p *PcapReader) Seek(pos Position) error {
	if _, err := p.f.Seek(int64(pos), os.SEEK_SET); err != nil {
		return fmt.Errorf("capture: seek to %d: %w", pos, err)
	}
	p.pos = pos
	return nil
}

func (p *PcapReader) Close() error {
	return p.f.Close()
}

// PcapWriter appends records to a pcap file using a synthetic Ethernet
// + IPv4 + UDP header so the result round-trips through PcapReader and
// matches the 1,206+42 byte record shape assumed by dump/replay tools.
type PcapWriter struct {
	f       *os.File
	w       *pcapgo.Writer
	udpPort layers.UDPPort
}

// OpenPcapWriter creates (or truncates) path and writes a pcap header.
// Every record written is wrapped in a UDP datagram addressed to
// udpPort on both ends, matching the sensor's own source/destination
// port convention so the result replays like a genuine capture.
func OpenPcapWriter(path string, udpPort int) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: write pcap header: %w", err)
	}
	return &PcapWriter{f: f, w: w, udpPort: layers.UDPPort(udpPort)}, nil
}

func (p *PcapWriter) WritePacket(payload []byte) error {
	eth := layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP}
	udp := layers.UDP{SrcPort: p.udpPort, DstPort: p.udpPort}
	udp.SetNetworkLayerForChecksum(&ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("capture: serialize record: %w", err)
	}
	return p.w.WritePacket(gopacket.CaptureInfo{
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}, buf.Bytes())
}

func (p *PcapWriter) Close() error {
	return p.f.Close()
}
