package core

import (
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Decode extracts the 5-tuple and protocol a Worker's packet pipeline,
// filter chain, and tagger need from one raw captured frame. gopacket
// does the per-layer parsing; IPv4 reassembly and TCP stream assembly
// are deliberately skipped. Frames with no IPv4/IPv6 network layer
// (ARP, etc.) return a nil packet rather than an error.
func Decode(raw RawPacket) (*DecodedPacket, error) {
	parsed := gopacket.NewPacket(raw.Data, raw.LinkType.LayerType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	pkt := &DecodedPacket{Timestamp: raw.Timestamp(), Raw: parsed}

	switch nl := parsed.NetworkLayer().(type) {
	case *layers.IPv4:
		pkt.SrcIP, _ = netip.AddrFromSlice(nl.SrcIP.To4())
		pkt.DstIP, _ = netip.AddrFromSlice(nl.DstIP.To4())
		pkt.Protocol = uint8(nl.Protocol)
	case *layers.IPv6:
		pkt.SrcIP, _ = netip.AddrFromSlice(nl.SrcIP.To16())
		pkt.DstIP, _ = netip.AddrFromSlice(nl.DstIP.To16())
		pkt.Protocol = uint8(nl.NextHeader)
	default:
		return nil, nil
	}

	switch tl := parsed.TransportLayer().(type) {
	case *layers.TCP:
		pkt.SrcPort = uint16(tl.SrcPort)
		pkt.DstPort = uint16(tl.DstPort)
	case *layers.UDP:
		pkt.SrcPort = uint16(tl.SrcPort)
		pkt.DstPort = uint16(tl.DstPort)
	}

	return pkt, nil
}
