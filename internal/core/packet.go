// Package core defines the packet types shared across the capture,
// filter, tagger, worker, and plugin layers.
package core

import (
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// RawPacket is one captured frame as read from a Source, before Decode
// turns it into the DecodedPacket a Worker receives.
type RawPacket struct {
	Data     []byte
	Info     gopacket.CaptureInfo
	LinkType layers.LinkType
}

// Timestamp returns the packet's capture time truncated to whole seconds,
// matching the interval clock's second-granularity boundaries.
func (p RawPacket) Timestamp() time.Time {
	return p.Info.Timestamp.Truncate(time.Second)
}

// TS returns the packet's capture time as whole epoch seconds.
func (p RawPacket) TS() uint32 {
	return uint32(p.Info.Timestamp.Unix())
}

// DecodedPacket is the L2-L4 decoded view of a RawPacket, produced by the
// worker before filters and taggers run.
type DecodedPacket struct {
	Timestamp time.Time
	SrcIP     netip.Addr
	DstIP     netip.Addr
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8 // IANA protocol number (TCP=6, UDP=17, ...)
	Raw       gopacket.Packet
}

// TS returns the decoded packet's capture time as whole epoch seconds.
func (p DecodedPacket) TS() uint32 {
	return uint32(p.Timestamp.Unix())
}

// Tags is the optional per-packet annotation produced by a Tagger.
type Tags struct {
	PrefixASN uint32
	GeoCC     string // ISO country code from the first enabled geo provider
	Provider  string // name of the provider that produced GeoCC, for diagnostics
}
