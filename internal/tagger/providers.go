package tagger

import "github.com/packetloom/tracecore/internal/core"

// staticASNTable and staticGeoTable stand in for the prefix/geo
// databases a real deployment would load from disk. Keyed by the
// packet's destination address's first octet purely for illustration.
var staticASNTable = map[uint8]uint32{
	1:   15169,
	8:   3356,
	192: 64512,
}

var staticGeoTable = map[uint8]string{
	1:   "US",
	8:   "US",
	192: "ZZ",
}

type prefixASNProvider struct {
	table map[uint8]uint32
}

func (p prefixASNProvider) apply(pkt *core.DecodedPacket, tags *core.Tags) error {
	if !pkt.DstIP.Is4() {
		return core.ErrUnsupportedProto
	}
	octet := pkt.DstIP.As4()[0]
	asn, ok := p.table[octet]
	if !ok {
		return nil
	}
	tags.PrefixASN = asn
	return nil
}

type geoProvider struct {
	name  string
	table map[uint8]string
}

func (p geoProvider) apply(pkt *core.DecodedPacket, tags *core.Tags) error {
	if !pkt.DstIP.Is4() {
		return core.ErrUnsupportedProto
	}
	octet := pkt.DstIP.As4()[0]
	cc, ok := p.table[octet]
	if !ok {
		return nil
	}
	tags.GeoCC = cc
	tags.Provider = p.name
	return nil
}
