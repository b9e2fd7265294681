// Package capture provides the concrete Source implementations that
// feed a Worker's OnPacket/OnTick methods: a live AF_PACKET source, a
// pcap file replay source, a bidirectional flow-hash dispatcher, and a
// periodic tick generator.
package capture

import (
	"context"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Stats mirrors the counters a real capture backend exposes for drop
// and missing-packet accounting (see internal/metrics).
type Stats struct {
	Received uint64
	Dropped  uint64
	Missing  uint64
}

// Source yields raw packets and reports link-layer/drop statistics.
// Both LiveSource and FileSource implement it.
type Source interface {
	Start(ctx context.Context) error
	ReadPacket() (data []byte, info gopacket.CaptureInfo, err error)
	LinkType() layers.LinkType
	Stats() Stats
	Close() error
}
