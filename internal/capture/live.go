package capture

import (
	"context"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"

	"github.com/packetloom/tracecore/internal/utils"
)

// LiveConfig configures a LiveSource.
type LiveConfig struct {
	Device        string
	SnapLen       int
	BufferSizeMB  int
	TimeoutMs     int
	FanoutID      uint16
	BPFExpression string
}

// LiveSource wraps gopacket/afpacket.TPacket for reading live traffic
// off a network interface.
type LiveSource struct {
	cfg    LiveConfig
	handle *afpacket.TPacket
	stats  Stats
}

// NewLiveSource builds a LiveSource; the interface is not opened until
// Start is called.
func NewLiveSource(cfg LiveConfig) *LiveSource {
	return &LiveSource{cfg: cfg}
}

func (s *LiveSource) Start(ctx context.Context) error {
	frameSize, blockSize, numBlocks, err := recomputeSize(s.cfg.BufferSizeMB, s.cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return err
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.cfg.Device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(s.cfg.TimeoutMs),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("capture: opening %s: %w", s.cfg.Device, err)
	}

	if s.cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, s.cfg.FanoutID); err != nil {
			tp.Close()
			return fmt.Errorf("capture: setting fanout on %s: %w", s.cfg.Device, err)
		}
	}

	if s.cfg.BPFExpression != "" {
		rawBPF, err := utils.CompileBpf(s.cfg.BPFExpression, s.cfg.SnapLen)
		if err != nil {
			tp.Close()
			return err
		}
		if err := tp.SetBPF(rawBPF); err != nil {
			tp.Close()
			return fmt.Errorf("capture: applying BPF on %s: %w", s.cfg.Device, err)
		}
	}

	s.handle = tp
	return nil
}

func (s *LiveSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	data, info, err := s.handle.ReadPacketData()
	if err == nil {
		s.stats.Received++
	}
	return data, info, err
}

func (s *LiveSource) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (s *LiveSource) Stats() Stats {
	if s.handle != nil {
		if socketStats, _, err := s.handle.SocketStats(); err == nil {
			s.stats.Dropped = uint64(socketStats.Drops())
		}
	}
	return s.stats
}

func (s *LiveSource) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

// recomputeSize derives afpacket's frame/block/ring sizing for
// TPacket's memory-mapped ring from a snaplen and a target buffer
// size.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferSizeMB <= 0 {
		bufferSizeMB = 8
	}
	if snapLen <= 0 {
		snapLen = 65536
	}
	frameSize = pageSize
	for frameSize < snapLen {
		frameSize <<= 1
	}
	blockSize = frameSize * 128
	totalBytes := bufferSizeMB * 1024 * 1024
	numBlocks = totalBytes / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}
