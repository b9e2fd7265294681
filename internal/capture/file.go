package capture

import (
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// FileSource replays a pcap capture file.
type FileSource struct {
	path   string
	handle *pcap.Handle
	stats  Stats
}

// NewFileSource builds a FileSource for the given pcap path; the file
// is not opened until Start is called.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (fs *FileSource) Start(ctx context.Context) error {
	handle, err := pcap.OpenOffline(fs.path)
	if err != nil {
		return fmt.Errorf("capture: opening pcap file %s: %w", fs.path, err)
	}
	fs.handle = handle
	return nil
}

func (fs *FileSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if fs.handle == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("capture: file source %s not started", fs.path)
	}
	data, ci, err := fs.handle.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("capture: reading %s: %w", fs.path, err)
	}
	fs.stats.Received++
	return data, ci, nil
}

func (fs *FileSource) LinkType() layers.LinkType {
	if fs.handle == nil {
		return layers.LinkTypeEthernet
	}
	return fs.handle.LinkType()
}

func (fs *FileSource) Stats() Stats {
	return fs.stats
}

func (fs *FileSource) Close() error {
	if fs.handle != nil {
		fs.handle.Close()
		fs.handle = nil
	}
	return nil
}
