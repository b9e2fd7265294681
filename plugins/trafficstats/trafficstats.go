// Package trafficstats is an illustrative plugin exercising the
// pluginapi lifecycle end to end: each worker counts packets and bytes
// per interval, the merger sums those counts across workers, and
// periodic rotation closes the current summary file and opens a new
// one via gopkg.in/natefinch/lumberjack.v2, the same rotation
// mechanism internal/log uses for its own file-mode logger.
package trafficstats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/plugins"
)

// Name is the active_plugins descriptor name this plugin registers under.
const Name = "trafficstats"

func init() {
	plugins.Register(Name, start, startMerging)
}

// Artifact is one worker's packet/byte counters for a closed interval.
type Artifact struct {
	Packets uint64
	Bytes   uint64
}

type instance struct {
	mu      sync.Mutex
	packets uint64
	bytes   uint64
}

func start(logger pluginapi.Logger, desc pluginapi.Descriptor, workerID int) (pluginapi.Instance, error) {
	return &instance{}, nil
}

func (i *instance) PushIntervalStart(number, start uint32) {
	i.mu.Lock()
	i.packets, i.bytes = 0, 0
	i.mu.Unlock()
}

func (i *instance) PushPacket(pkt *core.DecodedPacket, tags *core.Tags) {
	i.mu.Lock()
	i.packets++
	if pkt.Raw != nil {
		i.bytes += uint64(len(pkt.Raw.Data()))
	}
	i.mu.Unlock()
}

func (i *instance) PushIntervalEnd(number, end uint32) (pluginapi.Artifact, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Artifact{Packets: i.packets, Bytes: i.bytes}, nil
}

func (i *instance) Stop() error { return nil }

// Config is trafficstats's decoded active_plugins options entry.
type Config struct {
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type mergeInstance struct {
	logger pluginapi.Logger
	out    *lumberjack.Logger
}

func startMerging(logger pluginapi.Logger, desc pluginapi.Descriptor, workerCount int) (pluginapi.MergeInstance, error) {
	cfg := Config{OutputPath: "trafficstats.jsonl", MaxSizeMB: 100, MaxBackups: 5}
	if desc.Config != nil {
		if err := mapstructure.Decode(desc.Config, &cfg); err != nil {
			return nil, fmt.Errorf("trafficstats: decoding config: %w", err)
		}
	}
	return &mergeInstance{
		logger: logger,
		out: &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		},
	}, nil
}

// record is one merged interval's line in the output file.
type record struct {
	IntervalNumber uint32 `json:"interval_number"`
	IntervalTime   uint32 `json:"interval_time"`
	Packets        uint64 `json:"packets"`
	Bytes          uint64 `json:"bytes"`
	MergedAt       int64  `json:"merged_at"`
}

func (m *mergeInstance) Merge(ctx context.Context, intervalNumber, intervalTime uint32, perWorker []pluginapi.Artifact) error {
	rec := record{IntervalNumber: intervalNumber, IntervalTime: intervalTime, MergedAt: time.Now().Unix()}
	for _, a := range perWorker {
		art, ok := a.(Artifact)
		if !ok {
			continue
		}
		rec.Packets += art.Packets
		rec.Bytes += art.Bytes
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("trafficstats: marshalling interval %d: %w", intervalNumber, err)
	}
	line = append(line, '\n')
	_, err = m.out.Write(line)
	return err
}

func (m *mergeInstance) RotateOutput(ctx context.Context) error {
	return m.out.Rotate()
}

func (m *mergeInstance) Stop(ctx context.Context) error {
	return m.out.Close()
}
