// Package kafkareport is a reporter plugin that publishes one JSON
// interval summary per completed barrier to Kafka. Per-worker
// instances only count traffic; all Kafka I/O happens on the merger's
// single MergeInstance once an interval's barrier completes, never per
// packet.
package kafkareport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/plugins"
)

// Name is the active_plugins descriptor name this plugin registers under.
const Name = "kafkareport"

func init() {
	plugins.Register(Name, start, startMerging)
}

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Config holds the Kafka writer options, decoded from the
// active_plugins descriptor's options map.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
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

// decodeConfig parses raw, applying defaults for every field raw
// leaves unset, and validates the two required fields. A
// StringToTimeDurationHookFunc lets batch_timeout be written as
// "200ms" in YAML, matching viper's own duration handling elsewhere in
// this module.
func decodeConfig(raw map[string]any) (Config, error) {
	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if raw == nil {
		return cfg, fmt.Errorf("kafkareport: config is required")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return cfg, fmt.Errorf("kafkareport: building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("kafkareport: decoding config: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("kafkareport: brokers is required")
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("kafkareport: topic is required")
	}
	switch cfg.Compression {
	case "none", "", "gzip", "snappy", "lz4":
	default:
		return cfg, fmt.Errorf("kafkareport: invalid compression type: %s", cfg.Compression)
	}
	return cfg, nil
}

type mergeInstance struct {
	logger pluginapi.Logger
	writer *kafka.Writer
	config Config
}

func startMerging(logger pluginapi.Logger, desc pluginapi.Descriptor, workerCount int) (pluginapi.MergeInstance, error) {
	cfg, err := decodeConfig(desc.Config)
	if err != nil {
		return nil, err
	}

	writerCfg := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}
	switch cfg.Compression {
	case "gzip":
		writerCfg.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerCfg.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerCfg.CompressionCodec = compress.Lz4.Codec()
	}

	return &mergeInstance{
		logger: logger,
		writer: kafka.NewWriter(writerCfg),
		config: cfg,
	}, nil
}

// summary is the one JSON message published per completed barrier.
type summary struct {
	IntervalNumber uint32 `json:"interval_number"`
	IntervalTime   uint32 `json:"interval_time"`
	Packets        uint64 `json:"packets"`
	Bytes          uint64 `json:"bytes"`
}

func (m *mergeInstance) Merge(ctx context.Context, intervalNumber, intervalTime uint32, perWorker []pluginapi.Artifact) error {
	s := summary{IntervalNumber: intervalNumber, IntervalTime: intervalTime}
	for _, a := range perWorker {
		art, ok := a.(Artifact)
		if !ok {
			continue
		}
		s.Packets += art.Packets
		s.Bytes += art.Bytes
	}
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("kafkareport: marshalling interval %d: %w", intervalNumber, err)
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("interval-%d", intervalNumber)),
		Value: value,
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkareport: publishing interval %d: %w", intervalNumber, err)
	}
	return nil
}

func (m *mergeInstance) RotateOutput(ctx context.Context) error {
	m.logger.Infof("kafkareport: rotation boundary reached for topic %s", m.config.Topic)
	return nil
}

func (m *mergeInstance) Stop(ctx context.Context) error {
	return m.writer.Close()
}
