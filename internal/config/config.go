// Package config handles global configuration loading using viper: a
// wrapper root key, environment variable overrides via a key replacer,
// viper defaults, and a post-unmarshal validation pass.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/packetloom/tracecore/internal/core"
)

// GlobalConfig is the read-only-after-init configuration tree for a
// whole run.
type GlobalConfig struct {
	WorkerCount           uint32         `mapstructure:"worker_count"`
	IntervalSeconds       uint32         `mapstructure:"interval_seconds"`
	RotateEveryNIntervals uint32         `mapstructure:"rotate_every_n_intervals"`
	BoundStartEpoch       uint32         `mapstructure:"bound_start_epoch"`
	BoundEndEpoch         uint32         `mapstructure:"bound_end_epoch"`
	InputSources          []SourceConfig `mapstructure:"input_sources"`

	RemoveSpoofed  bool   `mapstructure:"remove_spoofed"`
	RemoveErratic  bool   `mapstructure:"remove_erratic"`
	RemoveUnrouted bool   `mapstructure:"remove_unrouted"`
	TreeFilterName string `mapstructure:"tree_filter_name"`
	BPFExpression  string `mapstructure:"bpf_expression"`

	Tagging TaggingConfig `mapstructure:"tagging"`

	ActivePlugins []PluginDescriptorConfig `mapstructure:"active_plugins"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SourceConfig names one entry in the ordered input_sources sequence.
type SourceConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"` // "live" | "file"
	Device   string `mapstructure:"device"`
	FilePath string `mapstructure:"file_path"`

	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
	FanoutID     uint16 `mapstructure:"fanout_id"`
}

// ProviderConfig is one of the three independent tagging sub-trees.
type ProviderConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Options map[string]any `mapstructure:"options"`
}

// TaggingConfig holds the top-level tagging enable flag plus its three
// independent provider sub-trees.
type TaggingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	PrefixASN    ProviderConfig `mapstructure:"prefix_asn"`
	GeoPrimary   ProviderConfig `mapstructure:"geo_primary"`
	GeoSecondary ProviderConfig `mapstructure:"geo_secondary"`
}

// LogConfig drives the logmode-based logger in internal/log.
type LogConfig struct {
	Mode       string `mapstructure:"mode"` // stderr|terminal|file|syslog|disabled
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure
// `tracecore: ...`.
type configRoot struct {
	Tracecore GlobalConfig `mapstructure:"tracecore"`
}

// Load reads and validates configuration from path. Environment
// variables override file values using a TRACECORE_ prefix derived
// from the "tracecore." key prefix (e.g. "tracecore.worker_count" ->
// "TRACECORE_WORKER_COUNT").
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config file: %v", core.ErrConfigInvalid, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling config: %v", core.ErrConfigInvalid, err)
	}
	cfg := root.Tracecore

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracecore.worker_count", 1)
	v.SetDefault("tracecore.rotate_every_n_intervals", 0)

	v.SetDefault("tracecore.log.mode", "stderr")
	v.SetDefault("tracecore.log.max_size_mb", 100)
	v.SetDefault("tracecore.log.max_backups", 5)
	v.SetDefault("tracecore.log.max_age_days", 30)
	v.SetDefault("tracecore.log.compress", true)

	v.SetDefault("tracecore.metrics.enabled", true)
	v.SetDefault("tracecore.metrics.listen", ":9091")
	v.SetDefault("tracecore.metrics.path", "/metrics")
}

// Validate checks the configuration before a run starts.
func (cfg *GlobalConfig) Validate() error {
	if cfg.WorkerCount == 0 {
		return fmt.Errorf("%w: worker_count must be positive", core.ErrConfigInvalid)
	}
	if cfg.IntervalSeconds == 0 {
		return fmt.Errorf("%w: interval_seconds must be positive", core.ErrConfigInvalid)
	}
	if len(cfg.InputSources) == 0 {
		return fmt.Errorf("%w: at least one input_sources entry is required", core.ErrConfigInvalid)
	}
	for i, src := range cfg.InputSources {
		switch src.Type {
		case "live":
			if src.Device == "" {
				return fmt.Errorf("%w: input_sources[%d]: device is required for type=live", core.ErrConfigInvalid, i)
			}
		case "file":
			if src.FilePath == "" {
				return fmt.Errorf("%w: input_sources[%d]: file_path is required for type=file", core.ErrConfigInvalid, i)
			}
		default:
			return fmt.Errorf("%w: input_sources[%d]: unrecognized type %q", core.ErrConfigInvalid, i, src.Type)
		}
	}
	if cfg.BoundStartEpoch != 0 && cfg.BoundEndEpoch != 0 && cfg.BoundStartEpoch >= cfg.BoundEndEpoch {
		return fmt.Errorf("%w: bound_start_epoch must precede bound_end_epoch", core.ErrConfigInvalid)
	}
	switch cfg.Log.Mode {
	case "stderr", "terminal", "file", "syslog", "disabled", "off", "none", "":
	default:
		return fmt.Errorf("%w: unrecognized log mode %q", core.ErrConfigInvalid, cfg.Log.Mode)
	}
	return nil
}
