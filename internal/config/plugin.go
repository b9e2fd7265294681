package config

import "github.com/packetloom/tracecore/internal/pluginapi"

// PluginDescriptorConfig is one entry in the ordered active_plugins
// sequence.
type PluginDescriptorConfig struct {
	Name    string         `mapstructure:"name"`
	Options map[string]any `mapstructure:"options"`
}

// ToDescriptor converts the config-level descriptor into the
// pluginapi.Descriptor the registry's factories consume.
func (p PluginDescriptorConfig) ToDescriptor() pluginapi.Descriptor {
	return pluginapi.Descriptor{Name: p.Name, Config: p.Options}
}
