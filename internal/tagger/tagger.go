// Package tagger implements the optional packet-annotation engine. It
// mirrors the three independent provider sub-trees in the global
// configuration: a prefix-to-ASN mapping and two independent
// geolocation providers. No geo/ASN database is bundled; each provider
// runs over a stub lookup table, so the worker's tagging branch is
// exercised end to end without shipping proprietary data files.
package tagger

import "github.com/packetloom/tracecore/internal/core"

// Tagger annotates a decoded packet, returning nil if none of its
// enabled providers produced a tag.
type Tagger interface {
	Tag(pkt *core.DecodedPacket) (*core.Tags, error)
}

// ProviderConfig is one of the three independently-enabled provider
// sub-trees (prefix-to-ASN, geo provider A, geo provider B).
type ProviderConfig struct {
	Enabled bool
	Options map[string]any
}

// Config mirrors the global tagging_enabled flag plus the three
// provider sub-trees.
type Config struct {
	Enabled      bool
	PrefixASN    ProviderConfig
	GeoPrimary   ProviderConfig
	GeoSecondary ProviderConfig
}

type provider interface {
	apply(pkt *core.DecodedPacket, tags *core.Tags) error
}

// engine runs every enabled provider against a packet and reports tags
// only if at least one provider contributed something.
type engine struct {
	providers []provider
}

// New builds a Tagger from cfg, or nil if tagging_enabled is false or no
// provider is individually enabled.
func New(cfg Config) Tagger {
	if !cfg.Enabled {
		return nil
	}
	var providers []provider
	if cfg.PrefixASN.Enabled {
		providers = append(providers, prefixASNProvider{table: staticASNTable})
	}
	if cfg.GeoPrimary.Enabled {
		providers = append(providers, geoProvider{name: "primary", table: staticGeoTable})
	}
	if cfg.GeoSecondary.Enabled {
		providers = append(providers, geoProvider{name: "secondary", table: staticGeoTable})
	}
	if len(providers) == 0 {
		return nil
	}
	return &engine{providers: providers}
}

func (e *engine) Tag(pkt *core.DecodedPacket) (*core.Tags, error) {
	tags := &core.Tags{}
	var firstErr error
	for _, p := range e.providers {
		if err := p.apply(pkt, tags); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if *tags == (core.Tags{}) {
		return nil, firstErr
	}
	return tags, firstErr
}
