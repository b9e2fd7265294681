// Package supervisor iterates configured input sources sequentially,
// building and tearing down the worker+merger topology for each while
// keeping every Worker's local state (plugin instances, filters,
// tagger) alive across the source boundary: the same worker value is
// rebound to the next source's fresh merger channel rather than
// reallocated.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/packetloom/tracecore/internal/config"
	"github.com/packetloom/tracecore/internal/filter"
	"github.com/packetloom/tracecore/internal/metrics"
	"github.com/packetloom/tracecore/internal/pluginapi"
	"github.com/packetloom/tracecore/internal/tagger"
	"github.com/packetloom/tracecore/internal/worker"
)

// Supervisor owns the fixed-size worker pool and drives it across every
// configured input source.
type Supervisor struct {
	cfg    *config.GlobalConfig
	logger pluginapi.Logger
	halt   *haltToken
}

// New constructs a Supervisor. cfg must already have passed Validate.
func New(cfg *config.GlobalConfig, logger pluginapi.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, logger: logger, halt: newHaltToken()}
}

// Run iterates input_sources sequentially until they are exhausted or a
// shutdown signal arrives. SIGINT/SIGTERM request a graceful halt
// before the next source starts; SIGPIPE is ignored.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Infof("supervisor: received %s, requesting graceful shutdown", sig)
			s.halt.Request()
			cancel()
		case <-runCtx.Done():
		}
	}()

	workers := make([]*worker.Worker, s.cfg.WorkerCount)
	for i := range workers {
		workers[i] = worker.New(s.workerConfig(i), s.logger, nil)
		if err := workers[i].Start(); err != nil {
			return err
		}
	}

	for i, src := range s.cfg.InputSources {
		if s.halt.Requested() {
			s.logger.Infof("supervisor: halt requested, not starting remaining input sources")
			break
		}
		isLast := i == len(s.cfg.InputSources)-1

		metrics.SourceStatus.WithLabelValues(src.Name).Set(metrics.SourceStatusPending)
		if err := s.runSource(runCtx, src, workers, isLast); err != nil {
			s.logger.Errorf("supervisor: source %q failed: %v", src.Name, err)
			metrics.SourceStatus.WithLabelValues(src.Name).Set(metrics.SourceStatusError)
			continue
		}
	}
	return nil
}

// workerConfig builds the per-worker slice of global configuration,
// identical for every worker except the id.
func (s *Supervisor) workerConfig(id int) worker.Config {
	descriptors := make([]pluginapi.Descriptor, len(s.cfg.ActivePlugins))
	for i, pd := range s.cfg.ActivePlugins {
		descriptors[i] = pd.ToDescriptor()
	}
	return worker.Config{
		WorkerID:              id,
		IntervalSeconds:       s.cfg.IntervalSeconds,
		RotateEveryNIntervals: s.cfg.RotateEveryNIntervals,
		BoundStartEpoch:       s.cfg.BoundStartEpoch,
		BoundEndEpoch:         s.cfg.BoundEndEpoch,
		Plugins:               descriptors,
		Filters: filter.Config{
			RemoveSpoofed:  s.cfg.RemoveSpoofed,
			RemoveErratic:  s.cfg.RemoveErratic,
			RemoveUnrouted: s.cfg.RemoveUnrouted,
			TreeFilterName: s.cfg.TreeFilterName,
		},
		Tagger: tagger.Config{
			Enabled: s.cfg.Tagging.Enabled,
			PrefixASN: tagger.ProviderConfig{
				Enabled: s.cfg.Tagging.PrefixASN.Enabled,
				Options: s.cfg.Tagging.PrefixASN.Options,
			},
			GeoPrimary: tagger.ProviderConfig{
				Enabled: s.cfg.Tagging.GeoPrimary.Enabled,
				Options: s.cfg.Tagging.GeoPrimary.Options,
			},
			GeoSecondary: tagger.ProviderConfig{
				Enabled: s.cfg.Tagging.GeoSecondary.Enabled,
				Options: s.cfg.Tagging.GeoSecondary.Options,
			},
		},
	}
}
