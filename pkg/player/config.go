package player

import (
	"context"
	"time"

	"github.com/ccalmels/opengl-player/pkg/clock"
	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/framequeue"
	"github.com/ccalmels/opengl-player/pkg/metrics"
)

type Config struct {
	QueueCapacity      uint
	HardwarePreference []decoder.HardwareDeviceKind
	RefreshInterval    time.Duration
	BaseTextureUnit    int
	Clock              clock.Clock
	Metrics            *metrics.Metrics
}

func (cfg Config) Options() Options {
	return Options{
		OptionQueueCapacity(cfg.QueueCapacity),
		OptionHardwarePreference(cfg.HardwarePreference),
		OptionRefreshInterval(cfg.RefreshInterval),
		OptionBaseTextureUnit(cfg.BaseTextureUnit),
		OptionClock{Clock: cfg.Clock},
		OptionMetrics{Metrics: cfg.Metrics},
	}
}

type Option interface {
	Apply(cfg *Config)
}

type Options []Option

func (s Options) Config(ctx context.Context) Config {
	cfg := DefaultConfig(ctx)
	s.apply(&cfg)
	return cfg
}

func (s Options) apply(cfg *Config) {
	for _, opt := range s {
		opt.Apply(cfg)
	}
}

var DefaultConfig = func(ctx context.Context) Config {
	return Config{
		QueueCapacity:      framequeue.DefaultCapacity,
		HardwarePreference: decoder.DefaultHardwarePreference,
		RefreshInterval:    time.Second / 60,
	}
}

type OptionQueueCapacity uint

func (s OptionQueueCapacity) Apply(cfg *Config) {
	cfg.QueueCapacity = uint(s)
}

type OptionHardwarePreference []decoder.HardwareDeviceKind

func (s OptionHardwarePreference) Apply(cfg *Config) {
	cfg.HardwarePreference = s
}

// OptionRefreshInterval is the period of the render ticks.
type OptionRefreshInterval time.Duration

func (s OptionRefreshInterval) Apply(cfg *Config) {
	cfg.RefreshInterval = time.Duration(s)
}

type OptionBaseTextureUnit int

func (s OptionBaseTextureUnit) Apply(cfg *Config) {
	cfg.BaseTextureUnit = int(s)
}

type OptionClock struct {
	Clock clock.Clock
}

func (s OptionClock) Apply(cfg *Config) {
	cfg.Clock = s.Clock
}

type OptionMetrics struct {
	Metrics *metrics.Metrics
}

func (s OptionMetrics) Apply(cfg *Config) {
	cfg.Metrics = s.Metrics
}
