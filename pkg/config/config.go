package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/framequeue"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "OPENGL_PLAYER"

	// EnvShadersPath overrides the directory the shader programs are
	// loaded from.
	EnvShadersPath = "VC_SHADERS_PATH"
)

const (
	keyLogLevel       = "log_level"
	keyQueueCapacity  = "queue_capacity"
	keyHWAccel        = "hwaccel"
	keyHardwareDevice = "hardware_device"
	keyRefreshRate    = "refresh_rate"
	keyPlaneAlignment = "plane_alignment"
	keyThreadCount    = "thread_count"
	keyWindowWidth    = "window_width"
	keyWindowHeight   = "window_height"
	keyMetricsAddr    = "metrics_addr"
	keySentryDSN      = "sentry_dsn"
	keyShadersPath    = "shaders_path"
)

// Config is the runtime configuration; it comes only from the environment.
type Config struct {
	LogLevel       string  `mapstructure:"log_level"`
	QueueCapacity  uint    `mapstructure:"queue_capacity"`
	HWAccel        string  `mapstructure:"hwaccel"`
	HardwareDevice string  `mapstructure:"hardware_device"`
	RefreshRate    float64 `mapstructure:"refresh_rate"`
	PlaneAlignment int     `mapstructure:"plane_alignment"`
	ThreadCount    int     `mapstructure:"thread_count"`
	WindowWidth    int     `mapstructure:"window_width"`
	WindowHeight   int     `mapstructure:"window_height"`
	MetricsAddr    string  `mapstructure:"metrics_addr"`
	SentryDSN      string  `mapstructure:"sentry_dsn"`
	ShadersPath    string  `mapstructure:"shaders_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyLogLevel, logger.LevelInfo.String())
	v.SetDefault(keyQueueCapacity, framequeue.DefaultCapacity)
	v.SetDefault(keyHWAccel, "vaapi,cuda")
	v.SetDefault(keyHardwareDevice, "")
	v.SetDefault(keyRefreshRate, 60.0)
	v.SetDefault(keyPlaneAlignment, 1)
	v.SetDefault(keyThreadCount, 0)
	v.SetDefault(keyWindowWidth, 800)
	v.SetDefault(keyWindowHeight, 600)
	v.SetDefault(keyMetricsAddr, "")
	v.SetDefault(keySentryDSN, "")
	v.SetDefault(keyShadersPath, "")
}

// New returns a viper instance reading the OPENGL_PLAYER_* variables,
// plus VC_SHADERS_PATH for the shaders.
func New() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv(keyShadersPath, EnvShadersPath); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", EnvShadersPath, err)
	}
	return v, nil
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	v, err := New()
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse the configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if _, err := cfg.ParseLogLevel(); err != nil {
		return err
	}
	if _, err := cfg.HardwarePreference(); err != nil {
		return err
	}
	if cfg.RefreshRate <= 0 {
		return fmt.Errorf("the refresh rate must be positive, but it is %v", cfg.RefreshRate)
	}
	if cfg.PlaneAlignment < 1 {
		return fmt.Errorf("the plane alignment must be at least 1, but it is %d", cfg.PlaneAlignment)
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		return fmt.Errorf("invalid window size %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	return nil
}

func (cfg Config) ParseLogLevel() (logger.Level, error) {
	var level logger.Level
	if err := level.Set(cfg.LogLevel); err != nil {
		return logger.LevelUndefined, fmt.Errorf("unable to parse log level '%s': %w", cfg.LogLevel, err)
	}
	return level, nil
}

func (cfg Config) HardwarePreference() ([]decoder.HardwareDeviceKind, error) {
	return decoder.ParseHardwarePreference(cfg.HWAccel)
}

func (cfg Config) RefreshInterval() time.Duration {
	return time.Duration(float64(time.Second) / cfg.RefreshRate)
}
