package config

import (
	"testing"
	"time"

	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, uint(3), cfg.QueueCapacity)
	require.Equal(t, 800, cfg.WindowWidth)
	require.Equal(t, 600, cfg.WindowHeight)
	require.Empty(t, cfg.ShadersPath)

	level, err := cfg.ParseLogLevel()
	require.NoError(t, err)
	require.Equal(t, logger.LevelInfo, level)

	hw, err := cfg.HardwarePreference()
	require.NoError(t, err)
	require.Equal(t, decoder.DefaultHardwarePreference, hw)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("VC_SHADERS_PATH", "/opt/shaders")
	t.Setenv("OPENGL_PLAYER_QUEUE_CAPACITY", "5")
	t.Setenv("OPENGL_PLAYER_HWACCEL", "none")
	t.Setenv("OPENGL_PLAYER_REFRESH_RATE", "50")
	t.Setenv("OPENGL_PLAYER_LOG_LEVEL", "trace")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/opt/shaders", cfg.ShadersPath)
	require.Equal(t, uint(5), cfg.QueueCapacity)
	require.Equal(t, 20*time.Millisecond, cfg.RefreshInterval())

	hw, err := cfg.HardwarePreference()
	require.NoError(t, err)
	require.Empty(t, hw)

	level, err := cfg.ParseLogLevel()
	require.NoError(t, err)
	require.Equal(t, logger.LevelTrace, level)
}

func TestInvalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"hwaccel":      {"OPENGL_PLAYER_HWACCEL", "vdpau"},
		"log_level":    {"OPENGL_PLAYER_LOG_LEVEL", "loud"},
		"refresh_rate": {"OPENGL_PLAYER_REFRESH_RATE", "0"},
		"alignment":    {"OPENGL_PLAYER_PLANE_ALIGNMENT", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}
