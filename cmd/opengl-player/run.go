package main

import (
	"context"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/ccalmels/opengl-player/pkg/buildvars"
	"github.com/ccalmels/opengl-player/pkg/config"
	"github.com/ccalmels/opengl-player/pkg/decoder/libav"
	"github.com/ccalmels/opengl-player/pkg/gpu/softgpu"
	"github.com/ccalmels/opengl-player/pkg/metrics"
	"github.com/ccalmels/opengl-player/pkg/player"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/ccalmels/opengl-player/pkg/window"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaionaro-go/observability"
)

func run(source string) {
	cfg, cfgErr := config.Load()
	level, err := cfg.ParseLogLevel()
	if cfgErr != nil || err != nil {
		level = logger.LevelInfo
	}
	ctx := getContext(level, cfg.SentryDSN)
	assertNoError(ctx, cfgErr)
	logBuildInfo(ctx)

	ctx, closeRuntime := initRuntime(ctx)
	defer closeRuntime()

	hwPreference, err := cfg.HardwarePreference()
	assertNoError(ctx, err)

	shadersFS, err := shader.Resolve(ctx, cfg.ShadersPath, buildvars.ShadersPath)
	assertNoError(ctx, err)
	programs, err := shader.Load(ctx, shadersFS)
	assertNoError(ctx, err)

	m, err := metrics.New(prometheus.DefaultRegisterer)
	assertNoError(ctx, err)
	if cfg.MetricsAddr != "" {
		_, err := metrics.Serve(ctx, cfg.MetricsAddr, prometheus.DefaultGatherer)
		assertNoError(ctx, err)
	}

	input, err := libav.NewInputFromURL(ctx, source, libav.InputConfig{
		ThreadCount:    cfg.ThreadCount,
		PlaneAlignment: cfg.PlaneAlignment,
		HardwareDevice: cfg.HardwareDevice,
	})
	assertNoError(ctx, err)
	defer func() {
		if err := input.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the input: %v", err)
		}
	}()

	app := fyneapp.New()
	win := window.New(app, programName, cfg.WindowWidth, cfg.WindowHeight)
	gpuCtx, err := softgpu.New(softgpu.Config{
		Width:  cfg.WindowWidth,
		Height: cfg.WindowHeight,
	}, win)
	assertNoError(ctx, err)

	p := player.New(
		ctx,
		input,
		gpuCtx,
		programs,
		player.OptionQueueCapacity(cfg.QueueCapacity),
		player.OptionHardwarePreference(hwPreference),
		player.OptionRefreshInterval(cfg.RefreshInterval()),
		player.OptionMetrics{Metrics: m},
	)

	playerDone := make(chan error, 1)
	observability.Go(ctx, func(ctx context.Context) {
		defer app.Quit()
		playerDone <- p.Run(ctx)
	})
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			app.Quit()
		case <-win.ClosedChan():
			logger.Infof(ctx, "the window is closed")
		}
	})

	win.Show()
	app.Run()
	closeRuntime()

	err = <-playerDone
	stats := p.Stats()
	logger.Infof(ctx, "presented %d frames (dropped: %d, skipped: %d)", stats.Presented, stats.Dropped, stats.Skipped)
	if producerErr := p.ProducerError(); producerErr != nil {
		logger.Warnf(ctx, "the decoding ended with an error: %v", producerErr)
	}
	assertNoError(ctx, err)
}
