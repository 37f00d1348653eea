package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asticode/go-astiav"
	"github.com/ccalmels/opengl-player/pkg/astiavlogger"
	"github.com/ccalmels/opengl-player/pkg/decoder/libav"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

func initRuntime(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	l := logger.FromCtx(ctx)

	astiav.SetLogLevel(libav.LogLevelToAstiav(l.Level()))
	astiav.SetLogCallback(astiavlogger.Callback(l))

	ctx, cancelFn := context.WithCancel(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case sig := <-c:
			logger.Infof(ctx, "received signal %v", sig)
			cancelFn()
		}
	})

	return ctx, func() {
		defer belt.Flush(ctx)
		signal.Stop(c)
		cancelFn()
	}
}
