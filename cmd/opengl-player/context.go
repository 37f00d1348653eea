package main

import (
	"context"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	errmonsentry "github.com/facebookincubator/go-belt/tool/experimental/errmon/implementation/sentry"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const programName = "opengl-player"

func getContext(
	level logger.Level,
	sentryDSN string,
) context.Context {
	ctx := context.Background()

	ll := xlogrus.DefaultLogrusLogger()
	l := xlogrus.New(ll).WithLevel(level)
	logrus.SetLevel(xlogrus.LevelToLogrus(l.Level()))

	if sentryDSN != "" {
		l.Infof("setting up Sentry at DSN '%s'", sentryDSN)
		sentryClient, err := sentry.NewClient(sentry.ClientOptions{
			Dsn: sentryDSN,
		})
		if err != nil {
			l.Fatal(err)
		}
		ctx = errmon.CtxWithErrorMonitor(ctx, errmonsentry.New(sentryClient))
	}

	ctx = logger.CtxWithLogger(ctx, l)

	ctx = belt.WithField(ctx, "program", programName)
	ctx = belt.WithField(ctx, "pid", os.Getpid())
	ctx = belt.WithField(ctx, "session", uuid.NewString())

	l = logger.FromCtx(ctx)
	logger.Default = func() logger.Logger {
		return l
	}

	return ctx
}
