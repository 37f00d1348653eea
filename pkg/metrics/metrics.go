package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaionaro-go/observability"
)

const namespace = "opengl_player"

// Metrics is the set of the pipeline counters. A nil *Metrics is valid and
// discards everything.
type Metrics struct {
	framesDecoded   *prometheus.CounterVec
	framesPresented prometheus.Counter
	framesDropped   prometheus.Counter
	framesSkipped   prometheus.Counter
	queueLength     prometheus.Gauge
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Frames produced by the decoder.",
		}, []string{"pixel_format"}),
		framesPresented: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_presented_total",
			Help:      "Frames uploaded and presented on the screen.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded because a later frame was already due.",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Frames which could not be uploaded to the GPU.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Decoded frames waiting to be presented.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.framesDecoded,
		m.framesPresented,
		m.framesDropped,
		m.framesSkipped,
		m.queueLength,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("unable to register a collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) FrameDecoded(pixelFormat string) {
	if m == nil {
		return
	}
	m.framesDecoded.WithLabelValues(pixelFormat).Inc()
}

func (m *Metrics) FramePresented() {
	if m == nil {
		return
	}
	m.framesPresented.Inc()
}

func (m *Metrics) FramesDropped(count uint64) {
	if m == nil || count == 0 {
		return
	}
	m.framesDropped.Add(float64(count))
}

func (m *Metrics) FrameSkipped() {
	if m == nil {
		return
	}
	m.framesSkipped.Inc()
}

func (m *Metrics) SetQueueLength(length int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(length))
}

// Serve exposes the gatherer on "/metrics" until ctx is cancelled.
func Serve(
	ctx context.Context,
	addr string,
	gatherer prometheus.Gatherer,
) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen '%s': %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf(ctx, "unable to shutdown the metrics server: %v", err)
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		logger.Infof(ctx, "serving metrics at http://%s/metrics", listener.Addr())
		err := srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "the metrics server failed: %v", err)
		}
	})
	return listener.Addr(), nil
}
