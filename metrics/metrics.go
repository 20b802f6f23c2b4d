// Package metrics defines mechanisms for instrumentation of the
// message-passing runtime.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"

	"github.com/oasislabs/protorpc/errors"
	"github.com/oasislabs/protorpc/log"
)

// StartInstrumentation starts a background worker pushing the default
// Prometheus registry to cfg's push gateway every cfg.PushInterval,
// until ctx is cancelled. It is a no-op (returns immediately, nothing
// to stop) unless cfg.Mode is "push".
func StartInstrumentation(ctx context.Context, cfg MetricsConfig, loggingLevel string) {
	if cfg.Mode != metricsModePush {
		return
	}

	p := newInstrumentationTracker(cfg, loggingLevel)
	go p.startWorker(ctx, cfg.PushInterval)
}

// An instrumentation tracker is used to push metrics to Prometheus.
type instrumentationTracker struct {
	// The pusher which pushes updates to Prometheus.
	pusher *push.Pusher

	// A logger, for logging.
	logger log.Logger
}

func newInstrumentationTracker(cfg MetricsConfig, loggingLevel string) *instrumentationTracker {
	lvl, err := logrus.ParseLevel(loggingLevel)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger := log.NewLogrus(log.LogrusLoggerProperties{
		Level:  lvl,
		Output: os.Stdout,
	}).ForClass(cfg.PushInstanceLabel, "Instrumentation")

	pusher := push.New(cfg.PushAddr, cfg.PushJobName).
		Grouping("instance", cfg.PushInstanceLabel).
		Gatherer(prometheus.DefaultGatherer)

	return &instrumentationTracker{
		pusher: pusher,
		logger: logger,
	}
}

func (i *instrumentationTracker) startWorker(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C:
			if err := i.pusher.Push(); err != nil {
				i.logger.Error(ctx, "unable to push to prometheus", errors.New(errors.ErrMetricsPushFailed, err))
			}
		}
	}
}
