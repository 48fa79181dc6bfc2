package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) HandleMessage(ctx context.Context, conn protocol.Connection, payload []byte) protocol.Result {
	defer func(begin time.Time) {
		mm.counter.With("method", "handle-message").Add(1)
		mm.latency.With("method", "handle-message").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.HandleMessage(ctx, conn, payload)
}

func (mm *metricsMiddleware) Disconnect(ctx context.Context, conn protocol.Connection) []protocol.Result {
	defer func(begin time.Time) {
		mm.counter.With("method", "disconnect").Add(1)
		mm.latency.With("method", "disconnect").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Disconnect(ctx, conn)
}

func (mm *metricsMiddleware) SessionStatus(ctx context.Context, repoID string) (session.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "session-status").Add(1)
		mm.latency.With("method", "session-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SessionStatus(ctx, repoID)
}

func (mm *metricsMiddleware) ResetSession(ctx context.Context, repoID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reset-session").Add(1)
		mm.latency.With("method", "reset-session").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ResetSession(ctx, repoID)
}

func (mm *metricsMiddleware) SetRepoKey(ctx context.Context, repoID, key string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "set-repo-key").Add(1)
		mm.latency.With("method", "set-repo-key").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SetRepoKey(ctx, repoID, key)
}
