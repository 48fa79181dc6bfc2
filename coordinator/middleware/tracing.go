package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) HandleMessage(ctx context.Context, conn protocol.Connection, payload []byte) protocol.Result {
	ctx, span := tm.tracer.Start(ctx, "handle-message", trace.WithAttributes(
		attribute.String("connection_id", conn.ID()),
	))
	defer span.End()

	return tm.svc.HandleMessage(ctx, conn, payload)
}

func (tm *tracing) Disconnect(ctx context.Context, conn protocol.Connection) []protocol.Result {
	ctx, span := tm.tracer.Start(ctx, "disconnect", trace.WithAttributes(
		attribute.String("connection_id", conn.ID()),
	))
	defer span.End()

	return tm.svc.Disconnect(ctx, conn)
}

func (tm *tracing) SessionStatus(ctx context.Context, repoID string) (session.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "session-status", trace.WithAttributes(
		attribute.String("repo_id", repoID),
	))
	defer span.End()

	return tm.svc.SessionStatus(ctx, repoID)
}

func (tm *tracing) ResetSession(ctx context.Context, repoID string) error {
	ctx, span := tm.tracer.Start(ctx, "reset-session", trace.WithAttributes(
		attribute.String("repo_id", repoID),
	))
	defer span.End()

	return tm.svc.ResetSession(ctx, repoID)
}

func (tm *tracing) SetRepoKey(ctx context.Context, repoID, key string) error {
	ctx, span := tm.tracer.Start(ctx, "set-repo-key", trace.WithAttributes(
		attribute.String("repo_id", repoID),
	))
	defer span.End()

	return tm.svc.SetRepoKey(ctx, repoID, key)
}
