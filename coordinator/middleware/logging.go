package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) HandleMessage(ctx context.Context, conn protocol.Connection, payload []byte) (res protocol.Result) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("connection_id", conn.ID()),
			slog.Int("payload_size", len(payload)),
		}
		if res.Error {
			lm.logger.Warn("Handle message failed", args...)

			return
		}
		lm.logger.Info("Handle message completed successfully", args...)
	}(time.Now())

	return lm.svc.HandleMessage(ctx, conn, payload)
}

func (lm *loggingMiddleware) Disconnect(ctx context.Context, conn protocol.Connection) (induced []protocol.Result) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("connection_id", conn.ID()),
			slog.Int("induced_events", len(induced)),
		}
		lm.logger.Info("Disconnect completed successfully", args...)
	}(time.Now())

	return lm.svc.Disconnect(ctx, conn)
}

func (lm *loggingMiddleware) SessionStatus(ctx context.Context, repoID string) (resp session.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("repo",
				slog.String("id", repoID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Session status failed", args...)

			return
		}
		lm.logger.Info("Session status completed successfully", args...)
	}(time.Now())

	return lm.svc.SessionStatus(ctx, repoID)
}

func (lm *loggingMiddleware) ResetSession(ctx context.Context, repoID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("repo",
				slog.String("id", repoID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reset session failed", args...)

			return
		}
		lm.logger.Info("Reset session completed successfully", args...)
	}(time.Now())

	return lm.svc.ResetSession(ctx, repoID)
}

func (lm *loggingMiddleware) SetRepoKey(ctx context.Context, repoID, key string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("repo",
				slog.String("id", repoID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set repo key failed", args...)

			return
		}
		lm.logger.Info("Set repo key completed successfully", args...)
	}(time.Now())

	return lm.svc.SetRepoKey(ctx, repoID, key)
}
