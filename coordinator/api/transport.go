package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/pkg/api"
	pkgerrors "github.com/datafed/cloudnode/pkg/errors"
	"github.com/datafed/cloudnode/pkg/storage"
)

// MakeHandler wires the session side-channel API, the artifact store and the
// node socket onto a single router.
func MakeHandler(svc coordinator.Service, ws http.Handler, artifacts storage.Storage, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(loggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/sessions/{repoID}", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			sessionStatusEndpoint(svc),
			decodeRepoReq,
			api.EncodeResponse,
			opts...,
		), "session-status").ServeHTTP)
		r.Post("/reset", otelhttp.NewHandler(kithttp.NewServer(
			resetSessionEndpoint(svc),
			decodeRepoReq,
			api.EncodeResponse,
			opts...,
		), "reset-session").ServeHTTP)
	})

	mux.Put("/repos/{repoID}/key", otelhttp.NewHandler(kithttp.NewServer(
		setRepoKeyEndpoint(svc),
		decodeSetKeyReq,
		api.EncodeResponse,
		opts...,
	), "set-repo-key").ServeHTTP)

	mux.Get("/artifacts/{repoID}/{sessionID}/{round}", serveArtifact(artifacts, logger))

	mux.Handle("/", ws)
	mux.Get("/health", health(instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeRepoReq(_ context.Context, r *http.Request) (any, error) {
	return repoReq{
		repoID: chi.URLParam(r, "repoID"),
	}, nil
}

func decodeSetKeyReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, pkgerrors.ErrInvalidData
	}

	var req setKeyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(pkgerrors.ErrInvalidData, err)
	}
	req.repoID = chi.URLParam(r, "repoID")

	return req, nil
}

func serveArtifact(artifacts storage.Storage, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		round, err := strconv.Atoi(chi.URLParam(r, "round"))
		if err != nil {
			api.EncodeError(r.Context(), pkgerrors.ErrInvalidData, w)

			return
		}

		key := coordinator.ArtifactKey(chi.URLParam(r, "repoID"), chi.URLParam(r, "sessionID"), round)
		data, err := artifacts.Get(r.Context(), key)
		if err != nil {
			api.EncodeError(r.Context(), err, w)

			return
		}

		w.Header().Set("Content-Type", api.ContentType)
		if _, err := w.Write(data); err != nil {
			logger.Warn("failed to write artifact", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func health(instanceID string) http.HandlerFunc {
	buildTime := time.Now().UTC().Format(time.RFC3339)

	return func(w http.ResponseWriter, r *http.Request) {
		res := map[string]string{
			"status":      "pass",
			"service":     "cloudnode",
			"instance_id": instanceID,
			"build_time":  buildTime,
		}
		w.Header().Set("Content-Type", api.ContentType)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(res)
	}
}

func loggingErrorEncoder(logger *slog.Logger, enc kithttp.ErrorEncoder) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		if err != nil {
			logger.Warn(fmt.Sprintf("request failed: %s", err))
		}
		enc(ctx, err, w)
	}
}
