package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/datafed/cloudnode/coordinator"
	pkgerrors "github.com/datafed/cloudnode/pkg/errors"
)

func sessionStatusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(repoReq)
		if !ok {
			return sessionStatusResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return sessionStatusResponse{}, err
		}

		snap, err := svc.SessionStatus(ctx, req.repoID)
		if err != nil {
			return sessionStatusResponse{}, err
		}

		return sessionStatusResponse{Snapshot: snap}, nil
	}
}

func resetSessionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(repoReq)
		if !ok {
			return resetResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return resetResponse{}, err
		}

		if err := svc.ResetSession(ctx, req.repoID); err != nil {
			return resetResponse{}, err
		}

		return resetResponse{}, nil
	}
}

func setRepoKeyEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(setKeyReq)
		if !ok {
			return setKeyResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return setKeyResponse{}, err
		}

		if err := svc.SetRepoKey(ctx, req.repoID, req.APIKey); err != nil {
			return setKeyResponse{}, err
		}

		return setKeyResponse{created: true}, nil
	}
}
