package api

import (
	pkgerrors "github.com/datafed/cloudnode/pkg/errors"
)

type repoReq struct {
	repoID string
}

func (r *repoReq) validate() error {
	if r.repoID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return nil
}

type setKeyReq struct {
	repoID string
	APIKey string `json:"api_key"`
}

func (r *setKeyReq) validate() error {
	if r.repoID == "" || r.APIKey == "" {
		return pkgerrors.ErrEmptyKey
	}

	return nil
}
