package api

import (
	"net/http"

	"github.com/datafed/cloudnode/pkg/api"
	"github.com/datafed/cloudnode/pkg/session"
)

var (
	_ api.Response = (*sessionStatusResponse)(nil)
	_ api.Response = (*resetResponse)(nil)
	_ api.Response = (*setKeyResponse)(nil)
)

type sessionStatusResponse struct {
	session.Snapshot
}

func (r sessionStatusResponse) Code() int                  { return http.StatusOK }
func (r sessionStatusResponse) Headers() map[string]string { return map[string]string{} }
func (r sessionStatusResponse) Empty() bool                { return false }

type resetResponse struct{}

func (r resetResponse) Code() int                  { return http.StatusOK }
func (r resetResponse) Headers() map[string]string { return map[string]string{} }
func (r resetResponse) Empty() bool                { return true }

type setKeyResponse struct {
	created bool
}

func (r setKeyResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r setKeyResponse) Headers() map[string]string { return map[string]string{} }
func (r setKeyResponse) Empty() bool                { return true }
