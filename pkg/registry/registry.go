// Package registry tracks which connections are registered under which role
// for each repo. It is a pure connection table: session-state consequences of
// churn are handled by the coordinator.
package registry

import (
	"errors"
	"sync"

	"github.com/datafed/cloudnode/pkg/protocol"
)

var (
	ErrDuplicateConnection = errors.New("connection is already registered for this repo")
	ErrDashboardSlotFull   = errors.New("only one dashboard connection allowed per repo")
	ErrInvalidRole         = errors.New("role must be LIBRARY or DASHBOARD")
)

type entry struct {
	libraries  []protocol.Connection
	dashboards []protocol.Connection
}

// Membership reports where a connection is registered.
type Membership struct {
	RepoID string
	Role   protocol.Role
}

type Registry struct {
	mu    sync.RWMutex
	repos map[string]*entry
}

func New() *Registry {
	return &Registry{
		repos: make(map[string]*entry),
	}
}

// Register adds conn under the given role for repoID. A connection may appear
// at most once across both role lists of a repo, and at most one dashboard
// connection is allowed per repo.
func (r *Registry) Register(conn protocol.Connection, role protocol.Role, repoID string) error {
	if role != protocol.RoleLibrary && role != protocol.RoleDashboard {
		return ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.repos[repoID]
	if !ok {
		e = &entry{}
		r.repos[repoID] = e
	}

	if contains(e.libraries, conn) || contains(e.dashboards, conn) {
		return ErrDuplicateConnection
	}

	switch role {
	case protocol.RoleDashboard:
		if len(e.dashboards) > 0 {
			return ErrDashboardSlotFull
		}
		e.dashboards = append(e.dashboards, conn)
	case protocol.RoleLibrary:
		e.libraries = append(e.libraries, conn)
	}

	return nil
}

// Memberships scans all repos and reports where conn is registered. Removal
// is done per repo via UnregisterFrom so each repo's session-state
// consequence can run in the same critical section as the registry change.
func (r *Registry) Memberships(conn protocol.Connection) []Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []Membership
	for repoID, e := range r.repos {
		if contains(e.libraries, conn) {
			found = append(found, Membership{RepoID: repoID, Role: protocol.RoleLibrary})
		}
		if contains(e.dashboards, conn) {
			found = append(found, Membership{RepoID: repoID, Role: protocol.RoleDashboard})
		}
	}

	return found
}

// UnregisterFrom removes conn from repoID and reports the role it held there.
func (r *Registry) UnregisterFrom(conn protocol.Connection, repoID string) (protocol.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.repos[repoID]
	if !ok {
		return "", false
	}

	var role protocol.Role
	var removed bool
	switch {
	case remove(&e.libraries, conn):
		role, removed = protocol.RoleLibrary, true
	case remove(&e.dashboards, conn):
		role, removed = protocol.RoleDashboard, true
	}
	if len(e.libraries) == 0 && len(e.dashboards) == 0 {
		delete(r.repos, repoID)
	}

	return role, removed
}

func (r *Registry) IsRegistered(conn protocol.Connection, role protocol.Role, repoID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.repos[repoID]
	if !ok {
		return false
	}

	switch role {
	case protocol.RoleLibrary:
		return contains(e.libraries, conn)
	case protocol.RoleDashboard:
		return contains(e.dashboards, conn)
	default:
		return false
	}
}

// Libraries returns a copy of the repo's library connections.
func (r *Registry) Libraries(repoID string) []protocol.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.repos[repoID]
	if !ok {
		return nil
	}

	return clone(e.libraries)
}

// Dashboards returns a copy of the repo's dashboard connections.
func (r *Registry) Dashboards(repoID string) []protocol.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.repos[repoID]
	if !ok {
		return nil
	}

	return clone(e.dashboards)
}

// Connections returns all of the repo's registered connections, both roles.
func (r *Registry) Connections(repoID string) []protocol.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.repos[repoID]
	if !ok {
		return nil
	}

	all := make([]protocol.Connection, 0, len(e.libraries)+len(e.dashboards))
	all = append(all, e.libraries...)
	all = append(all, e.dashboards...)

	return all
}

func contains(conns []protocol.Connection, conn protocol.Connection) bool {
	for _, c := range conns {
		if c.ID() == conn.ID() {
			return true
		}
	}

	return false
}

func remove(conns *[]protocol.Connection, conn protocol.Connection) bool {
	for i, c := range *conns {
		if c.ID() == conn.ID() {
			*conns = append((*conns)[:i], (*conns)[i+1:]...)

			return true
		}
	}

	return false
}

func clone(conns []protocol.Connection) []protocol.Connection {
	if conns == nil {
		return nil
	}
	out := make([]protocol.Connection, len(conns))
	copy(out, conns)

	return out
}
