package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafed/cloudnode/pkg/protocol"
)

type testConn struct {
	id string
}

func (c *testConn) ID() string       { return c.id }
func (c *testConn) Send(v any) error { return nil }
func (c *testConn) Close() error     { return nil }

func TestRegister(t *testing.T) {
	r := New()
	lib := &testConn{id: "lib-1"}
	dash := &testConn{id: "dash-1"}

	require.NoError(t, r.Register(lib, protocol.RoleLibrary, "repo-1"))
	require.NoError(t, r.Register(dash, protocol.RoleDashboard, "repo-1"))

	assert.True(t, r.IsRegistered(lib, protocol.RoleLibrary, "repo-1"))
	assert.True(t, r.IsRegistered(dash, protocol.RoleDashboard, "repo-1"))
	assert.False(t, r.IsRegistered(lib, protocol.RoleDashboard, "repo-1"))
	assert.False(t, r.IsRegistered(lib, protocol.RoleLibrary, "repo-2"))
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	conn := &testConn{id: "conn-1"}

	require.NoError(t, r.Register(conn, protocol.RoleLibrary, "repo-1"))

	err := r.Register(conn, protocol.RoleLibrary, "repo-1")
	assert.ErrorIs(t, err, ErrDuplicateConnection)

	// Same connection may not take the other role either.
	err = r.Register(conn, protocol.RoleDashboard, "repo-1")
	assert.ErrorIs(t, err, ErrDuplicateConnection)

	// A different repo is a separate slot.
	assert.NoError(t, r.Register(conn, protocol.RoleLibrary, "repo-2"))
}

func TestRegisterSecondDashboard(t *testing.T) {
	r := New()

	require.NoError(t, r.Register(&testConn{id: "dash-1"}, protocol.RoleDashboard, "repo-1"))

	err := r.Register(&testConn{id: "dash-2"}, protocol.RoleDashboard, "repo-1")
	assert.ErrorIs(t, err, ErrDashboardSlotFull)

	assert.NoError(t, r.Register(&testConn{id: "dash-2"}, protocol.RoleDashboard, "repo-2"))
}

func TestRegisterInvalidRole(t *testing.T) {
	r := New()

	err := r.Register(&testConn{id: "conn-1"}, protocol.Role("OBSERVER"), "repo-1")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestMemberships(t *testing.T) {
	r := New()
	conn := &testConn{id: "conn-1"}
	other := &testConn{id: "conn-2"}

	require.NoError(t, r.Register(conn, protocol.RoleLibrary, "repo-1"))
	require.NoError(t, r.Register(conn, protocol.RoleDashboard, "repo-2"))
	require.NoError(t, r.Register(other, protocol.RoleLibrary, "repo-1"))

	assert.ElementsMatch(t, []Membership{
		{RepoID: "repo-1", Role: protocol.RoleLibrary},
		{RepoID: "repo-2", Role: protocol.RoleDashboard},
	}, r.Memberships(conn))

	// Unknown connections belong to nothing.
	assert.Empty(t, r.Memberships(&testConn{id: "ghost"}))
}

func TestUnregisterFrom(t *testing.T) {
	r := New()
	conn := &testConn{id: "conn-1"}
	other := &testConn{id: "conn-2"}

	require.NoError(t, r.Register(conn, protocol.RoleLibrary, "repo-1"))
	require.NoError(t, r.Register(conn, protocol.RoleDashboard, "repo-2"))
	require.NoError(t, r.Register(other, protocol.RoleLibrary, "repo-1"))

	role, ok := r.UnregisterFrom(conn, "repo-1")
	require.True(t, ok)
	assert.Equal(t, protocol.RoleLibrary, role)
	assert.False(t, r.IsRegistered(conn, protocol.RoleLibrary, "repo-1"))
	assert.True(t, r.IsRegistered(other, protocol.RoleLibrary, "repo-1"))

	role, ok = r.UnregisterFrom(conn, "repo-2")
	require.True(t, ok)
	assert.Equal(t, protocol.RoleDashboard, role)

	// Already removed, and unknown repos, report nothing.
	_, ok = r.UnregisterFrom(conn, "repo-1")
	assert.False(t, ok)
	_, ok = r.UnregisterFrom(conn, "repo-9")
	assert.False(t, ok)
}

func TestConnectionListings(t *testing.T) {
	r := New()
	lib1 := &testConn{id: "lib-1"}
	lib2 := &testConn{id: "lib-2"}
	dash := &testConn{id: "dash-1"}

	require.NoError(t, r.Register(lib1, protocol.RoleLibrary, "repo-1"))
	require.NoError(t, r.Register(lib2, protocol.RoleLibrary, "repo-1"))
	require.NoError(t, r.Register(dash, protocol.RoleDashboard, "repo-1"))

	assert.Len(t, r.Libraries("repo-1"), 2)
	assert.Len(t, r.Dashboards("repo-1"), 1)
	assert.Len(t, r.Connections("repo-1"), 3)

	assert.Nil(t, r.Libraries("repo-2"))
	assert.Nil(t, r.Dashboards("repo-2"))
	assert.Nil(t, r.Connections("repo-2"))
}
