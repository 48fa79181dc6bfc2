package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datafed/cloudnode/pkg/protocol"
)

type testConn struct {
	id string
}

func (c *testConn) ID() string       { return c.id }
func (c *testConn) Send(v any) error { return nil }
func (c *testConn) Close() error     { return nil }

func TestAllNodes(t *testing.T) {
	sel := NewAllNodes()

	candidates := []protocol.Connection{
		&testConn{id: "lib-1"},
		&testConn{id: "lib-2"},
	}

	chosen := sel.Select(nil, candidates)
	assert.Len(t, chosen, 2)

	// The result is a copy, not the caller's slice.
	chosen[0] = &testConn{id: "other"}
	assert.Equal(t, "lib-1", candidates[0].ID())

	assert.Nil(t, sel.Select(map[string]any{"fraction": 0.5}, nil))
}
