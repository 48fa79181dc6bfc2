// Package selector chooses which connected library nodes participate in a
// round. Policies are pluggable; the default selects every candidate.
package selector

import (
	"github.com/datafed/cloudnode/pkg/protocol"
)

type Selector interface {
	Select(criteria map[string]any, candidates []protocol.Connection) []protocol.Connection
}

type allNodes struct{}

// NewAllNodes returns the trivial policy that selects all connected library
// nodes regardless of the session's selection criteria.
func NewAllNodes() Selector {
	return allNodes{}
}

func (allNodes) Select(_ map[string]any, candidates []protocol.Connection) []protocol.Connection {
	if len(candidates) == 0 {
		return nil
	}
	chosen := make([]protocol.Connection, len(candidates))
	copy(chosen, candidates)

	return chosen
}
