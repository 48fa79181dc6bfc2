// Package session holds the per-repo training session state and the store
// that guards it. One session at a time per repo; distinct repos progress
// independently.
package session

import (
	"time"

	"github.com/datafed/cloudnode/pkg/protocol"
)

type Phase string

const (
	Idle   Phase = "idle"
	Active Phase = "active"
)

// State is the mutable record of a repo's session. All mutation happens
// inside Store.Update, under the repo's cell lock.
type State struct {
	Phase               Phase
	RepoID              string
	SessionID           string
	DatasetID           string
	CurrentRound        int
	NumNodesChosen      int
	NumNodesAveraged    int
	Accumulator         protocol.Tensors
	SigmaOmega          float64
	Continuation        protocol.Criteria
	Termination         protocol.Criteria
	CheckpointFrequency int
	Hyperparams         map[string]any
	SelectionCriteria   map[string]any
	LibraryType         protocol.LibraryType
	UseGradients        bool
	LastTrainMessage    *protocol.Train
	LastMessageTime     time.Time
}

func (s *State) Busy() bool {
	return s.Phase == Active
}

// Reset returns the state to its canonical idle value, keeping only the repo
// identity.
func (s *State) Reset() {
	*s = State{
		Phase:  Idle,
		RepoID: s.RepoID,
	}
}

// Snapshot is the read-only view served over the side-channel HTTP API.
type Snapshot struct {
	RepoID           string    `json:"repo_id"`
	Phase            Phase     `json:"phase"`
	SessionID        string    `json:"session_id,omitempty"`
	DatasetID        string    `json:"dataset_id,omitempty"`
	CurrentRound     int       `json:"current_round"`
	NumNodesChosen   int       `json:"num_nodes_chosen"`
	NumNodesAveraged int       `json:"num_nodes_averaged"`
	SigmaOmega       float64   `json:"sigma_omega,omitempty"`
	LastMessageTime  time.Time `json:"last_message_time,omitzero"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		RepoID:           s.RepoID,
		Phase:            s.Phase,
		SessionID:        s.SessionID,
		DatasetID:        s.DatasetID,
		CurrentRound:     s.CurrentRound,
		NumNodesChosen:   s.NumNodesChosen,
		NumNodesAveraged: s.NumNodesAveraged,
		SigmaOmega:       s.SigmaOmega,
		LastMessageTime:  s.LastMessageTime,
	}
}
