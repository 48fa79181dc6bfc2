package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/datafed/cloudnode/pkg/session"
	"github.com/datafed/cloudnode/pkg/storage"
)

// Checkpoint is the persisted form of a round's aggregated model.
type Checkpoint struct {
	RepoID      string      `cbor:"repo_id"`
	SessionID   string      `cbor:"session_id"`
	Round       int         `cbor:"round"`
	Accumulator [][]float64 `cbor:"accumulator"`
	SigmaOmega  float64     `cbor:"sigma_omega"`
	SavedAt     time.Time   `cbor:"saved_at"`
}

type checkpointStore struct {
	store storage.Storage
}

func NewCheckpointStore(store storage.Storage) CheckpointStore {
	return &checkpointStore{store: store}
}

func (c *checkpointStore) Save(ctx context.Context, st *session.State) error {
	cp := Checkpoint{
		RepoID:      st.RepoID,
		SessionID:   st.SessionID,
		Round:       st.CurrentRound,
		Accumulator: st.Accumulator,
		SigmaOmega:  st.SigmaOmega,
		SavedAt:     time.Now(),
	}

	data, err := cbor.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	key := CheckpointKey(st.RepoID, st.SessionID, st.CurrentRound)

	return c.store.Put(ctx, key, data)
}

func CheckpointKey(repoID, sessionID string, round int) string {
	return fmt.Sprintf("checkpoint/%s/%s/%d", repoID, sessionID, round)
}
