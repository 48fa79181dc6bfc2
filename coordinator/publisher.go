package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
	"github.com/datafed/cloudnode/pkg/storage"
)

type artifactPublisher struct {
	store   storage.Storage
	baseURL string
}

// NewArtifactPublisher builds the default publisher. Sessions in inline mode
// carry tensors in the TRAIN frame itself; artifact mode stores the model
// under an artifact key and points clients at the serving URL.
func NewArtifactPublisher(store storage.Storage, baseURL string) ModelPublisher {
	return &artifactPublisher{
		store:   store,
		baseURL: baseURL,
	}
}

func (p *artifactPublisher) Publish(ctx context.Context, st *session.State, train *protocol.Train, model protocol.Tensors, modelURL string) error {
	// A dashboard-supplied pointer is republished as-is.
	if modelURL != "" {
		train.ModelURL = modelURL

		return nil
	}

	if st.LibraryType == protocol.LibraryJavascript {
		data, err := json.Marshal(model)
		if err != nil {
			return fmt.Errorf("failed to encode model artifact: %w", err)
		}

		key := ArtifactKey(st.RepoID, st.SessionID, train.Round)
		if err := p.store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("failed to store model artifact: %w", err)
		}
		train.ModelURL = p.baseURL + "/" + key

		return nil
	}

	if st.UseGradients {
		train.Gradients = model
	} else {
		train.Weights = model
	}
	train.UseGradients = st.UseGradients

	return nil
}

func ArtifactKey(repoID, sessionID string, round int) string {
	return fmt.Sprintf("artifacts/%s/%s/%d", repoID, sessionID, round)
}
