package coordinator

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/datafed/cloudnode/pkg/errors"
	"github.com/datafed/cloudnode/pkg/storage"
)

type keyStore struct {
	store storage.Storage
}

// NewKeyStore backs repo API keys with the given storage.
func NewKeyStore(store storage.Storage) KeyStore {
	return &keyStore{store: store}
}

func (k *keyStore) RepoKey(ctx context.Context, repoID string) (string, error) {
	if repoID == "" {
		return "", pkgerrors.ErrEmptyKey
	}

	val, err := k.store.Get(ctx, repoKeyKey(repoID))
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return "", ErrUnknownRepo
		}

		return "", err
	}

	return string(val), nil
}

func (k *keyStore) SetRepoKey(ctx context.Context, repoID, key string) error {
	if repoID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return k.store.Put(ctx, repoKeyKey(repoID), []byte(key))
}

func repoKeyKey(repoID string) string {
	return fmt.Sprintf("repokey/%s", repoID)
}
