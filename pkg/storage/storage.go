// Package storage provides the key/value backends the coordinator persists
// into: repo API keys, model checkpoints and published artifacts.
package storage

import "context"

type Entry struct {
	Key   string
	Value []byte
}

type Storage interface {
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns entries whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string, offset, limit uint64) ([]Entry, uint64, error)
}
