package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/datafed/cloudnode/pkg/errors"
)

type inMemoryStorage struct {
	sync.RWMutex

	data map[string][]byte
}

func NewInMemoryStorage() Storage {
	return &inMemoryStorage{
		data: make(map[string][]byte),
	}
}

func (s *inMemoryStorage) Put(_ context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored

	return nil
}

func (s *inMemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.ErrEmptyKey
	}

	s.RLock()
	defer s.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return nil, errors.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)

	return out, nil
}

func (s *inMemoryStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	delete(s.data, key)

	return nil
}

func (s *inMemoryStorage) List(_ context.Context, prefix string, offset, limit uint64) ([]Entry, uint64, error) {
	s.RLock()
	defer s.RUnlock()

	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	total := uint64(len(keys))
	if offset >= total {
		return nil, total, nil
	}

	end := min(offset+limit, total)
	result := make([]Entry, 0, end-offset)
	for _, k := range keys[offset:end] {
		val := s.data[k]
		out := make([]byte, len(val))
		copy(out, val)
		result = append(result, Entry{Key: k, Value: out})
	}

	return result, total, nil
}
