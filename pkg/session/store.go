package session

import "sync"

// Store maps repo ids to independently locked state cells. The store-level
// mutex only guards cell creation, so unrelated repos never contend while a
// session transition is in flight.
type Store struct {
	mu    sync.Mutex
	cells map[string]*cell
}

type cell struct {
	mu    sync.Mutex
	state State
}

func NewStore() *Store {
	return &Store{
		cells: make(map[string]*cell),
	}
}

func (s *Store) cell(repoID string) *cell {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[repoID]
	if !ok {
		c = &cell{state: State{Phase: Idle, RepoID: repoID}}
		s.cells[repoID] = c
	}

	return c
}

// Update runs fn with exclusive access to the repo's state. The state is
// created idle on first reference.
func (s *Store) Update(repoID string, fn func(*State) error) error {
	c := s.cell(repoID)

	c.mu.Lock()
	defer c.mu.Unlock()

	return fn(&c.state)
}

// Snapshot returns a consistent read-only view of the repo's state.
func (s *Store) Snapshot(repoID string) Snapshot {
	c := s.cell(repoID)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Snapshot()
}
