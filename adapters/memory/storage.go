package memory

import (
	"context"
	"sync"

	"leaderboardkit/engine"
)

// Store is a concurrent in-memory IdentifierStore. Values live for the
// lifetime of the process.
type Store struct {
	values sync.Map // map[string]string
}

func New() *Store { return &Store{} }

func (s *Store) Load(_ context.Context, name string) (string, error) {
	v, ok := s.values.Load(name)
	if !ok {
		return "", engine.ErrNotFound
	}
	return v.(string), nil
}

func (s *Store) Save(_ context.Context, name, value string) error {
	s.values.Store(name, value)
	return nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	s.values.Delete(name)
	return nil
}

var _ engine.IdentifierStore = (*Store)(nil)
