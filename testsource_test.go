package fetch_test

import (
	"context"
	"sync"

	"github.com/guersam/fetch"
)

// mapSource is a DataSource[int, string] backed by a fixed map, used
// throughout the test suite. It records every Fetch call it receives so
// tests can assert on batching and deduplication.
type mapSource struct {
	name fetch.DataSourceName
	data map[int]string

	mu    sync.Mutex
	calls [][]int
}

func newMapSource(name string, data map[int]string) *mapSource {
	return &mapSource{name: fetch.DataSourceName(name), data: data}
}

func (s *mapSource) Name() fetch.DataSourceName { return s.name }

func (s *mapSource) Identity(id int) fetch.DataSourceIdentity {
	return fetch.DataSourceIdentity{Source: s.name, ID: id}
}

func (s *mapSource) Fetch(ctx context.Context, ids []int) (map[int]string, error) {
	s.mu.Lock()
	recorded := append([]int{}, ids...)
	s.calls = append(s.calls, recorded)
	s.mu.Unlock()

	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if v, ok := s.data[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *mapSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *mapSource) lastCall() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}
