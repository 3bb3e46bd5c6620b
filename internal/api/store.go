package api

import (
	"sort"
	"sync"

	"github.com/samcharles93/mxcheck/internal/calib"
)

// RunStore keeps finished results in memory, keyed by result ID.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]calib.Result
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]calib.Result),
	}
}

func (s *RunStore) Put(res calib.Result) {
	// Drop the retained tensors; the store only serves reports.
	res.Inputs = nil
	res.Output = nil
	s.mu.Lock()
	s.runs[res.ID] = res
	s.mu.Unlock()
}

func (s *RunStore) Get(id string) (calib.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.runs[id]
	return res, ok
}

func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	return true
}

// List returns every stored result, oldest first.
func (s *RunStore) List() []calib.Result {
	s.mu.Lock()
	out := make([]calib.Result, 0, len(s.runs))
	for _, res := range s.runs {
		out = append(out, res)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
