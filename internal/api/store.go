package api

import (
	"sync"
	"time"
)

type copyRecord struct {
	Response CopyResponse
}

// CopyStore keeps the results of executed copies for later retrieval.
type CopyStore struct {
	mu     sync.Mutex
	copies map[string]*copyRecord
}

func NewCopyStore() *CopyStore {
	return &CopyStore{
		copies: make(map[string]*copyRecord),
	}
}

func (s *CopyStore) Create(route, casting string, dst ArrayData, now time.Time) CopyResponse {
	resp := CopyResponse{
		ID:        newCopyID(),
		Object:    "copy",
		CreatedAt: now.Unix(),
		Route:     route,
		Casting:   casting,
		Dst:       dst,
	}

	s.mu.Lock()
	s.copies[resp.ID] = &copyRecord{Response: resp}
	s.mu.Unlock()
	return resp
}

func (s *CopyStore) Get(id string) (CopyResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.copies[id]
	if !ok {
		return CopyResponse{}, false
	}
	return rec.Response, true
}

func (s *CopyStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.copies[id]; !ok {
		return false
	}
	delete(s.copies, id)
	return true
}

func (s *CopyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.copies)
}
