package storage

import (
	"context"
	"sync"

	"adminpanel/internal/apperr"
)

// MemoryImageStore is an in-memory implementation of ImageStore.
type MemoryImageStore struct {
	policy Policy
	images map[string][]byte
	saves  int
	mu     sync.RWMutex
}

// NewMemoryImageStore creates a new instance of MemoryImageStore.
func NewMemoryImageStore(policy Policy) *MemoryImageStore {
	return &MemoryImageStore{
		policy: policy,
		images: make(map[string][]byte),
	}
}

func (s *MemoryImageStore) Save(ctx context.Context, upload Upload) (string, error) {
	img, err := s.policy.check(upload)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", apperr.Storage("image upload aborted", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.ref] = img.data
	s.saves++
	return img.ref, nil
}

func (s *MemoryImageStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, ref)
	return nil
}

func (s *MemoryImageStore) Resolve(_ context.Context, ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.images[ref]; !ok {
		return "", apperr.NotFound("image not found")
	}
	return s.URL(ref), nil
}

func (s *MemoryImageStore) URL(ref string) string {
	return "/uploads/" + ref
}

// Len returns the number of stored images.
func (s *MemoryImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Saves returns how many Save calls stored an image.
func (s *MemoryImageStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
