package memory

import (
	"context"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// Storage keeps the last saved snapshot in process memory.
type Storage struct {
	mu    sync.RWMutex
	index *vectorstore.Index
}

var _ vectorstore.Store = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Save(ctx context.Context, ix *vectorstore.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = ix
	return nil
}

func (s *Storage) Load(ctx context.Context) (*vectorstore.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, domain.ErrIndexNotFound
	}
	return s.index, nil
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	return nil
}
