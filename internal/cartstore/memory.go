package cartstore

import (
	"context"
	"sync"

	"github.com/ecomgo/storefront/internal/models"
)

// MemoryStore backs the handler tests and single-node development runs.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[uint][]models.CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uint][]models.CartItem)}
}

func (s *MemoryStore) Get(_ context.Context, userID uint) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.carts[userID]
	if !ok {
		return []models.CartItem{}, nil
	}
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, userID uint, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make([]models.CartItem, len(items))
	copy(saved, items)
	s.carts[userID] = saved
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

// Has reports whether a cart key exists at all, so tests can tell a
// cleared cart from an empty one.
func (s *MemoryStore) Has(userID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[userID]
	return ok
}
