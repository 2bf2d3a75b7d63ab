package session

import (
	"container/list"
	"sync"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/schema"
	"attrition/ports"
)

// DefaultMaxBatches bounds the in-memory cache when no limit is configured
const DefaultMaxBatches = 16

// Batch is a scored upload cached for the analyst session. Records and Registry
// are read-only once stored.
type Batch struct {
	Meta     ports.BatchMeta
	Columns  []string
	Registry *schema.Registry
	Records  []employee.ScoredRecord
}

// Store keeps the most recently used batches in memory and evicts the least
// recently used one when full.
type Store struct {
	mu    sync.Mutex
	max   int
	order *list.List
	items map[core.BatchID]*list.Element
}

// NewStore creates a store holding at most maxBatches batches
func NewStore(maxBatches int) *Store {
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	return &Store{
		max:   maxBatches,
		order: list.New(),
		items: make(map[core.BatchID]*list.Element),
	}
}

// Put stores or replaces a batch and returns the IDs evicted to make room
func (s *Store) Put(b *Batch) []core.BatchID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[b.Meta.ID]; ok {
		el.Value = b
		s.order.MoveToFront(el)
		return nil
	}

	s.items[b.Meta.ID] = s.order.PushFront(b)

	var evicted []core.BatchID
	for s.order.Len() > s.max {
		oldest := s.order.Back()
		id := oldest.Value.(*Batch).Meta.ID
		s.order.Remove(oldest)
		delete(s.items, id)
		evicted = append(evicted, id)
	}
	return evicted
}

// Get returns a batch and marks it recently used
func (s *Store) Get(id core.BatchID) (*Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*Batch), true
}

// Delete drops a batch
func (s *Store) Delete(id core.BatchID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[id]; ok {
		s.order.Remove(el)
		delete(s.items, id)
	}
}

// List returns batch metadata, most recently used first
func (s *Store) List() []ports.BatchMeta {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.BatchMeta, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Batch).Meta)
	}
	return out
}

// Len returns the number of cached batches
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
