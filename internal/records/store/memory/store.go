// Package memory is the in-process authoritative record store.
package memory

import (
	"context"
	"sort"
	"sync"

	"attest/internal/records"
)

// DefaultCategoryCap bounds each category when no cap is configured.
const DefaultCategoryCap = 10000

// Store keeps one FIFO partition per category. The partition map has its
// own lock; each partition is locked independently.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition
	cap        int
}

type partition struct {
	mu    sync.RWMutex
	items []*records.LogRecord
	head  int
}

// New creates a store that keeps at most categoryCap records per category.
func New(categoryCap int) *Store {
	if categoryCap <= 0 {
		categoryCap = DefaultCategoryCap
	}
	return &Store{
		partitions: make(map[string]*partition),
		cap:        categoryCap,
	}
}

func (s *Store) partition(category string, create bool) *partition {
	s.mu.RLock()
	p, ok := s.partitions[category]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[category]; ok {
		return p
	}
	p = &partition{}
	s.partitions[category] = p
	return p
}

func (p *partition) live() []*records.LogRecord {
	return p.items[p.head:]
}

// compact releases evicted slots once they make up half the backing array.
func (p *partition) compact() {
	if p.head == 0 || p.head < len(p.items)/2 {
		return
	}
	live := make([]*records.LogRecord, len(p.items)-p.head, cap(p.items)-p.head)
	copy(live, p.items[p.head:])
	p.items = live
	p.head = 0
}

// Append stores r and evicts the oldest records beyond the cap.
func (s *Store) Append(_ context.Context, r *records.LogRecord) (int, error) {
	p := s.partition(r.Category, true)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append(p.items, r)
	evicted := 0
	for len(p.items)-p.head > s.cap {
		p.items[p.head] = nil
		p.head++
		evicted++
	}
	p.compact()
	return evicted, nil
}

func (s *Store) Snapshot(_ context.Context, category string) ([]*records.LogRecord, error) {
	p := s.partition(category, false)
	if p == nil {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	live := p.live()
	out := make([]*records.LogRecord, len(live))
	for i, r := range live {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteWhere(_ context.Context, category string, pred records.Predicate) ([]*records.LogRecord, error) {
	p := s.partition(category, false)
	if p == nil {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	live := p.live()
	kept := make([]*records.LogRecord, 0, len(live))
	var removed []*records.LogRecord
	for _, r := range live {
		if pred(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) > 0 {
		p.items = kept
		p.head = 0
	}
	return removed, nil
}

func (s *Store) UpdateWhere(_ context.Context, category string, pred records.Predicate, mutate records.Mutator) ([]*records.LogRecord, error) {
	p := s.partition(category, false)
	if p == nil {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var updated []*records.LogRecord
	for _, r := range p.live() {
		if pred(r) {
			mutate(r)
			updated = append(updated, r.Clone())
		}
	}
	return updated, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	parts := make([]*partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		parts = append(parts, p)
	}
	s.mu.RUnlock()

	total := 0
	for _, p := range parts {
		p.mu.RLock()
		total += len(p.items) - p.head
		p.mu.RUnlock()
	}
	return total, nil
}

var _ records.Store = (*Store)(nil)
