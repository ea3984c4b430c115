package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/records"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New(DefaultCategoryCap)
}

func rec(category, id string, ts time.Time) *records.LogRecord {
	return &records.LogRecord{ID: id, Category: category, Level: records.LevelDebug, Message: "m", Timestamp: ts}
}

// =============================================================================
// Cap eviction
// =============================================================================

func (s *StoreSuite) TestCapEvictsOldestFirst() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	total := DefaultCategoryCap + 1
	evictedTotal := 0
	for i := range total {
		n, err := s.store.Append(s.ctx, rec("debug", fmt.Sprintf("r-%d", i), base.Add(time.Duration(i)*time.Millisecond)))
		s.Require().NoError(err)
		evictedTotal += n
	}

	s.Equal(1, evictedTotal)
	snap, err := s.store.Snapshot(s.ctx, "debug")
	s.Require().NoError(err)
	s.Len(snap, DefaultCategoryCap)
	s.Equal("r-1", snap[0].ID, "oldest record evicted")
	s.Equal(fmt.Sprintf("r-%d", total-1), snap[len(snap)-1].ID, "newest record present")
}

func (s *StoreSuite) TestCapIsPerCategory() {
	small := New(2)
	now := time.Now()
	for i := range 3 {
		_, _ = small.Append(s.ctx, rec("a", fmt.Sprintf("a-%d", i), now))
	}
	_, _ = small.Append(s.ctx, rec("b", "b-0", now))

	count, err := small.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, count)

	cats, err := small.Categories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, cats)
}

func (s *StoreSuite) TestCompactionKeepsOrder() {
	small := New(3)
	now := time.Now()
	for i := range 20 {
		_, _ = small.Append(s.ctx, rec("a", fmt.Sprintf("a-%d", i), now))
	}
	snap, err := small.Snapshot(s.ctx, "a")
	s.Require().NoError(err)
	s.Require().Len(snap, 3)
	s.Equal([]string{"a-17", "a-18", "a-19"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
}

// =============================================================================
// Mutation
// =============================================================================

func (s *StoreSuite) TestSnapshotReturnsCopies() {
	_, _ = s.store.Append(s.ctx, rec("a", "1", time.Now()))
	snap, _ := s.store.Snapshot(s.ctx, "a")
	snap[0].Message = "changed"

	again, _ := s.store.Snapshot(s.ctx, "a")
	s.Equal("m", again[0].Message)
}

func (s *StoreSuite) TestDeleteWhere() {
	now := time.Now()
	_, _ = s.store.Append(s.ctx, rec("a", "1", now))
	_, _ = s.store.Append(s.ctx, rec("a", "2", now))
	_, _ = s.store.Append(s.ctx, rec("a", "3", now))

	removed, err := s.store.DeleteWhere(s.ctx, "a", func(r *records.LogRecord) bool { return r.ID == "2" })
	s.Require().NoError(err)
	s.Require().Len(removed, 1)
	s.Equal("2", removed[0].ID)

	snap, _ := s.store.Snapshot(s.ctx, "a")
	s.Equal([]string{"1", "3"}, []string{snap[0].ID, snap[1].ID})

	s.Run("unknown category is a no-op", func() {
		removed, err := s.store.DeleteWhere(s.ctx, "missing", func(*records.LogRecord) bool { return true })
		s.NoError(err)
		s.Empty(removed)
	})
}

func (s *StoreSuite) TestUpdateWhere() {
	_, _ = s.store.Append(s.ctx, rec("a", "1", time.Now()))
	updated, err := s.store.UpdateWhere(s.ctx, "a",
		func(r *records.LogRecord) bool { return r.ID == "1" },
		func(r *records.LogRecord) { r.Anonymize() },
	)
	s.Require().NoError(err)
	s.Require().Len(updated, 1)
	s.True(updated[0].Anonymized)

	snap, _ := s.store.Snapshot(s.ctx, "a")
	s.Equal(records.AnonymizedSubject, snap[0].SubjectID)
}

// =============================================================================
// Concurrency
// =============================================================================

func (s *StoreSuite) TestConcurrentAppendAndDelete() {
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				_, _ = s.store.Append(s.ctx, rec(fmt.Sprintf("c-%d", w%2), fmt.Sprintf("%d-%d", w, i), time.Now()))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 50 {
			_, _ = s.store.DeleteWhere(s.ctx, "c-0", func(r *records.LogRecord) bool { return false })
		}
	}()
	wg.Wait()

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2000, count)
}
