//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	pgplatform "attest/internal/platform/postgres"
	"attest/internal/records"
	"attest/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(pgplatform.Migrate(s.pg.DB, Migrations, MigrationsDir, "schema_migrations_records"))
	s.store = New(s.pg.DB)
	s.ctx = context.Background()
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "log_records"))
}

func (s *StoreSuite) TestUpsertAndRecent() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &records.LogRecord{
		ID:        "r-1",
		Timestamp: now,
		Level:     records.LevelAudit,
		Category:  records.CategoryAudit,
		Message:   "login",
		SubjectID: "u1",
		Context:   &records.Context{RequestID: "req-1"},
		Metadata:  records.Metadata{"ip": records.String("10.0.0.1"), "attempts": records.Int(2)},
		ComplianceTag: &records.ComplianceTag{
			RetentionDays:  2555,
			Classification: records.ClassificationConfidential,
			Regulations:    []string{"sox"},
		},
	}
	s.Require().NoError(s.store.Upsert(s.ctx, []*records.LogRecord{rec}))

	got, err := s.store.Recent(s.ctx, now.Add(-time.Minute), 0)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("u1", got[0].SubjectID)
	s.Equal("req-1", got[0].Context.RequestID)
	s.Equal([]string{"sox"}, got[0].ComplianceTag.Regulations)
	attempts, ok := got[0].Metadata["attempts"].Num()
	s.True(ok)
	s.InDelta(2, attempts, 1e-9)

	s.Run("upsert replaces redacted fields", func() {
		rec.Anonymize()
		s.Require().NoError(s.store.Upsert(s.ctx, []*records.LogRecord{rec}))
		got, err := s.store.Recent(s.ctx, now.Add(-time.Minute), 0)
		s.Require().NoError(err)
		s.Equal(records.AnonymizedSubject, got[0].SubjectID)
		s.True(got[0].Anonymized)
	})
}

func (s *StoreSuite) TestDelete() {
	now := time.Now().UTC()
	recs := []*records.LogRecord{
		{ID: "a", Timestamp: now, Level: records.LevelDebug, Category: "app", Message: "1"},
		{ID: "b", Timestamp: now, Level: records.LevelDebug, Category: "app", Message: "2"},
	}
	s.Require().NoError(s.store.Upsert(s.ctx, recs))
	s.Require().NoError(s.store.Delete(s.ctx, []string{"a"}))

	got, err := s.store.Recent(s.ctx, now.Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("b", got[0].ID)
}

func (s *StoreSuite) TestRunInTxRollsBackOnError() {
	now := time.Now().UTC()
	keep := &records.LogRecord{ID: "keep", Timestamp: now, Level: records.LevelInfo, Category: "app", Message: "kept"}
	s.Require().NoError(s.store.Upsert(s.ctx, []*records.LogRecord{keep}))

	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Upsert(ctx, []*records.LogRecord{
			{ID: "lost", Timestamp: now, Level: records.LevelInfo, Category: "app", Message: "lost"},
		}))
		s.Require().NoError(s.store.Delete(ctx, []string{"keep"}))
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Recent(s.ctx, now.Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("keep", got[0].ID)
}

func (s *StoreSuite) TestMigrateIsIdempotent() {
	s.NoError(pgplatform.Migrate(s.pg.DB, Migrations, MigrationsDir, "schema_migrations_records"))
}
