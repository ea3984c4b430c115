// Package postgres mirrors the event store into PostgreSQL for durability
// and restores it on startup.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"attest/internal/records"
	"attest/pkg/platform/tx"
)

// Migrations holds the schema for the mirror table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the files.
const MigrationsDir = "migrations"

// Store implements records.Mirror on a log_records table.
type Store struct {
	db *sql.DB
}

// New creates a mirror over an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInTx runs fn in one transaction. Upsert and Delete called with the
// context handed to fn join it; nested calls reuse the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit mirror transaction: %w", err)
	}
	return nil
}

// Upsert writes records, replacing existing rows with the same id.
// A batch is applied in one transaction.
func (s *Store) Upsert(ctx context.Context, recs []*records.LogRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.RunInTx(ctx, func(ctx context.Context) error {
		sqlTx, _ := tx.From(ctx)
		stmt, err := sqlTx.PrepareContext(ctx, `
			INSERT INTO log_records (
				id, recorded_at, level, category, message, subject_id,
				context, metadata, compliance_tag, regulations,
				legal_hold, under_investigation, anonymized
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				subject_id = EXCLUDED.subject_id,
				metadata = EXCLUDED.metadata,
				compliance_tag = EXCLUDED.compliance_tag,
				regulations = EXCLUDED.regulations,
				legal_hold = EXCLUDED.legal_hold,
				under_investigation = EXCLUDED.under_investigation,
				anonymized = EXCLUDED.anonymized
		`)
		if err != nil {
			return fmt.Errorf("prepare mirror upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			row, err := toRow(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				r.ID, r.Timestamp, string(r.Level), r.Category, r.Message, nullString(r.SubjectID),
				row.context, row.metadata, row.tag, pq.Array(row.regulations),
				r.LegalHold, r.UnderInvestigation, r.Anonymized,
			); err != nil {
				return fmt.Errorf("upsert record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Delete removes rows by id in a single statement.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM log_records WHERE id = ANY($1)`
	var err error
	if sqlTx, ok := tx.From(ctx); ok {
		_, err = sqlTx.ExecContext(ctx, query, pq.Array(ids))
	} else {
		_, err = s.db.ExecContext(ctx, query, pq.Array(ids))
	}
	if err != nil {
		return fmt.Errorf("delete mirrored records: %w", err)
	}
	return nil
}

// Recent loads records newer than since, oldest first, for restoring the
// in-memory store. limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, since time.Time, limit int) ([]*records.LogRecord, error) {
	query := `
		SELECT id, recorded_at, level, category, message, subject_id,
			context, metadata, compliance_tag,
			legal_hold, under_investigation, anonymized
		FROM log_records
		WHERE recorded_at >= $1
		ORDER BY recorded_at ASC
	`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mirrored records: %w", err)
	}
	defer rows.Close()

	var out []*records.LogRecord
	for rows.Next() {
		var (
			r                     records.LogRecord
			level                 string
			subject               sql.NullString
			ctxJSON, meta, tagRaw []byte
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &level, &r.Category, &r.Message, &subject,
			&ctxJSON, &meta, &tagRaw,
			&r.LegalHold, &r.UnderInvestigation, &r.Anonymized,
		); err != nil {
			return nil, fmt.Errorf("scan mirrored record: %w", err)
		}
		r.Level = records.Level(level)
		r.SubjectID = subject.String
		if err := unmarshalOptional(ctxJSON, &r.Context); err != nil {
			return nil, fmt.Errorf("record %s context: %w", r.ID, err)
		}
		if err := unmarshalOptional(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("record %s metadata: %w", r.ID, err)
		}
		if err := unmarshalOptional(tagRaw, &r.ComplianceTag); err != nil {
			return nil, fmt.Errorf("record %s compliance tag: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mirrored records: %w", err)
	}
	return out, nil
}

// row holds JSONB columns as text; lib/pq would send []byte as bytea.
type row struct {
	context     sql.NullString
	metadata    sql.NullString
	tag         sql.NullString
	regulations []string
}

func toRow(r *records.LogRecord) (row, error) {
	var out row
	var err error
	if r.Context != nil {
		if out.context, err = jsonColumn(r.Context); err != nil {
			return out, fmt.Errorf("marshal context: %w", err)
		}
	}
	if r.Metadata != nil {
		if out.metadata, err = jsonColumn(r.Metadata); err != nil {
			return out, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if r.ComplianceTag != nil {
		if out.tag, err = jsonColumn(r.ComplianceTag); err != nil {
			return out, fmt.Errorf("marshal compliance tag: %w", err)
		}
		out.regulations = r.ComplianceTag.Regulations
	}
	if out.regulations == nil {
		out.regulations = []string{}
	}
	return out, nil
}

func jsonColumn(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalOptional(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ records.Mirror = (*Store)(nil)
