package records

import "context"

// Predicate selects records inside a category.
type Predicate func(r *LogRecord) bool

// Mutator edits a record in place. It runs under the category write lock.
type Mutator func(r *LogRecord)

// Store is the authoritative category-partitioned record storage.
// Implementations lock per category so work on one category never
// waits on another.
type Store interface {
	// Append stores r and returns how many old records were evicted to honor the cap.
	Append(ctx context.Context, r *LogRecord) (evicted int, err error)
	// Snapshot returns copies of the category's records, oldest first.
	Snapshot(ctx context.Context, category string) ([]*LogRecord, error)
	Categories(ctx context.Context) ([]string, error)
	// DeleteWhere removes matching records and returns them.
	DeleteWhere(ctx context.Context, category string, pred Predicate) ([]*LogRecord, error)
	// UpdateWhere mutates matching records and returns copies of the results.
	UpdateWhere(ctx context.Context, category string, pred Predicate, mutate Mutator) ([]*LogRecord, error)
	Count(ctx context.Context) (int, error)
}

// Mirror is an optional durable copy of the store. It is written
// asynchronously and never consulted on the read path.
type Mirror interface {
	Upsert(ctx context.Context, recs []*LogRecord) error
	Delete(ctx context.Context, ids []string) error
}

// TxMirror is a Mirror that can apply one operation atomically.
type TxMirror interface {
	Mirror
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
