package retention

import (
	"context"

	"attest/internal/records"
)

// Archiver keeps a copy of records before they are purged.
type Archiver interface {
	Archive(ctx context.Context, category string, recs []*records.LogRecord) error
}
