package ingest

import (
	"context"
	"database/sql"

	"github.com/ukcatalog/core/internal/store"
)

// Accumulate performs Stage C: delete-then-insert scoped to (source, method)
// so a re-run of one scraper replaces only its own slice. It must run inside
// tx so the delete and the inserts are atomic together.
func Accumulate(ctx context.Context, tx *sql.Tx, source, method string, batchID string, passed []store.Product) ([]int64, error) {
	if _, err := store.DeleteRawByMethod(ctx, tx, source, method); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(passed))
	for _, p := range passed {
		p.BatchID = batchID
		id, err := store.InsertRaw(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
