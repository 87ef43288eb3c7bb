// Package commit implements stage F: the transactional catalog replace plus
// dedup audit write and batch status update.
package commit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ukcatalog/core/internal/core"
	"github.com/ukcatalog/core/internal/store"
)

// Run commits the dedup winners to the curated catalog and writes the
// dedup_audit trail, all in one transaction. Earlier-stage (ingestion,
// matching) audit rows were already committed in their own stage
// transactions and survive even if this commit fails.
func Run(ctx context.Context, st *store.Store, batchID string, winners []store.Product, audits []store.DedupAuditRow) error {
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.ReplaceCatalogForBatch(ctx, tx, winners); err != nil {
			return err
		}
		for _, a := range audits {
			if err := store.InsertDedupAudit(ctx, tx, a); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE batch_master SET status = ? WHERE batch_id = ?`, string(store.BatchCommitted), batchID); err != nil {
			return fmt.Errorf("commit: mark batch committed: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.NewBatchError("commit", core.StoreUnavailable, "catalog commit failed, rolled back", err)
	}
	return nil
}
