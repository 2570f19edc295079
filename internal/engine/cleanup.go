package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/scrypster/mnemex/internal/storage"
)

// CleanupService permanently deletes archived memories past their
// expiry, and prunes stale lifecycle_events (§4.8). CleanupExpired
// supports a dry run that reports what would be removed without removing
// it; CleanupLifecycleEvents has no dry-run mode. Grounded on the teacher's
// backup retention sweep's
// tiered-deletion-with-reporting idiom.
type CleanupService struct {
	store     storage.MemoryStore
	batchSize int
}

func NewCleanupService(store storage.MemoryStore, batchSize int) *CleanupService {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &CleanupService{store: store, batchSize: batchSize}
}

// CleanupResult summarizes one cleanup pass.
type CleanupResult struct {
	Considered int
	Deleted    int
	Errors     []error
	BytesFreed uint64
}

// CleanupExpired permanently deletes every archived memory in workspaceID
// whose expires_at has passed. With dryRun, nothing is deleted.
func (c *CleanupService) CleanupExpired(ctx context.Context, workspaceID string, now time.Time, dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{}

	for {
		batch, err := c.store.ListExpiredArchived(ctx, workspaceID, now, c.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		result.Considered += len(batch)

		if dryRun {
			for _, m := range batch {
				result.BytesFreed += uint64(len(m.Content))
			}
			break
		}

		for _, m := range batch {
			if _, err := c.store.DeleteArchivedMemory(ctx, m.ID, workspaceID); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", m.ID, err))
				continue
			}
			result.Deleted++
			result.BytesFreed += uint64(len(m.Content))
		}

		if len(batch) < c.batchSize {
			break
		}
	}

	log.Printf("engine: cleanup considered=%d deleted=%d bytes_freed=%s dry_run=%v",
		result.Considered, result.Deleted, humanize.Bytes(result.BytesFreed), dryRun)
	return result, nil
}

// CleanupLifecycleEvents prunes lifecycle_events older than retention.
func (c *CleanupService) CleanupLifecycleEvents(ctx context.Context, workspaceID string, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	n, err := c.store.PruneLifecycleEvents(ctx, workspaceID, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("engine: pruned %d lifecycle events older than %s", n, retention)
	return n, nil
}
