package context

import (
	"context"

	"github.com/scrypster/mnemex/internal/storage"
)

// expandRelationships performs a breadth-first walk outward from seedIDs
// up to maxDepth hops over storage.MemoryStore.GetRelationships, returning
// every memory ID reached (seeds included). The visited set makes the
// walk cycle-safe — the relationship graph is not acyclic (§4.14,
// spec §9's cyclic-data note) — grounded on the teacher's
// graph_traversal.go BreadthFirstSearch, simplified from entity-mediated
// neighbor lookup to direct memory-to-memory relationship edges and
// dropping its resource-bounds checker since the Context Engine caller
// already bounds maxDepth and candidate-set size itself.
func expandRelationships(ctx context.Context, store storage.MemoryStore, seedIDs []string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		return seedIDs, nil
	}

	type queueItem struct {
		id    string
		depth int
	}

	visited := make(map[string]bool, len(seedIDs))
	queue := make([]queueItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		if !visited[id] {
			visited[id] = true
			queue = append(queue, queueItem{id: id, depth: 0})
		}
	}

	result := append([]string{}, seedIDs...)

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		rels, err := store.GetRelationships(ctx, cur.id)
		if err != nil {
			return result, err
		}
		for _, rel := range rels {
			neighbor := rel.ToMemoryID
			if neighbor == cur.id {
				neighbor = rel.FromMemoryID
			}
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			result = append(result, neighbor)
			queue = append(queue, queueItem{id: neighbor, depth: cur.depth + 1})
		}
	}

	return result, nil
}
