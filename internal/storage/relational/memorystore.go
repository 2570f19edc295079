// Package relational implements storage.MemoryStore once, against the
// storage.Adapter interface, so the sqlite and postgres packages need only
// supply a dialect-specific Adapter (and, for postgres, translate '?' to
// $N — see postgres.rewritePlaceholders) rather than each reimplementing
// every MemoryStore method. Grounded on the teacher's own embedded
// MemoryStore (JSON-marshaled metadata, content-hash computed at write
// time, transactional archive/restore).
package relational

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/internal/vectorindex"
	"github.com/scrypster/mnemex/pkg/types"
)

// MemoryStore implements storage.MemoryStore on top of any storage.Adapter
// and an optional vectorindex.Index.
type MemoryStore struct {
	adapter storage.Adapter
	index   vectorindex.Index
}

// New wires a storage.Adapter to a vector index. index may be nil when a
// deployment runs without embeddings; CreateMemory then skips the vector
// upsert, ArchiveMemory skips the vector delete, and SearchMemories
// returns an error.
func New(adapter storage.Adapter, index vectorindex.Index) *MemoryStore {
	return &MemoryStore{adapter: adapter, index: index}
}

const memoryColumns = `
	id, workspace_id, conversation_id, type, content, confidence, metadata,
	lifecycle_state, last_accessed_at, access_count, importance_score, decay_score,
	effective_ttl, pinned, pinned_by, pinned_at, archived_at, expires_at,
	content_hash, supersedes_id, created_at, updated_at
`

func (s *MemoryStore) CreateMemory(ctx context.Context, m *types.Memory, embedding []float32) error {
	if m == nil {
		return fmt.Errorf("relational: CreateMemory: memory is nil")
	}
	if m.WorkspaceID == "" {
		return fmt.Errorf("relational: CreateMemory: workspace_id is required")
	}
	m.ContentHash = fmt.Sprintf("%x", sha256.Sum256([]byte(m.Content)))

	m.LifecycleState = types.StateActive
	m.DecayScore = 1.0
	m.AccessCount = 0
	m.ImportanceScore = 0.5
	m.Pinned, m.PinnedBy, m.PinnedAt = false, "", nil
	m.ArchivedAt, m.ExpiresAt = nil, nil
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = time.Now()
	}

	metadataJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("relational: CreateMemory: marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.adapter.Insert(ctx, q,
		m.ID, m.WorkspaceID, nullString(m.ConversationID), m.Type, m.Content, m.Confidence, metadataJSON,
		string(m.LifecycleState), m.LastAccessedAt, m.AccessCount, m.ImportanceScore, m.DecayScore,
		m.EffectiveTTL, m.Pinned, nullString(m.PinnedBy), m.PinnedAt, m.ArchivedAt, m.ExpiresAt,
		m.ContentHash, nullString(m.SupersedesID), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if s.index != nil && len(embedding) > 0 {
		if err := s.index.Upsert(ctx, m.ID, embedding, vectorindex.Metadata{WorkspaceID: m.WorkspaceID, Type: m.Type}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) GetMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	const q = `SELECT ` + memoryColumns + ` FROM memories WHERE id = ? AND workspace_id = ?`
	row := s.adapter.QueryRow(ctx, q, id, workspaceID)
	return scanMemory(row)
}

func (s *MemoryStore) SearchMemories(ctx context.Context, workspaceID string, params storage.SearchParams) ([]storage.SearchHit, error) {
	if s.index == nil || len(params.Vector) == 0 {
		return nil, fmt.Errorf("relational: SearchMemories: no vector index configured")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	hits, err := s.index.Search(ctx, params.Vector, limit, vectorindex.Filter{WorkspaceID: workspaceID, Types: params.Types})
	if err != nil {
		return nil, err
	}

	out := make([]storage.SearchHit, 0, len(hits))
	for _, h := range hits {
		m, err := s.GetMemory(ctx, h.ID, workspaceID)
		if err != nil {
			continue
		}
		if !params.IncludeArchived && (m.LifecycleState == types.StateArchived || m.LifecycleState == types.StateExpired) {
			continue
		}
		out = append(out, storage.SearchHit{Memory: *m, Similarity: h.Score})
	}
	return out, nil
}

func (s *MemoryStore) UpdateMemory(ctx context.Context, m *types.Memory) error {
	metadataJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("relational: UpdateMemory: marshal metadata: %w", err)
	}
	const q = `
		UPDATE memories SET
			content = ?, confidence = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?
	`
	res, err := s.adapter.Update(ctx, q, m.Content, m.Confidence, metadataJSON, m.UpdatedAt, m.ID, m.WorkspaceID)
	if err != nil {
		return err
	}
	return checkAffected(res, "relational.UpdateMemory")
}

func (s *MemoryStore) UpdateMemoryLifecycle(ctx context.Context, id, workspaceID string, patch storage.LifecyclePatch) error {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 10)

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.LifecycleState != nil {
		add("lifecycle_state", string(*patch.LifecycleState))
	}
	if patch.DecayScore != nil {
		add("decay_score", *patch.DecayScore)
	}
	if patch.ImportanceScore != nil {
		add("importance_score", *patch.ImportanceScore)
	}
	if patch.LastAccessedAt != nil {
		add("last_accessed_at", *patch.LastAccessedAt)
	}
	if patch.AccessCount != nil {
		add("access_count", *patch.AccessCount)
	}
	if patch.Pinned != nil {
		add("pinned", *patch.Pinned)
	}
	if patch.PinnedBy != nil {
		add("pinned_by", *patch.PinnedBy)
	}
	if patch.PinnedAt != nil {
		add("pinned_at", *patch.PinnedAt)
	}
	if patch.ArchivedAt != nil {
		add("archived_at", *patch.ArchivedAt)
	}
	if patch.ExpiresAt != nil {
		add("expires_at", *patch.ExpiresAt)
	}
	if patch.EffectiveTTL != nil {
		add("effective_ttl", *patch.EffectiveTTL)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now())

	q := "UPDATE memories SET "
	for i, s := range sets {
		if i > 0 {
			q += ", "
		}
		q += s
	}
	q += " WHERE id = ? AND workspace_id = ?"
	args = append(args, id, workspaceID)

	res, err := s.adapter.Update(ctx, q, args...)
	if err != nil {
		return err
	}
	return checkAffected(res, "relational.UpdateMemoryLifecycle")
}

func (s *MemoryStore) GetMemoriesByLifecycleState(ctx context.Context, workspaceID string, state types.LifecycleState, page storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	page.Normalize()

	var total int
	if err := s.adapter.QueryRow(ctx, `SELECT COUNT(*) FROM memories WHERE workspace_id = ? AND lifecycle_state = ?`, workspaceID, string(state)).Scan(&total); err != nil {
		return nil, storage.ClassifyError("relational.GetMemoriesByLifecycleState", err, nil)
	}

	const q = `
		SELECT ` + memoryColumns + ` FROM memories
		WHERE workspace_id = ? AND lifecycle_state = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.adapter.Query(ctx, q, workspaceID, string(state), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}
	return &storage.PaginatedResult[types.Memory]{
		Items:   items,
		Total:   total,
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.Offset+len(items) < total,
	}, nil
}

func (s *MemoryStore) RecordAccess(ctx context.Context, id, workspaceID string) error {
	const q = `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?
	`
	now := time.Now()
	res, err := s.adapter.Update(ctx, q, now, now, id, workspaceID)
	if err != nil {
		return err
	}
	return checkAffected(res, "relational.RecordAccess")
}

func (s *MemoryStore) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	const q = `
		INSERT INTO relationships (id, from_memory_id, to_memory_id, relationship_type, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_memory_id, to_memory_id, relationship_type) DO UPDATE SET confidence = excluded.confidence
	`
	_, err := s.adapter.Insert(ctx, q, rel.ID, rel.FromMemoryID, rel.ToMemoryID, rel.RelationshipType, rel.Confidence, rel.CreatedAt)
	return err
}

func (s *MemoryStore) GetRelationships(ctx context.Context, memoryID string) ([]types.Relationship, error) {
	const q = `
		SELECT id, from_memory_id, to_memory_id, relationship_type, confidence, created_at
		FROM relationships WHERE from_memory_id = ? OR to_memory_id = ?
	`
	rows, err := s.adapter.Query(ctx, q, memoryID, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Relationship
	for rows.Next() {
		var r types.Relationship
		if err := rows.Scan(&r.ID, &r.FromMemoryID, &r.ToMemoryID, &r.RelationshipType, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, storage.ClassifyError("relational.GetRelationships", err, nil)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ArchiveMemory moves a memory row from memories into archived_memories
// within one transaction, then deletes its vector entry after the commit;
// a failed vector delete is reported in ArchiveStats.VectorDeleteErr and
// does not undo the archive. Relationships are
// left in place (they reference ids, not rows) but counted for reporting,
// matching the teacher's tiered-deletion-with-per-item-error idiom for
// retention sweeps.
func (s *MemoryStore) ArchiveMemory(ctx context.Context, id, workspaceID string, retention time.Duration) (*storage.ArchiveStats, error) {
	m, err := s.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}

	tx, err := s.adapter.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	expiresAt := now.Add(retention)
	metadataJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("relational: ArchiveMemory: marshal metadata: %w", err)
	}

	const insertQ = `
		INSERT INTO archived_memories (
			id, workspace_id, conversation_id, type, content, confidence, metadata,
			lifecycle_state, access_count, importance_score, content_hash, supersedes_id,
			archived_at, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Insert(ctx, insertQ,
		m.ID, m.WorkspaceID, nullString(m.ConversationID), m.Type, m.Content, m.Confidence, metadataJSON,
		string(types.StateArchived), m.AccessCount, m.ImportanceScore, m.ContentHash, nullString(m.SupersedesID),
		now, expiresAt, m.CreatedAt, now,
	); err != nil {
		return nil, err
	}

	if _, err := tx.Delete(ctx, `DELETE FROM memories WHERE id = ? AND workspace_id = ?`, id, workspaceID); err != nil {
		return nil, err
	}

	var relTouched int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM relationships WHERE from_memory_id = ? OR to_memory_id = ?`, id, id).Scan(&relTouched); err != nil {
		return nil, storage.ClassifyError("relational.ArchiveMemory", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	stats := &storage.ArchiveStats{RelationshipsTouched: relTouched}
	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			stats.VectorDeleteErr = err
		}
	}
	return stats, nil
}

func (s *MemoryStore) RestoreMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	const q = `
		SELECT id, workspace_id, conversation_id, type, content, confidence, metadata,
			access_count, importance_score, content_hash, supersedes_id,
			archived_at, expires_at, created_at, updated_at
		FROM archived_memories WHERE id = ? AND workspace_id = ?
	`
	row := s.adapter.QueryRow(ctx, q, id, workspaceID)
	var am types.ArchivedMemory
	var conversationID, metadataJSON, contentHash, supersedesID sql.NullString
	if err := row.Scan(&am.ID, &am.WorkspaceID, &conversationID, &am.Type, &am.Content, &am.Confidence, &metadataJSON,
		&am.AccessCount, &am.ImportanceScore, &contentHash, &supersedesID, &am.ArchivedAt, &am.ExpiresAt, &am.CreatedAt, &am.UpdatedAt); err != nil {
		return nil, storage.ClassifyError("relational.RestoreMemory", err, nil)
	}
	am.ConversationID = conversationID.String
	am.ContentHash = contentHash.String
	am.SupersedesID = supersedesID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &am.Metadata); err != nil {
			return nil, fmt.Errorf("relational: RestoreMemory: unmarshal metadata: %w", err)
		}
	}

	restored := am.ToMemory(time.Now())

	tx, err := s.adapter.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	newMetadataJSON, err := marshalMetadata(restored.Metadata)
	if err != nil {
		return nil, fmt.Errorf("relational: RestoreMemory: marshal metadata: %w", err)
	}
	const insertQ = `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Insert(ctx, insertQ,
		restored.ID, restored.WorkspaceID, nullString(restored.ConversationID), restored.Type, restored.Content, restored.Confidence, newMetadataJSON,
		string(restored.LifecycleState), restored.LastAccessedAt, restored.AccessCount, restored.ImportanceScore, restored.DecayScore,
		restored.EffectiveTTL, restored.Pinned, nullString(restored.PinnedBy), restored.PinnedAt, restored.ArchivedAt, restored.ExpiresAt,
		restored.ContentHash, nullString(restored.SupersedesID), restored.CreatedAt, restored.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if _, err := tx.Delete(ctx, `DELETE FROM archived_memories WHERE id = ? AND workspace_id = ?`, id, workspaceID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &restored, nil
}

func (s *MemoryStore) ListExpiredArchived(ctx context.Context, workspaceID string, now time.Time, batchSize int) ([]types.ArchivedMemory, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	const q = `
		SELECT id, workspace_id, conversation_id, type, content, confidence, metadata,
			access_count, importance_score, content_hash, supersedes_id,
			archived_at, expires_at, created_at, updated_at
		FROM archived_memories
		WHERE workspace_id = ? AND expires_at <= ?
		ORDER BY expires_at ASC
		LIMIT ?
	`
	rows, err := s.adapter.Query(ctx, q, workspaceID, now, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ArchivedMemory
	for rows.Next() {
		var am types.ArchivedMemory
		var conversationID, metadataJSON, contentHash, supersedesID sql.NullString
		if err := rows.Scan(&am.ID, &am.WorkspaceID, &conversationID, &am.Type, &am.Content, &am.Confidence, &metadataJSON,
			&am.AccessCount, &am.ImportanceScore, &contentHash, &supersedesID, &am.ArchivedAt, &am.ExpiresAt, &am.CreatedAt, &am.UpdatedAt); err != nil {
			return nil, storage.ClassifyError("relational.ListExpiredArchived", err, nil)
		}
		am.ConversationID = conversationID.String
		am.ContentHash = contentHash.String
		am.SupersedesID = supersedesID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &am.Metadata); err != nil {
				return nil, fmt.Errorf("relational: ListExpiredArchived: unmarshal metadata: %w", err)
			}
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

func (s *MemoryStore) DeleteArchivedMemory(ctx context.Context, id, workspaceID string) (int, error) {
	tx, err := s.adapter.BeginTransaction(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Delete(ctx, `DELETE FROM relationships WHERE from_memory_id = ? OR to_memory_id = ?`, id, id)
	if err != nil {
		return 0, err
	}
	relDeleted, _ := res.RowsAffected()

	delRes, err := tx.Delete(ctx, `DELETE FROM archived_memories WHERE id = ? AND workspace_id = ?`, id, workspaceID)
	if err != nil {
		return 0, err
	}
	if err := checkAffected(delRes, "relational.DeleteArchivedMemory"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(relDeleted), nil
}

func (s *MemoryStore) LogLifecycleEvent(ctx context.Context, ev *types.LifecycleEvent) error {
	metadataJSON, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return fmt.Errorf("relational: LogLifecycleEvent: marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO lifecycle_events (id, memory_id, workspace_id, previous_state, new_state, reason, triggered_by, user_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.adapter.Insert(ctx, q, ev.ID, ev.MemoryID, ev.WorkspaceID, string(ev.PreviousState), string(ev.NewState),
		ev.Reason, string(ev.TriggeredBy), nullString(ev.UserID), metadataJSON, ev.CreatedAt)
	return err
}

func (s *MemoryStore) GetHistory(ctx context.Context, memoryID, workspaceID string) ([]types.LifecycleEvent, error) {
	const q = `
		SELECT id, memory_id, workspace_id, previous_state, new_state, reason, triggered_by, user_id, metadata, created_at
		FROM lifecycle_events WHERE memory_id = ? AND workspace_id = ?
		ORDER BY created_at ASC
	`
	rows, err := s.adapter.Query(ctx, q, memoryID, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLifecycleEvents(rows)
}

func (s *MemoryStore) GetRecentTransitions(ctx context.Context, workspaceID string, limit int) ([]types.LifecycleEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	const q = `
		SELECT id, memory_id, workspace_id, previous_state, new_state, reason, triggered_by, user_id, metadata, created_at
		FROM lifecycle_events WHERE workspace_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.adapter.Query(ctx, q, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLifecycleEvents(rows)
}

func (s *MemoryStore) PruneLifecycleEvents(ctx context.Context, workspaceID string, olderThan time.Time) (int, error) {
	res, err := s.adapter.Delete(ctx, `DELETE FROM lifecycle_events WHERE workspace_id = ? AND created_at < ?`, workspaceID, olderThan)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *MemoryStore) Close() error { return s.adapter.Close() }

func scanLifecycleEvents(rows *sql.Rows) ([]types.LifecycleEvent, error) {
	var out []types.LifecycleEvent
	for rows.Next() {
		var ev types.LifecycleEvent
		var previousState, userID, metadataJSON sql.NullString
		if err := rows.Scan(&ev.ID, &ev.MemoryID, &ev.WorkspaceID, &previousState, &ev.NewState, &ev.Reason, &ev.TriggeredBy, &userID, &metadataJSON, &ev.CreatedAt); err != nil {
			return nil, storage.ClassifyError("relational.scanLifecycleEvents", err, nil)
		}
		ev.PreviousState = types.LifecycleState(previousState.String)
		ev.UserID = userID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("relational: scanLifecycleEvents: unmarshal metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanMemories(rows *sql.Rows) ([]types.Memory, error) {
	var out []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row *sql.Row) (*types.Memory, error) {
	return scanMemoryGeneric(row)
}

func scanMemoryRow(rows *sql.Rows) (*types.Memory, error) {
	return scanMemoryGeneric(rows)
}

func scanMemoryGeneric(sc rowScanner) (*types.Memory, error) {
	var m types.Memory
	var conversationID, metadataJSON, pinnedBy, contentHash, supersedesID sql.NullString
	var lifecycleState string
	var effectiveTTL sql.NullInt64
	var pinnedAt, archivedAt, expiresAt sql.NullTime

	err := sc.Scan(
		&m.ID, &m.WorkspaceID, &conversationID, &m.Type, &m.Content, &m.Confidence, &metadataJSON,
		&lifecycleState, &m.LastAccessedAt, &m.AccessCount, &m.ImportanceScore, &m.DecayScore,
		&effectiveTTL, &m.Pinned, &pinnedBy, &pinnedAt, &archivedAt, &expiresAt,
		&contentHash, &supersedesID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, storage.ClassifyError("relational.scanMemory", err, nil)
	}

	m.ConversationID = conversationID.String
	m.LifecycleState = types.LifecycleState(lifecycleState)
	m.PinnedBy = pinnedBy.String
	m.ContentHash = contentHash.String
	m.SupersedesID = supersedesID.String
	if effectiveTTL.Valid {
		m.EffectiveTTL = &effectiveTTL.Int64
	}
	if pinnedAt.Valid {
		m.PinnedAt = &pinnedAt.Time
	}
	if archivedAt.Valid {
		m.ArchivedAt = &archivedAt.Time
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("relational: scanMemory: unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

func marshalMetadata(meta map[string]interface{}) (interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func checkAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storage.ClassifyError(op, err, nil)
	}
	if n == 0 {
		return storage.ClassifyError(op, sql.ErrNoRows, nil)
	}
	return nil
}
