// Package pgvectorindex implements vectorindex.Index on top of PostgreSQL's
// pgvector extension, grounded on the same embedding_vec/<=> query shape the
// networked storage adapter uses for VectorSearch.
package pgvectorindex

import (
	"context"
	"database/sql"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/mnemex/internal/vectorindex"
)

// Index stores one row per memory in a dedicated table so the vector index
// can be queried, reconciled, and rebuilt independently of the memories
// table itself (§4.2's two-store reconciler pattern).
type Index struct {
	db  *sql.DB
	dim int
}

// New opens (and assumes already migrated) the vector_entries table.
// dim is the fixed embedding dimensionality this index was created for.
func New(db *sql.DB, dim int) *Index {
	return &Index{db: db, dim: dim}
}

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Upsert(ctx context.Context, id string, vector []float32, meta vectorindex.Metadata) error {
	if len(vector) != x.dim {
		return vectorindex.Wrap("pgvectorindex.Upsert", fmt.Errorf("vector length %d does not match index dimension %d", len(vector), x.dim))
	}
	vec := pgvector.NewVector(vector)
	const q = `
		INSERT INTO vector_entries (id, workspace_id, type, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			type = excluded.type,
			embedding = excluded.embedding
	`
	if _, err := x.db.ExecContext(ctx, q, id, meta.WorkspaceID, meta.Type, vec); err != nil {
		return vectorindex.Wrap("pgvectorindex.Upsert", err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	if len(vector) != x.dim {
		return nil, vectorindex.Wrap("pgvectorindex.Search", fmt.Errorf("vector length %d does not match index dimension %d", len(vector), x.dim))
	}
	if topK <= 0 {
		topK = 10
	}
	vec := pgvector.NewVector(vector)

	q := `
		SELECT id, 1 - (embedding <=> $1::vector) AS similarity
		FROM vector_entries
		WHERE workspace_id = $2
	`
	args := []interface{}{vec, filter.WorkspaceID}
	if len(filter.Types) > 0 {
		q += ` AND type = ANY($3)`
		args = append(args, pqStringArray(filter.Types))
	}
	q += fmt.Sprintf(` ORDER BY embedding <=> $1::vector LIMIT %d`, topK)

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, vectorindex.Wrap("pgvectorindex.Search", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []vectorindex.Hit
	for rows.Next() {
		var h vectorindex.Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, vectorindex.Wrap("pgvectorindex.Search", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, vectorindex.Wrap("pgvectorindex.Search", err)
	}
	return hits, nil
}

func (x *Index) Delete(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM vector_entries WHERE id = $1`, id); err != nil {
		return vectorindex.Wrap("pgvectorindex.Delete", err)
	}
	return nil
}

// pqStringArray renders a Go string slice as a Postgres text[] literal,
// matching lib/pq's array-literal convention used elsewhere in the adapter.
func pqStringArray(ss []string) string {
	out := "{"
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "}"
}
