// Package sqlitevec implements vectorindex.Index on top of the sqlite_vec
// extension (github.com/asg017/sqlite-vec-go-bindings), importing the
// ncruces variant of the bindings and registering it with sqlite_vec.Auto()
// in init. When the extension's vec0 virtual table cannot be created
// (old SQLite build, extension load failure) the index falls back to the
// teacher's own pattern for the embedded adapter: little-endian float32
// BLOBs plus an in-memory brute-force cosine scan.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"

	"github.com/scrypster/mnemex/internal/vectorindex"
)

func init() {
	sqlite_vec.Auto()
}

// Index stores one row per memory. useVec0 is decided once at construction
// time by attempting to create the vec0 virtual table; a failure there
// degrades the index to the brute-force path for the lifetime of the
// process rather than retrying on every call.
type Index struct {
	db      *sql.DB
	dim     int
	useVec0 bool
}

// New opens the vector table, preferring a vec0 virtual table and falling
// back to a plain table with a BLOB column when the extension is
// unavailable. The fallback is logged once, matching the teacher's
// log.Printf-on-degraded-path convention.
func New(ctx context.Context, db *sql.DB, dim int) (*Index, error) {
	x := &Index{db: db, dim: dim}

	vecSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vector_entries USING vec0(
			id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, dim)
	if _, err := db.ExecContext(ctx, vecSQL); err == nil {
		x.useVec0 = true
	} else {
		log.Printf("sqlitevec: vec0 virtual table unavailable, falling back to brute-force cosine: %v", err)
		const plainSQL = `
			CREATE TABLE IF NOT EXISTS vector_entries (
				id TEXT PRIMARY KEY,
				embedding BLOB NOT NULL
			)
		`
		if _, err := db.ExecContext(ctx, plainSQL); err != nil {
			return nil, vectorindex.Wrap("sqlitevec.New", err)
		}
	}

	const metaSQL = `
		CREATE TABLE IF NOT EXISTS vector_entry_meta (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			type TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, metaSQL); err != nil {
		return nil, vectorindex.Wrap("sqlitevec.New", err)
	}
	return x, nil
}

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Upsert(ctx context.Context, id string, vector []float32, meta vectorindex.Metadata) error {
	if len(vector) != x.dim {
		return vectorindex.Wrap("sqlitevec.Upsert", fmt.Errorf("vector length %d does not match index dimension %d", len(vector), x.dim))
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return vectorindex.Wrap("sqlitevec.Upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	if x.useVec0 {
		packed, err := sqlite_vec.SerializeFloat32(vector)
		if err != nil {
			return vectorindex.Wrap("sqlitevec.Upsert", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entries WHERE id = ?`, id); err != nil {
			return vectorindex.Wrap("sqlitevec.Upsert", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vector_entries (id, embedding) VALUES (?, ?)`, id, packed); err != nil {
			return vectorindex.Wrap("sqlitevec.Upsert", err)
		}
	} else {
		packed := serializeFloat32(vector)
		const q = `
			INSERT INTO vector_entries (id, embedding) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET embedding = excluded.embedding
		`
		if _, err := tx.ExecContext(ctx, q, id, packed); err != nil {
			return vectorindex.Wrap("sqlitevec.Upsert", err)
		}
	}

	const metaQ = `
		INSERT INTO vector_entry_meta (id, workspace_id, type) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET workspace_id = excluded.workspace_id, type = excluded.type
	`
	if _, err := tx.ExecContext(ctx, metaQ, id, meta.WorkspaceID, meta.Type); err != nil {
		return vectorindex.Wrap("sqlitevec.Upsert", err)
	}

	if err := tx.Commit(); err != nil {
		return vectorindex.Wrap("sqlitevec.Upsert", err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	if len(vector) != x.dim {
		return nil, vectorindex.Wrap("sqlitevec.Search", fmt.Errorf("vector length %d does not match index dimension %d", len(vector), x.dim))
	}
	if topK <= 0 {
		topK = 10
	}
	if x.useVec0 {
		return x.searchVec0(ctx, vector, topK, filter)
	}
	return x.searchBruteForce(ctx, vector, topK, filter)
}

// searchVec0 over-fetches from the vec0 KNN match and filters by workspace
// and type in Go, since vec0 only accepts equality constraints on auxiliary
// columns declared at table-creation time and the meta table is separate.
func (x *Index) searchVec0(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	packed, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, vectorindex.Wrap("sqlitevec.Search", err)
	}

	overfetch := topK * 8
	if overfetch < 64 {
		overfetch = 64
	}
	const q = `
		SELECT id, distance
		FROM vector_entries
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`
	rows, err := x.db.QueryContext(ctx, q, packed, overfetch)
	if err != nil {
		return nil, vectorindex.Wrap("sqlitevec.Search", err)
	}
	defer func() { _ = rows.Close() }()

	allowedTypes := toSet(filter.Types)
	var hits []vectorindex.Hit
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, vectorindex.Wrap("sqlitevec.Search", err)
		}
		ws, typ, ok := x.lookupMeta(ctx, id)
		if !ok || ws != filter.WorkspaceID {
			continue
		}
		if len(allowedTypes) > 0 && !allowedTypes[typ] {
			continue
		}
		hits = append(hits, vectorindex.Hit{ID: id, Score: 1 - dist})
		if len(hits) >= topK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, vectorindex.Wrap("sqlitevec.Search", err)
	}
	return hits, nil
}

// searchBruteForce loads every workspace-scoped vector into memory and
// ranks by cosine similarity, grounded on the networked adapter's own
// brute-force cosineSimilarity loop used for the embedded store.
func (x *Index) searchBruteForce(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	q := `
		SELECT v.id, v.embedding
		FROM vector_entries v
		JOIN vector_entry_meta m ON m.id = v.id
		WHERE m.workspace_id = ?
	`
	args := []interface{}{filter.WorkspaceID}
	allowedTypes := toSet(filter.Types)

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, vectorindex.Wrap("sqlitevec.Search", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, vectorindex.Wrap("sqlitevec.Search", err)
		}
		if len(allowedTypes) > 0 {
			_, typ, ok := x.lookupMeta(ctx, id)
			if !ok || !allowedTypes[typ] {
				continue
			}
		}
		emb, err := deserializeFloat32(blob, x.dim)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{id: id, score: cosineSimilarity(vector, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, vectorindex.Wrap("sqlitevec.Search", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]vectorindex.Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = vectorindex.Hit{ID: c.id, Score: c.score}
	}
	return hits, nil
}

func (x *Index) Delete(ctx context.Context, id string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return vectorindex.Wrap("sqlitevec.Delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entries WHERE id = ?`, id); err != nil {
		return vectorindex.Wrap("sqlitevec.Delete", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entry_meta WHERE id = ?`, id); err != nil {
		return vectorindex.Wrap("sqlitevec.Delete", err)
	}
	if err := tx.Commit(); err != nil {
		return vectorindex.Wrap("sqlitevec.Delete", err)
	}
	return nil
}

func (x *Index) lookupMeta(ctx context.Context, id string) (workspaceID, typ string, ok bool) {
	row := x.db.QueryRowContext(ctx, `SELECT workspace_id, type FROM vector_entry_meta WHERE id = ?`, id)
	if err := row.Scan(&workspaceID, &typ); err != nil {
		return "", "", false
	}
	return workspaceID, typ, true
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return set
}

// serializeFloat32 writes each float32 as its IEEE-754 bit pattern in
// little-endian order, the BLOB encoding of the brute-force fallback table.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(buf []byte, dim int) ([]float32, error) {
	if len(buf) != dim*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dim*4, len(buf))
	}
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

// cosineSimilarity mirrors the embedded adapter's brute-force search
// helper, computing similarity in float64 for precision.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
