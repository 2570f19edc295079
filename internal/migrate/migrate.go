// Package migrate implements the Migration Runner (§4.18): numbered SQL
// files with forward/backward sections, recorded in a schema_migrations
// table. Grounded on the teacher's internal/storage/migrations.go
// MigrationManager, adapted from its paired NNN_name.up.sql/NNN_name.down.sql
// file convention to the spec's single NNN_description.sql file with
// "-- UP MIGRATION" / "-- DOWN MIGRATION" section markers, and extended with
// a Down(count) that rolls back a bounded number of versions and a Status
// report instead of just the single current Version.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoMigrations indicates the schema_migrations table is empty.
var ErrNoMigrations = errors.New("migrate: no migrations applied")

const (
	upMarker   = "-- UP MIGRATION"
	downMarker = "-- DOWN MIGRATION"
)

// migration is one parsed NNN_description.sql file.
type migration struct {
	id   int
	name string
	up   string
	down string
}

// StatusEntry reports one migration's applied state (§4.18 status).
type StatusEntry struct {
	ID        int
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies and rolls back migrations from a directory against db,
// tracking progress in a schema_migrations table.
type Runner struct {
	db  *sql.DB
	dir string
}

// NewRunner builds a Runner, creating the schema_migrations table if it
// doesn't already exist.
func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("migrate: database connection is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrate: migrations directory %q: %w", dir, err)
	}

	r := &Runner{db: db, dir: dir}
	if err := r.ensureSchemaTable(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: creating schema_migrations: %w", err)
	}
	return r, nil
}

func (r *Runner) ensureSchemaTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Up applies every pending migration in ascending id order, each inside its
// own transaction. Returns the count of migrations applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	migrations, err := r.load()
	if err != nil {
		return 0, err
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.id] {
			continue
		}
		if err := r.runInTx(ctx, m.up, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (id, name, applied_at) VALUES (?, ?, ?)", m.id, m.name, time.Now())
			return err
		}); err != nil {
			return count, fmt.Errorf("migrate: applying %03d_%s: %w", m.id, m.name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the count most recently applied migrations in descending
// id order. count <= 0 rolls back everything applied.
func (r *Runner) Down(ctx context.Context, count int) (int, error) {
	migrations, err := r.load()
	if err != nil {
		return 0, err
	}
	byID := make(map[int]migration, len(migrations))
	for _, m := range migrations {
		byID[m.id] = m
	}

	applied, err := r.appliedVersionsDesc(ctx)
	if err != nil {
		if errors.Is(err, ErrNoMigrations) {
			return 0, nil
		}
		return 0, err
	}

	if count > 0 && count < len(applied) {
		applied = applied[:count]
	}

	rolledBack := 0
	for _, id := range applied {
		m, ok := byID[id]
		if !ok {
			return rolledBack, fmt.Errorf("migrate: no migration file found for applied version %d", id)
		}
		if err := r.runInTx(ctx, m.down, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE id = ?", id)
			return err
		}); err != nil {
			return rolledBack, fmt.Errorf("migrate: rolling back %03d_%s: %w", m.id, m.name, err)
		}
		rolledBack++
	}
	return rolledBack, nil
}

// Status reports every known migration file alongside its applied state.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	migrations, err := r.load()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: querying schema_migrations: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[int]time.Time)
	for rows.Next() {
		var id int
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("migrate: scanning schema_migrations: %w", err)
		}
		appliedAt[id] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, len(migrations))
	for i, m := range migrations {
		at, ok := appliedAt[m.id]
		entries[i] = StatusEntry{ID: m.id, Name: m.name, Applied: ok, AppliedAt: at}
	}
	return entries, nil
}

func (r *Runner) runInTx(ctx context.Context, sqlText string, after func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if strings.TrimSpace(sqlText) != "" {
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			return err
		}
	}
	if err := after(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Runner) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: querying applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// appliedVersionsDesc returns applied migration ids, highest first.
func (r *Runner) appliedVersionsDesc(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM schema_migrations ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("migrate: querying applied versions: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoMigrations
	}
	return ids, nil
}

// load reads and parses every NNN_description.sql file in the migrations
// directory, sorted ascending by id.
func (r *Runner) load() ([]migration, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: reading %q: %w", r.dir, err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := parseFilename(entry.Name())
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: reading %s: %w", entry.Name(), err)
		}
		up, down, err := splitSections(string(content))
		if err != nil {
			return nil, fmt.Errorf("migrate: %s: %w", entry.Name(), err)
		}
		m.up, m.down = up, down
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].id < migrations[j].id })
	return migrations, nil
}

// parseFilename expects NNN_description.sql.
func parseFilename(name string) (migration, error) {
	base := strings.TrimSuffix(name, ".sql")
	idx := strings.Index(base, "_")
	if idx < 0 {
		return migration{}, fmt.Errorf("migrate: %q does not match NNN_description.sql", name)
	}
	id, err := strconv.Atoi(base[:idx])
	if err != nil {
		return migration{}, fmt.Errorf("migrate: %q has a non-numeric id prefix", name)
	}
	return migration{id: id, name: base[idx+1:]}, nil
}

// splitSections divides a migration file into its up and down SQL text by
// the "-- UP MIGRATION" / "-- DOWN MIGRATION" markers.
func splitSections(content string) (up, down string, err error) {
	upIdx := strings.Index(content, upMarker)
	downIdx := strings.Index(content, downMarker)
	if upIdx < 0 || downIdx < 0 {
		return "", "", fmt.Errorf("missing %q or %q section marker", upMarker, downMarker)
	}
	if downIdx < upIdx {
		return "", "", fmt.Errorf("%q must appear after %q", downMarker, upMarker)
	}

	up = strings.TrimSpace(content[upIdx+len(upMarker) : downIdx])
	down = strings.TrimSpace(content[downIdx+len(downMarker):])
	return up, down, nil
}
