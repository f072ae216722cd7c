package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is where the questionnaire tables live unless told otherwise.
const DefaultSchema = "public"

// Migration is one numbered SQL file from the migrations directory.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt time.Time
}

// MigrationStatus pairs a migration file with whether the schema has it.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator brings a schema's questionnaire tables up to date from a directory
// of NNN_name.sql files. Applied versions are tracked in <schema>._migrations.
type Migrator struct {
	pool *pgxpool.Pool
	dir  string
}

func NewMigrator(pool *pgxpool.Pool, migrationsDir string) *Migrator {
	return &Migrator{pool: pool, dir: migrationsDir}
}

// EnsureMigrationsTable creates schema and its bookkeeping table.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context, schema string) error {
	ident := quoteSchema(schema)
	if _, err := m.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + ident + `._migrations (
    version    INTEGER PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ DEFAULT NOW()
)`
	if _, err := m.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s._migrations: %w", schema, err)
	}
	return nil
}

// migrationVersion extracts N from "N_name.sql". Anything else is not a
// migration and is ignored by LoadMigrations.
func migrationVersion(filename string) (int, bool) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, false
	}
	prefix, _, found := strings.Cut(filename, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LoadMigrations returns the directory's migrations ordered by version.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %s: %w", m.dir, err)
	}

	var out []Migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		v, ok := migrationVersion(f.Name())
		if !ok {
			continue
		}
		body, err := os.ReadFile(filepath.Join(m.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", f.Name(), err)
		}
		out = append(out, Migration{Version: v, Name: f.Name(), SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// appliedAt maps each recorded version to the time it was applied.
func (m *Migrator) appliedAt(ctx context.Context, schema string) (map[int]time.Time, error) {
	rows, err := m.pool.Query(ctx, "SELECT version, applied_at FROM "+quoteSchema(schema)+"._migrations")
	if err != nil {
		return nil, fmt.Errorf("read %s._migrations: %w", schema, err)
	}
	recorded, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Migration, error) {
		var mig Migration
		err := row.Scan(&mig.Version, &mig.AppliedAt)
		return mig, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s._migrations: %w", schema, err)
	}

	applied := make(map[int]time.Time, len(recorded))
	for _, mig := range recorded {
		applied[mig.Version] = mig.AppliedAt
	}
	return applied, nil
}

// AppliedVersions reports which versions schema already has.
func (m *Migrator) AppliedVersions(ctx context.Context, schema string) (map[int]bool, error) {
	at, err := m.appliedAt(ctx, schema)
	if err != nil {
		return nil, err
	}
	versions := make(map[int]bool, len(at))
	for v := range at {
		versions[v] = true
	}
	return versions, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	return m.UpTo(ctx, schema, 0)
}

// UpTo applies pending migrations with version <= target. A zero target means
// no upper bound. Each file commits on its own, so a failure leaves earlier
// files applied and the returned count reflects them.
func (m *Migrator) UpTo(ctx context.Context, schema string, target int) (int, error) {
	if err := m.EnsureMigrationsTable(ctx, schema); err != nil {
		return 0, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}
	done, err := m.AppliedVersions(ctx, schema)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, mig := range migrations {
		if target > 0 && mig.Version > target {
			break
		}
		if done[mig.Version] {
			continue
		}
		if err := m.apply(ctx, schema, mig); err != nil {
			return n, fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		n++
	}
	return n, nil
}

// apply runs mig with schema first on the search_path, so unqualified table
// names in the file land in schema, and records it in the same transaction.
func (m *Migrator) apply(ctx context.Context, schema string, mig Migration) error {
	ident := quoteSchema(schema)
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident+", public"); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "INSERT INTO "+ident+"._migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
		if err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
}

// Status lists every migration file with its applied state in schema.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	if err := m.EnsureMigrationsTable(ctx, schema); err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedAt(ctx, schema)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

func quoteSchema(schema string) string {
	if schema == "" {
		schema = DefaultSchema
	}
	return pgx.Identifier{schema}.Sanitize()
}
