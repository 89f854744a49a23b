package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const currentSnapshot = "current"

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding the item snapshot and the ingest ledger.
type Store struct {
	db *sql.DB
}

// DBPath returns the database file location inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "rex.db")
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = DBPath(dataDir)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Snapshot ---

// Read returns the current snapshot document.
func (s *Store) Read() ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRow("SELECT body FROM snapshots WHERE name = ?", currentSnapshot).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot: %w", err)
	}
	return body, true, nil
}

// Write replaces the current snapshot in a single statement.
func (s *Store) Write(data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		currentSnapshot, data, time.Now().UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Backup stores data as a new backup row and returns its name.
func (s *Store) Backup(data []byte) (string, error) {
	now := time.Now().UTC()
	name := fmt.Sprintf("backup-%d", now.UnixNano())
	_, err := s.db.Exec(`INSERT INTO snapshots (name, body, updated_at) VALUES (?, ?, ?)`,
		name, data, now.Format(tsLayout))
	if err != nil {
		return "", fmt.Errorf("writing snapshot backup: %w", err)
	}
	return name, nil
}

// GetBackup returns the body of a backup written by Backup.
func (s *Store) GetBackup(name string) ([]byte, error) {
	if name == currentSnapshot {
		return nil, ErrNotFound
	}
	var body []byte
	err := s.db.QueryRow("SELECT body FROM snapshots WHERE name = ?", name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return body, err
}

// ListBackups returns every backup row, newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	rows, err := s.db.Query(`
		SELECT name, updated_at, length(body) FROM snapshots
		WHERE name != ? ORDER BY updated_at DESC, name DESC`, currentSnapshot,
	)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var out []BackupInfo
	for rows.Next() {
		var b BackupInfo
		var createdAt string
		if err := rows.Scan(&b.Name, &createdAt, &b.Size); err != nil {
			return nil, err
		}
		if b.CreatedAt, err = time.Parse(tsLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", b.Name, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Ingest runs ---

// SaveIngestRun records a finished bulk-ingestion run.
func (s *Store) SaveIngestRun(r IngestRun) error {
	files := r.Files
	if files == "" {
		files = "[]"
	}
	options := r.Options
	if options == "" {
		options = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_runs (id, started_at, finished_at, files, options, added, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(tsLayout), r.FinishedAt.UTC().Format(tsLayout),
		files, options, r.Added, r.Total,
	)
	return err
}

// RecentIngestRuns returns up to limit runs, newest first.
func (s *Store) RecentIngestRuns(limit int) ([]IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, files, options, added, total
		FROM ingest_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestRun
	for rows.Next() {
		var r IngestRun
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Files, &r.Options, &r.Added, &r.Total); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(tsLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at for run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(tsLayout, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at for run %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
