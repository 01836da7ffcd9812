package sandbox

import (
	"crypto/md5"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sys/unix"
)

// Record is one project's entry in the container index.
type Record struct {
	ProjectPath string
	ContainerID string
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// RecordStore persists the mapping from project path to its warm
// container id at <home>/.ftl/containers.db. The database itself is
// shared across every project (sqlite's own busy_timeout serializes
// concurrent writers), but claiming a specific project's container is
// guarded by a per-project advisory lock under lockDir, held only for the
// lookup-then-claim step — never for the store's whole lifetime — so a
// slow boot for one project never blocks a concurrent `ftl` run against a
// different project.
type RecordStore struct {
	db      *sql.DB
	lockDir string
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS containers (
    project_path TEXT PRIMARY KEY,
    container_id TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    last_used_at TEXT NOT NULL
);
`

// OpenRecordStore opens (creating if needed) the container index at path.
func OpenRecordStore(path string) (*RecordStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create record dir: %w", err)
	}

	lockDir := path + ".locks"
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create lock dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sandbox: open record db: %w", err)
	}
	if _, err := db.Exec(recordSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sandbox: apply record schema: %w", err)
	}

	return &RecordStore{db: db, lockDir: lockDir}, nil
}

// Close closes the database. Per-project locks are not held across calls,
// so there is nothing else to release here.
func (r *RecordStore) Close() error {
	return r.db.Close()
}

// LockProject acquires an exclusive advisory lock scoped to projectPath
// and returns a func to release it. Callers should hold the lock only for
// the lookup-then-claim decision, not for the container boot that follows
// — two `ftl` processes racing to boot the SAME project should serialize
// on who claims an existing warm container, but a process booting a
// DIFFERENT project must never wait on it.
func (r *RecordStore) LockProject(projectPath string) (release func(), err error) {
	sum := md5.Sum([]byte(projectPath))
	key := fmt.Sprintf("%x", sum)[:12]
	lockPath := filepath.Join(r.lockDir, key+".lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sandbox: open project lock %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("sandbox: lock project %s: %w", projectPath, err)
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// Lookup returns the record for projectPath, if any.
func (r *RecordStore) Lookup(projectPath string) (Record, bool) {
	var rec Record
	var created, used string
	err := r.db.QueryRow(
		`SELECT project_path, container_id, created_at, last_used_at FROM containers WHERE project_path = ?`,
		projectPath,
	).Scan(&rec.ProjectPath, &rec.ContainerID, &created, &used)
	if err != nil {
		return Record{}, false
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	rec.LastUsedAt, _ = time.Parse(time.RFC3339, used)
	return rec, true
}

// Put upserts the container id for projectPath.
func (r *RecordStore) Put(projectPath, containerID string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := r.db.Exec(
		`INSERT INTO containers (project_path, container_id, created_at, last_used_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_path) DO UPDATE SET container_id = excluded.container_id, last_used_at = excluded.last_used_at`,
		projectPath, containerID, now, now,
	)
	if err != nil {
		return fmt.Errorf("sandbox: save record for %s: %w", projectPath, err)
	}
	return nil
}

// Delete removes projectPath's record.
func (r *RecordStore) Delete(projectPath string) error {
	_, err := r.db.Exec(`DELETE FROM containers WHERE project_path = ?`, projectPath)
	return err
}

// All returns every known record, used by `ftl` cleanup tooling.
func (r *RecordStore) All() ([]Record, error) {
	rows, err := r.db.Query(`SELECT project_path, container_id, created_at, last_used_at FROM containers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var created, used string
		if err := rows.Scan(&rec.ProjectPath, &rec.ContainerID, &created, &used); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		rec.LastUsedAt, _ = time.Parse(time.RFC3339, used)
		out = append(out, rec)
	}
	return out, rows.Err()
}
