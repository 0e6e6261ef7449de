package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/frartenzo/webeep-sync/internal/utils"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS file_index (
    course_id INTEGER NOT NULL,
    filepath TEXT NOT NULL,
    filename TEXT NOT NULL,
    size INTEGER NOT NULL,
    modified_at INTEGER NOT NULL, -- unix seconds
    downloaded_at INTEGER NOT NULL, -- unix seconds
    PRIMARY KEY (course_id, filepath, filename)
);

CREATE INDEX IF NOT EXISTS idx_file_index_course ON file_index(course_id);
`

// Record is one local index entry. A record exists iff the corresponding
// file was fully downloaded and still exists locally.
type Record struct {
	CourseID     int64  `db:"course_id"`
	Filepath     string `db:"filepath"`
	Filename     string `db:"filename"`
	Size         int64  `db:"size"`
	ModifiedAt   int64  `db:"modified_at"`
	DownloadedAt int64  `db:"downloaded_at"`
}

// Key identifies the record within its course.
func (r *Record) Key() string {
	return path.Join(r.Filepath, r.Filename)
}

// Index is the durable mapping of downloaded file identities to their last
// known metadata, backed by SQLite. Single process, single writer.
type Index struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	dbPath string
}

// OpenIndex creates or opens the index database at dbPath.
func OpenIndex(dbPath string) (*Index, error) {
	dbDir := filepath.Dir(dbPath)
	if err := utils.EnsureDir(dbDir); err != nil {
		return nil, fmt.Errorf("create index directory %s: %w", dbDir, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index db at %s: %w", dbPath, err)
	}

	// SQLite best practice for WAL mode
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize index schema: %w", err)
	}

	return &Index{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

// Get returns all records for a course.
func (ix *Index) Get(courseID int64) ([]*Record, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var records []*Record
	err := ix.db.Select(&records,
		"SELECT course_id, filepath, filename, size, modified_at, downloaded_at FROM file_index WHERE course_id = ?",
		courseID)
	if err != nil {
		return nil, fmt.Errorf("query course %d: %w", courseID, err)
	}
	return records, nil
}

// Lookup returns the record for one file, or nil when absent.
func (ix *Index) Lookup(courseID int64, filePath, fileName string) (*Record, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var record Record
	err := ix.db.Get(&record,
		"SELECT course_id, filepath, filename, size, modified_at, downloaded_at FROM file_index WHERE course_id = ? AND filepath = ? AND filename = ?",
		courseID, filePath, fileName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %d %s/%s: %w", courseID, filePath, fileName, err)
	}
	return &record, nil
}

// Upsert inserts or replaces a record.
func (ix *Index) Upsert(record *Record) error {
	if record == nil {
		return errors.New("cannot upsert nil record")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.NamedExec(
		`INSERT OR REPLACE INTO file_index (course_id, filepath, filename, size, modified_at, downloaded_at)
		 VALUES (:course_id, :filepath, :filename, :size, :modified_at, :downloaded_at)`,
		record)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Remove deletes a record.
func (ix *Index) Remove(courseID int64, filePath, fileName string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec(
		"DELETE FROM file_index WHERE course_id = ? AND filepath = ? AND filename = ?",
		courseID, filePath, fileName)
	if err != nil {
		return fmt.Errorf("delete record %d %s/%s: %w", courseID, filePath, fileName, err)
	}
	return nil
}

// All returns every record in the index.
func (ix *Index) All() ([]*Record, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var records []*Record
	err := ix.db.Select(&records,
		"SELECT course_id, filepath, filename, size, modified_at, downloaded_at FROM file_index")
	if err != nil {
		return nil, fmt.Errorf("query all records: %w", err)
	}
	return records, nil
}

// Count returns the number of records in the index.
func (ix *Index) Count() (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var count int
	if err := ix.db.Get(&count, "SELECT COUNT(*) FROM file_index"); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
