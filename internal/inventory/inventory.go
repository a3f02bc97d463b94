// Package inventory records scanned ESE files in a SQLite database.
//
// Build modes:
//   - Default (CGO_ENABLED=0): uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): uses mattn/go-sqlite3
//
// Every scan run gets a UUID. Files found during the run are stored with
// their header metadata and a BLAKE3 digest of the file header, so the same
// database seen twice can be recognised across runs.
package inventory

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrScanNotFound is returned when a scan id is unknown.
var ErrScanNotFound = errors.New("scan not found")

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	root        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	scanned     INTEGER NOT NULL DEFAULT 0,
	matched     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS files (
	scan_id         TEXT NOT NULL REFERENCES scans(id),
	path            TEXT NOT NULL,
	size            INTEGER NOT NULL,
	file_type       TEXT NOT NULL,
	page_size       INTEGER NOT NULL,
	format_version  INTEGER NOT NULL,
	format_revision INTEGER NOT NULL,
	tables          INTEGER NOT NULL,
	header_blake3   TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (scan_id, path)
);
CREATE INDEX IF NOT EXISTS files_header_blake3 ON files(header_blake3);
`

// Info describes the SQLite driver compiled in. DriverType is "cgo" for
// mattn/go-sqlite3 and "purego" for modernc.org/sqlite.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		Package:    driverPackage,
	}
}

// Digest returns the hex encoded BLAKE3 hash of data.
func Digest(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Scan describes one scan run.
type Scan struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Matched    int
}

// Record is one file found during a scan.
type Record struct {
	Path           string
	Size           int64
	FileType       string
	PageSize       uint32
	FormatVersion  uint32
	FormatRevision uint32
	Tables         uint32
	HeaderDigest   string
	// Error holds the reason the file could not be opened, if any.
	Error string
}

// Store is an inventory database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the inventory database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create inventory schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginScan registers a new scan run of root and returns its id.
func (s *Store) BeginScan(ctx context.Context, root string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, root, started_at) VALUES (?, ?, ?)`,
		id, root, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("begin scan: %w", err)
	}
	return id, nil
}

// Add stores a record for scan. A second record for the same path replaces
// the first.
func (s *Store) Add(ctx context.Context, scanID string, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files
			(scan_id, path, size, file_type, page_size, format_version,
			 format_revision, tables, header_blake3, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scanID, r.Path, r.Size, r.FileType, int64(r.PageSize), int64(r.FormatVersion),
		int64(r.FormatRevision), int64(r.Tables), r.HeaderDigest, r.Error)
	if err != nil {
		return fmt.Errorf("add %s: %w", r.Path, err)
	}
	return nil
}

// FinishScan records the totals of a scan run.
func (s *Store) FinishScan(ctx context.Context, scanID string, scanned, matched int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET finished_at = ?, scanned = ?, matched = ? WHERE id = ?`,
		s.now().UTC().Format(time.RFC3339), scanned, matched, scanID)
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	return nil
}

// GetScan returns a scan run by id.
func (s *Store) GetScan(ctx context.Context, scanID string) (*Scan, error) {
	var (
		scan             Scan
		started          string
		finished         sql.NullString
		scanned, matched int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root, started_at, finished_at, scanned, matched FROM scans WHERE id = ?`,
		scanID).Scan(&scan.ID, &scan.Root, &started, &finished, &scanned, &matched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}

	if scan.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("get scan: started_at: %w", err)
	}
	if finished.Valid {
		if scan.FinishedAt, err = time.Parse(time.RFC3339, finished.String); err != nil {
			return nil, fmt.Errorf("get scan: finished_at: %w", err)
		}
	}
	scan.Scanned = scanned
	scan.Matched = matched
	return &scan, nil
}

// Records returns the records of a scan ordered by path.
func (s *Store) Records(ctx context.Context, scanID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, size, file_type, page_size, format_version, format_revision,
		       tables, header_blake3, error
		FROM files WHERE scan_id = ? ORDER BY path`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.Size, &r.FileType, &r.PageSize, &r.FormatVersion,
			&r.FormatRevision, &r.Tables, &r.HeaderDigest, &r.Error); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SeenBefore returns the paths recorded in earlier scans with the given
// header digest, excluding scanID.
func (s *Store) SeenBefore(ctx context.Context, scanID, digest string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT path FROM files WHERE header_blake3 = ? AND scan_id != ? ORDER BY path`,
		digest, scanID)
	if err != nil {
		return nil, fmt.Errorf("lookup digest: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("lookup digest: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
