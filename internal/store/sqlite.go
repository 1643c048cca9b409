package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/setevik/faultwatch/internal/fault"
)

// SQLiteBackend stores occurrence records in an SQLite database. Every
// read-modify-write runs in an immediate transaction, which serializes writers
// across processes sharing the file.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates an SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

func (b *SQLiteBackend) Location() string { return b.path }

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) Load() (*Snapshot, error) {
	return loadSnapshot(b.db)
}

func (b *SQLiteBackend) Update(fn func(*Snapshot) bool) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	snap, err := loadSnapshot(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !fn(snap) {
		return tx.Rollback()
	}
	if err := saveSnapshot(tx, snap); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stats: %w", err)
	}
	return nil
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func loadSnapshot(q queryer) (*Snapshot, error) {
	snap := newSnapshot()

	var lastGC string
	err := q.QueryRow(`SELECT value FROM meta WHERE key = 'last_gc'`).Scan(&lastGC)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("reading last gc: %w", err)
	}
	if lastGC != "" {
		snap.LastGC, _ = time.Parse(time.RFC3339Nano, lastGC)
	}

	rows, err := q.Query(`SELECT fingerprint, severity, message, file, line, first_seen_at, last_seen_at,
		count, last_notified_at, suppressed_since_notify, last_notified_to FROM faults`)
	if err != nil {
		return nil, fmt.Errorf("querying faults: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		snap.Faults[o.Fingerprint] = o
	}
	return snap, rows.Err()
}

func saveSnapshot(tx *sql.Tx, snap *Snapshot) error {
	if _, err := tx.Exec(`DELETE FROM faults`); err != nil {
		return fmt.Errorf("clearing faults: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO faults (fingerprint, severity, message, file, line, first_seen_at, last_seen_at,
			count, last_notified_at, suppressed_since_notify, last_notified_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range snap.Faults {
		var notifiedAt sql.NullString
		if ts := o.Notification.LastNotifiedAt; ts != nil {
			notifiedAt = sql.NullString{String: formatTime(*ts), Valid: true}
		}
		_, err := stmt.Exec(
			o.Fingerprint,
			o.Info.Severity.String(),
			o.Info.Message,
			o.Info.File,
			o.Info.Line,
			formatTime(o.FirstSeenAt),
			formatTime(o.LastSeenAt),
			o.Count,
			notifiedAt,
			o.Notification.SuppressedSinceNotify,
			o.Notification.LastNotifiedTo,
		)
		if err != nil {
			return fmt.Errorf("inserting fault %s: %w", o.Fingerprint, err)
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('last_gc', ?)`, formatTime(snap.LastGC))
	if err != nil {
		return fmt.Errorf("writing last gc: %w", err)
	}
	return nil
}

func scanOccurrence(rows *sql.Rows) (fault.Occurrence, error) {
	var o fault.Occurrence
	var sev, firstSeen, lastSeen string
	var notifiedAt, notifiedTo sql.NullString

	err := rows.Scan(
		&o.Fingerprint,
		&sev,
		&o.Info.Message,
		&o.Info.File,
		&o.Info.Line,
		&firstSeen,
		&lastSeen,
		&o.Count,
		&notifiedAt,
		&o.Notification.SuppressedSinceNotify,
		&notifiedTo,
	)
	if err != nil {
		return o, fmt.Errorf("scanning fault row: %w", err)
	}

	o.Info.Severity, err = fault.ParseSeverity(sev)
	if err != nil {
		return o, fmt.Errorf("fault %s: %w", o.Fingerprint, err)
	}
	o.FirstSeenAt, _ = time.Parse(time.RFC3339Nano, firstSeen)
	o.LastSeenAt, _ = time.Parse(time.RFC3339Nano, lastSeen)
	if notifiedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, notifiedAt.String); err == nil {
			o.Notification.LastNotifiedAt = &ts
		}
	}
	o.Notification.LastNotifiedTo = notifiedTo.String
	return o, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS faults (
			fingerprint             TEXT PRIMARY KEY,
			severity                TEXT NOT NULL,
			message                 TEXT NOT NULL,
			file                    TEXT NOT NULL,
			line                    INTEGER NOT NULL,
			first_seen_at           TEXT NOT NULL,
			last_seen_at            TEXT NOT NULL,
			count                   INTEGER NOT NULL,
			last_notified_at        TEXT,
			suppressed_since_notify INTEGER NOT NULL DEFAULT 0,
			last_notified_to        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_faults_last_seen ON faults(last_seen_at)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}
