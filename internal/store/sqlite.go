package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/market.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/market.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		cid TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT DEFAULT '',
		category TEXT DEFAULT '',
		mime_type TEXT DEFAULT '',
		size INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_cid ON uploads(cid);
	CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func observeSQLite(start time.Time) {
	metrics.StoreLatency.WithLabelValues("sqlite").Observe(time.Since(start).Seconds())
}

// RecordUpload inserts a pinned content record.
func (s *SQLiteStore) RecordUpload(ctx context.Context, rec *models.UploadRecord) error {
	defer observeSQLite(time.Now())
	prepare(rec)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, cid, kind, name, category, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CID, string(rec.Kind), rec.Name, rec.Category, rec.MimeType, rec.Size, rec.CreatedAt)
	return err
}

// GetUpload returns the most recent record for cid, or nil.
func (s *SQLiteStore) GetUpload(ctx context.Context, cid string) (*models.UploadRecord, error) {
	defer observeSQLite(time.Now())

	row := s.db.QueryRowContext(ctx, `
		SELECT id, cid, kind, name, category, mime_type, size, created_at
		FROM uploads WHERE cid = ?
		ORDER BY created_at DESC LIMIT 1
	`, cid)
	rec, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.UploadRecord, error) {
	rec := &models.UploadRecord{}
	var kind string
	if err := row.Scan(&rec.ID, &rec.CID, &kind, &rec.Name, &rec.Category, &rec.MimeType, &rec.Size, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Kind = models.UploadKind(kind)
	return rec, nil
}

// ListUploads returns records newest first with the total count.
func (s *SQLiteStore) ListUploads(ctx context.Context, limit, offset int) ([]models.UploadRecord, int, error) {
	defer observeSQLite(time.Now())

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cid, kind, name, category, mime_type, size, created_at
		FROM uploads
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

// CountUploads returns the number of recorded uploads.
func (s *SQLiteStore) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// GetMostRecentUpload returns the timestamp of the newest upload, or nil.
func (s *SQLiteStore) GetMostRecentUpload(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM uploads ORDER BY created_at DESC LIMIT 1
	`).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
