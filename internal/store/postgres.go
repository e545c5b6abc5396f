package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// applies the embedded migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		sql, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observePostgres(start time.Time) {
	metrics.StoreLatency.WithLabelValues("postgres").Observe(time.Since(start).Seconds())
}

// RecordUpload inserts a pinned content record.
func (s *PostgresStore) RecordUpload(ctx context.Context, rec *models.UploadRecord) error {
	defer observePostgres(time.Now())
	prepare(rec)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO uploads (id, cid, kind, name, category, mime_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.CID, string(rec.Kind), rec.Name, rec.Category, rec.MimeType, rec.Size, rec.CreatedAt)
	return err
}

// GetUpload returns the most recent record for cid, or nil.
func (s *PostgresStore) GetUpload(ctx context.Context, cid string) (*models.UploadRecord, error) {
	defer observePostgres(time.Now())

	rec := &models.UploadRecord{}
	var kind string
	err := s.pool.QueryRow(ctx, `
		SELECT id, cid, kind, name, category, mime_type, size, created_at
		FROM uploads WHERE cid = $1
		ORDER BY created_at DESC LIMIT 1
	`, cid).Scan(&rec.ID, &rec.CID, &kind, &rec.Name, &rec.Category, &rec.MimeType, &rec.Size, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Kind = models.UploadKind(kind)
	return rec, nil
}

// ListUploads returns records newest first with the total count.
func (s *PostgresStore) ListUploads(ctx context.Context, limit, offset int) ([]models.UploadRecord, int, error) {
	defer observePostgres(time.Now())

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, cid, kind, name, category, mime_type, size, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.CID, &kind, &rec.Name, &rec.Category, &rec.MimeType, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		rec.Kind = models.UploadKind(kind)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// CountUploads returns the number of recorded uploads.
func (s *PostgresStore) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// GetMostRecentUpload returns the timestamp of the newest upload, or nil.
func (s *PostgresStore) GetMostRecentUpload(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM uploads`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}
