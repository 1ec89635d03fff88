package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/prodsearch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		fields TEXT NOT NULL,
		index_type TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		price REAL NOT NULL,
		rating REAL NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE TABLE IF NOT EXISTS index_snapshots (
		collection TEXT PRIMARY KEY,
		index_type TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateCollection inserts the collection row. It fails if the name is taken.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, meta *CollectionMeta) error {
	meta.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, fields, index_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		meta.Name, meta.Dimension, meta.Fields, meta.IndexType, meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", meta.Name, err)
	}
	return nil
}

// GetCollection returns the collection row for name.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*CollectionMeta, error) {
	var meta CollectionMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT name, dimension, fields, index_type, created_at
		 FROM collections WHERE name = ?`, name,
	).Scan(&meta.Name, &meta.Dimension, &meta.Fields, &meta.IndexType, &meta.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// DropCollection deletes the collection row, its records and its snapshot. Dropping a missing
// collection is not an error.
func (s *SQLiteStorage) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM records WHERE collection = ?`,
		`DELETE FROM index_snapshots WHERE collection = ?`,
		`DELETE FROM collections WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// ListRecords returns every record of the collection ordered by id.
func (s *SQLiteStorage) ListRecords(ctx context.Context, collection string) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, category, price, rating, embedding
		 FROM records WHERE collection = ? ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecords returns the records that exist for ids, keyed by id. Missing ids are absent from the map.
func (s *SQLiteStorage) GetRecords(ctx context.Context, collection string, ids []int64) (map[int64]*models.Record, error) {
	out := make(map[int64]*models.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, category, price, rating, embedding
		 FROM records WHERE collection = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (*models.Record, error) {
	var rec models.Record
	var blob []byte
	if err := rows.Scan(&rec.ID, &rec.Fields.Name, &rec.Fields.Description, &rec.Fields.Category,
		&rec.Fields.Price, &rec.Fields.Rating, &blob); err != nil {
		return nil, err
	}
	vec, err := decodeFloat32Slice(blob)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Fields.ID = rec.ID
	rec.Vector = vec
	return &rec, nil
}

// InsertRecords inserts records and replaces the snapshot in a transaction. A nil snapshot
// removes any existing one so a stale graph is never restored.
func (s *SQLiteStorage) InsertRecords(ctx context.Context, collection string, records []*models.Record, snapshot *IndexSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (collection, id, name, description, category, price, rating, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		f := rec.Fields
		if _, err := stmt.ExecContext(ctx, collection, rec.ID, f.Name, f.Description, f.Category,
			f.Price, f.Rating, encodeFloat32Slice(rec.Vector)); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", rec.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_snapshots WHERE collection = ?`, collection); err != nil {
		return err
	}
	if snapshot != nil {
		snapshot.CreatedAt = time.Now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_snapshots (collection, index_type, record_count, data, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			collection, snapshot.IndexType, snapshot.RecordCount, snapshot.Data, snapshot.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save index snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// GetIndexSnapshot returns the stored snapshot for the collection.
func (s *SQLiteStorage) GetIndexSnapshot(ctx context.Context, collection string) (*IndexSnapshot, error) {
	var snap IndexSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT index_type, record_count, data, created_at
		 FROM index_snapshots WHERE collection = ?`, collection,
	).Scan(&snap.IndexType, &snap.RecordCount, &snap.Data, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func encodeFloat32Slice(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func decodeFloat32Slice(b []byte) ([]float32, error) {
	const size = 4
	if len(b)%size != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of %d", len(b), size)
	}
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out, nil
}
