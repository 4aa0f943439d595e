// Package iconstore provides persistent storage for fetched icons.
// Uses pure-Go SQLite (modernc.org/sqlite), no cgo required.
package iconstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite"

	"github.com/aizatto/faviconurl/internal/icons"
)

const (
	encodingIdentity = "identity"
	encodingGzip     = "gzip"
)

// DB wraps an SQLite database holding one or more named icon stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	idb := &DB{db: db}
	if err := idb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idb, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS icons (
			store       TEXT NOT NULL,
			url         TEXT NOT NULL,
			blob        BLOB NOT NULL,
			encoding    TEXT NOT NULL DEFAULT 'identity',
			size        INTEGER NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (store, url)
		)
	`)
	return err
}

// Stores returns the single store called name. Stores are created on first
// write, so any name is available.
func (d *DB) Stores(_ context.Context, name string) ([]icons.Store, error) {
	if name == "" {
		return nil, errors.New("store name is required")
	}
	return []icons.Store{&table{db: d.db, name: name}}, nil
}

type table struct {
	db   *sql.DB
	name string
}

func (t *table) Get(ctx context.Context, key string) (icons.CachedIcon, bool, error) {
	var (
		blob     []byte
		encoding string
		size     int
	)
	err := t.db.QueryRowContext(ctx,
		`SELECT blob, encoding, size FROM icons WHERE store = ? AND url = ?`,
		t.name, key,
	).Scan(&blob, &encoding, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return icons.CachedIcon{}, false, nil
	}
	if err != nil {
		return icons.CachedIcon{}, false, fmt.Errorf("get icon %s: %w", key, err)
	}

	blob, err = decodeBlob(blob, encoding)
	if err != nil {
		return icons.CachedIcon{}, false, fmt.Errorf("decode icon %s: %w", key, err)
	}
	return icons.CachedIcon{Blob: blob, Size: size}, true, nil
}

// Add stores icon under key. Entries are immutable: adding an existing key
// keeps the first value.
func (t *table) Add(ctx context.Context, icon icons.CachedIcon, key string) error {
	blob, encoding, err := encodeBlob(icon.Blob)
	if err != nil {
		return fmt.Errorf("encode icon %s: %w", key, err)
	}

	_, err = t.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO icons (store, url, blob, encoding, size) VALUES (?, ?, ?, ?, ?)`,
		t.name, key, blob, encoding, icon.Size,
	)
	if err != nil {
		return fmt.Errorf("add icon %s: %w", key, err)
	}
	return nil
}

// encodeBlob gzips the blob when that makes it smaller. PNG and WebP icons
// are already compressed; ICO and BMP usually are not.
func encodeBlob(blob []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, "", err
	}
	if _, err := zw.Write(blob); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}

	if buf.Len() >= len(blob) {
		return blob, encodingIdentity, nil
	}
	return buf.Bytes(), encodingGzip, nil
}

func decodeBlob(blob []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingIdentity:
		return blob, nil
	case encodingGzip:
		zr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
