// Package indexcache persists a built FrameIndex so that replaying the
// same capture repeatedly does not require a full rescan every time.
// A cache miss or a corrupt cache row is never fatal: callers fall back
// to rebuilding the index from scratch.
package indexcache

import (
	"bytes"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/velocity.report/internal/hdl/capture"
	"github.com/banshee-data/velocity.report/internal/hdl/frameindex"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Cache wraps a sqlite database holding cached FrameIndex results.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path and
// applies any outstanding migrations.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("indexcache: open %s: %w", path, err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("indexcache: load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("indexcache: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("indexcache: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("indexcache: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// DB exposes the underlying database handle, e.g. for mounting a debug
// SQL browser over it.
func (c *Cache) DB() *sql.DB {
	return c.db
}

func identity(path string) (size int64, mtimeNs int64, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("indexcache: stat %s: %w", path, err)
	}
	return fi.Size(), fi.ModTime().UnixNano(), nil
}

// Lookup returns a previously cached FrameIndex for capturePath, or
// (nil, false) on any cache miss, including a stale identity or a
// corrupt row. It never returns an error: a broken cache falls back to
// a full rescan, exactly like a miss.
func (c *Cache) Lookup(capturePath string) (*frameindex.Index, bool) {
	size, mtimeNs, err := identity(capturePath)
	if err != nil {
		return nil, false
	}

	var blob []byte
	row := c.db.QueryRow(`SELECT entries FROM frame_index_cache WHERE capture_path = ? AND capture_size = ? AND capture_mtime_ns = ?`,
		capturePath, size, mtimeNs)
	if err := row.Scan(&blob); err != nil {
		return nil, false
	}

	idx, err := decodeEntries(blob)
	if err != nil {
		log.Printf("indexcache: corrupt cache row for %s, ignoring: %v", capturePath, err)
		return nil, false
	}
	return idx, true
}

// Store persists idx for capturePath, replacing any existing row for
// that capture identity.
func (c *Cache) Store(capturePath string, idx *frameindex.Index, builtAtUnix int64) error {
	size, mtimeNs, err := identity(capturePath)
	if err != nil {
		return err
	}
	blob := encodeEntries(idx)
	id := uuid.NewString()

	_, err = c.db.Exec(`
		INSERT INTO frame_index_cache (cache_id, capture_path, capture_size, capture_mtime_ns, entries, built_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(capture_path, capture_size, capture_mtime_ns)
		DO UPDATE SET entries = excluded.entries, built_at_unix = excluded.built_at_unix`,
		id, capturePath, size, mtimeNs, blob, builtAtUnix)
	if err != nil {
		return fmt.Errorf("indexcache: store %s: %w", capturePath, err)
	}
	return nil
}

func encodeEntries(idx *frameindex.Index) []byte {
	buf := &bytes.Buffer{}
	for _, e := range idx.Entries {
		binary.Write(buf, binary.LittleEndian, int64(e.Position))
		binary.Write(buf, binary.LittleEndian, int32(e.Skip))
	}
	return buf.Bytes()
}

func decodeEntries(blob []byte) (*frameindex.Index, error) {
	const recordSize = 8 + 4
	if len(blob)%recordSize != 0 {
		return nil, fmt.Errorf("indexcache: entries blob length %d not a multiple of %d", len(blob), recordSize)
	}
	idx := &frameindex.Index{}
	r := bytes.NewReader(blob)
	for r.Len() > 0 {
		var pos int64
		var skip int32
		if err := binary.Read(r, binary.LittleEndian, &pos); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &skip); err != nil {
			return nil, err
		}
		idx.Entries = append(idx.Entries, frameindex.Entry{Position: capture.Position(pos), Skip: int(skip)})
	}
	return idx, nil
}
