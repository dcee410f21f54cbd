// Package file persists index snapshots as a pair of files in one directory:
// a binary vector file and a SQLite metadata database. Both carry the build
// id, so a pair left half-written by a crash is detected on load.
package file

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

const (
	VectorsFile  = "vectors.bin"
	MetadataFile = "metadata.db"

	magic         = "DRVX"
	formatVersion = uint32(1)
	// magic, version, build id, dimension, count
	headerSize = 4 + 4 + 16 + 4 + 4
)

const schema = `
CREATE TABLE build (
	build_id   TEXT NOT NULL,
	dimension  INTEGER NOT NULL,
	count      INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE records (
	row_id    INTEGER PRIMARY KEY,
	source_id TEXT NOT NULL,
	page      TEXT NOT NULL,
	sequence  INTEGER NOT NULL,
	text      TEXT NOT NULL
);`

// Storage is a vectorstore.Store backed by files in dir.
type Storage struct {
	dir string
	log *zap.SugaredLogger
}

var _ vectorstore.Store = (*Storage)(nil)

// NewStorage returns a store rooted at dir. The directory is created on the
// first Save.
func NewStorage(dir string, log *zap.SugaredLogger) *Storage {
	if log == nil {
		log = logger.L()
	}
	return &Storage{dir: dir, log: log}
}

// Dir returns the directory holding the artifacts.
func (s *Storage) Dir() string { return s.dir }

// Save writes both artifacts to temporary files, syncs them, then renames
// the metadata database and finally the vector file into place.
func (s *Storage) Save(ctx context.Context, ix *vectorstore.Index) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	var temps []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range temps {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = multierr.Append(err, rmErr)
			}
		}
	}()

	vecTmp, err := s.writeVectors(ix)
	if vecTmp != "" {
		temps = append(temps, vecTmp)
	}
	if err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}
	metaTmp, err := s.writeMetadata(ctx, ix)
	if metaTmp != "" {
		temps = append(temps, metaTmp)
	}
	if err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	if err := os.Rename(metaTmp, filepath.Join(s.dir, MetadataFile)); err != nil {
		return err
	}
	if err := os.Rename(vecTmp, filepath.Join(s.dir, VectorsFile)); err != nil {
		return err
	}
	syncDir(s.dir)
	s.log.Debugw("index persisted", "dir", s.dir, "build_id", ix.BuildID(), "rows", ix.Len())
	return nil
}

func (s *Storage) writeVectors(ix *vectorstore.Index) (path string, err error) {
	f, err := os.CreateTemp(s.dir, "vectors-*.tmp")
	if err != nil {
		return "", err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	id := ix.BuildID()
	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, magic...)
	hdr = binary.LittleEndian.AppendUint32(hdr, formatVersion)
	hdr = append(hdr, id[:]...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(ix.Dimension()))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(ix.Len()))

	w := bufio.NewWriter(f)
	if _, err := w.Write(hdr); err != nil {
		return f.Name(), err
	}
	buf := make([]byte, 4)
	for _, v := range ix.Vectors() {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return f.Name(), err
		}
	}
	if err := w.Flush(); err != nil {
		return f.Name(), err
	}
	return f.Name(), f.Sync()
}

func (s *Storage) writeMetadata(ctx context.Context, ix *vectorstore.Index) (path string, err error) {
	path = filepath.Join(s.dir, "metadata-"+uuid.NewString()+".tmp")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return path, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return path, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build(build_id, dimension, count, created_at) VALUES(?, ?, ?, ?)`,
		ix.BuildID().String(), ix.Dimension(), ix.Len(), ix.CreatedAt().Format(time.RFC3339Nano)); err != nil {
		return path, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records(row_id, source_id, page, sequence, text) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return path, err
	}
	defer stmt.Close()
	for row, rec := range ix.Records() {
		if _, err := stmt.ExecContext(ctx, row, rec.Metadata.SourceID, rec.Metadata.Page, rec.Metadata.Sequence, rec.Text); err != nil {
			return path, err
		}
	}
	if err := tx.Commit(); err != nil {
		return path, err
	}
	return path, nil
}

// Load reads and cross-checks both artifacts.
func (s *Storage) Load(ctx context.Context) (*vectorstore.Index, error) {
	vecPath := filepath.Join(s.dir, VectorsFile)
	metaPath := filepath.Join(s.dir, MetadataFile)
	for _, p := range []string{vecPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, p)
			}
			return nil, err
		}
	}

	vh, data, err := readVectors(vecPath)
	if err != nil {
		return nil, err
	}
	mh, records, err := readMetadata(ctx, metaPath)
	if err != nil {
		return nil, err
	}

	switch {
	case vh.buildID != mh.buildID:
		return nil, fmt.Errorf("%w: vectors from build %s, metadata from build %s",
			domain.ErrIndexCorrupt, vh.buildID, mh.buildID)
	case vh.count != mh.count || vh.count != len(records):
		return nil, fmt.Errorf("%w: %d vectors, %d records (header says %d)",
			domain.ErrIndexCorrupt, vh.count, len(records), mh.count)
	case vh.dim != mh.dim:
		return nil, fmt.Errorf("%w: vector dimension %d, metadata dimension %d",
			domain.ErrIndexCorrupt, vh.dim, mh.dim)
	}
	return vectorstore.Restore(vh.buildID, mh.createdAt, vh.dim, data, records)
}

type header struct {
	buildID   uuid.UUID
	dim       int
	count     int
	createdAt time.Time
}

func readVectors(path string) (header, []float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return header{}, nil, err
	}
	if len(raw) < headerSize || string(raw[:4]) != magic {
		return header{}, nil, fmt.Errorf("%w: %s is not a vector file", domain.ErrIndexCorrupt, path)
	}
	if v := binary.LittleEndian.Uint32(raw[4:8]); v != formatVersion {
		return header{}, nil, fmt.Errorf("%w: unsupported vector format version %d", domain.ErrIndexCorrupt, v)
	}
	var h header
	copy(h.buildID[:], raw[8:24])
	h.dim = int(binary.LittleEndian.Uint32(raw[24:28]))
	h.count = int(binary.LittleEndian.Uint32(raw[28:32]))

	body := raw[headerSize:]
	n := len(body) / 4
	// dim*count must not be computed before both are bounded by the body.
	if len(body)%4 != 0 || (h.dim > 0 && h.count > n/h.dim) || h.dim*h.count != n {
		return header{}, nil, fmt.Errorf("%w: vector file holds %d bytes for %d vectors of dimension %d",
			domain.ErrIndexCorrupt, len(body), h.count, h.dim)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return h, data, nil
}

func readMetadata(ctx context.Context, path string) (h header, records []domain.Record, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return header{}, nil, err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	corrupt := func(err error) error {
		return fmt.Errorf("%w: %s: %w", domain.ErrIndexCorrupt, path, err)
	}

	var id, created string
	row := db.QueryRowContext(ctx, `SELECT build_id, dimension, count, created_at FROM build`)
	if err := row.Scan(&id, &h.dim, &h.count, &created); err != nil {
		return header{}, nil, corrupt(err)
	}
	if h.buildID, err = uuid.Parse(id); err != nil {
		return header{}, nil, corrupt(err)
	}
	if h.createdAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return header{}, nil, corrupt(err)
	}

	rows, err := db.QueryContext(ctx, `SELECT row_id, source_id, page, sequence, text FROM records ORDER BY row_id`)
	if err != nil {
		return header{}, nil, corrupt(err)
	}
	defer rows.Close()
	for rows.Next() {
		var rowID int
		var rec domain.Record
		if err := rows.Scan(&rowID, &rec.Metadata.SourceID, &rec.Metadata.Page, &rec.Metadata.Sequence, &rec.Text); err != nil {
			return header{}, nil, corrupt(err)
		}
		if rowID != len(records) {
			return header{}, nil, fmt.Errorf("%w: row ids not dense, found %d at position %d",
				domain.ErrIndexCorrupt, rowID, len(records))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return header{}, nil, corrupt(err)
	}
	return h, records, nil
}

// syncDir flushes the renames. Not every platform supports syncing a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
