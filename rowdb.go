package rowdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/hupe1980/rowdb/blobstore"
	"github.com/hupe1980/rowdb/codec"
	"github.com/hupe1980/rowdb/internal/resource"
	"github.com/hupe1980/rowdb/internal/rowtable"
	"github.com/hupe1980/rowdb/internal/strpool"
	"github.com/hupe1980/rowdb/persistence"
	"github.com/hupe1980/rowdb/schema"
)

// DB is an in-memory table of fixed-width rows with a chunked string pool.
//
// A DB is not safe for concurrent use.
type DB struct {
	opts   options
	rc     *resource.Controller
	schema *schema.Schema
	rows   *rowtable.Table
	pool   *strpool.Pool

	// stringColumns holds the indices of String columns.
	stringColumns []int
	// generation is bumped by every deletion.
	generation uint64
	closed     bool
}

// Stats describes the size of a DB.
type Stats struct {
	Columns      int
	Rows         int
	RowWidth     int
	RowBytes     int
	StringBytes  int
	StringChunks int
	FreeChunks   int
	// MemoryUsage is the memory charged against WithMemoryLimit.
	MemoryUsage int64
}

// Layout describes where each section lands in the plain file format.
type Layout struct {
	MetadataSize      int
	StringTableOffset int
	RowTableOffset    int
	Size              int
}

// New creates an empty database with the given column types.
func New(types []schema.ColumnType, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	s, err := schema.New(types...)
	if err != nil {
		return nil, err
	}

	rc := newController(o)
	rows, err := rowtable.New(s.RowWidth(), rc)
	if err != nil {
		return nil, err
	}

	return newDB(o, rc, s, rows, strpool.New(rc)), nil
}

// Open loads the database file name from the configured blob store.
//
// A missing file fails with an error matching ErrNotFound; a file whose
// contents are inconsistent fails with ErrMalformed.
func Open(ctx context.Context, name string, optFns ...Option) (*DB, error) {
	start := time.Now()
	o := applyOptions(optFns)

	var (
		db   *DB
		size int
	)
	err := blobstore.View(ctx, o.store, name, func(data []byte) error {
		size = len(data)
		rc := newController(o)
		if err := rc.AcquireIO(ctx, len(data)); err != nil {
			return err
		}
		var err error
		db, err = load(data, o, rc)
		return err
	})
	if err != nil {
		err = fmt.Errorf("open %s: %w", name, translateOpenError(err))
	}

	o.metricsCollector.RecordLoad(size, time.Since(start), err)
	rows := 0
	if db != nil {
		rows = db.Len()
	}
	o.logger.LogOpen(ctx, name, rows, err)

	if err != nil {
		return nil, err
	}
	return db, nil
}

// Read loads a database from r, which may be compressed.
func Read(r io.Reader, optFns ...Option) (*DB, error) {
	start := time.Now()
	o := applyOptions(optFns)
	rc := newController(o)

	data, err := io.ReadAll(resource.NewRateLimitedReader(context.Background(), r, rc))
	var db *DB
	if err == nil {
		db, err = load(data, o, rc)
	}
	o.metricsCollector.RecordLoad(len(data), time.Since(start), err)
	return db, err
}

// Decode loads a database from an encoded file image, which may be
// compressed. data is not retained.
func Decode(data []byte, optFns ...Option) (*DB, error) {
	start := time.Now()
	o := applyOptions(optFns)

	db, err := load(data, o, newController(o))
	o.metricsCollector.RecordLoad(len(data), time.Since(start), err)
	return db, err
}

func newController(o options) *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		IOLimitBytesPerSec: o.ioLimit,
	})
}

func newDB(o options, rc *resource.Controller, s *schema.Schema, rows *rowtable.Table, pool *strpool.Pool) *DB {
	db := &DB{
		opts:   o,
		rc:     rc,
		schema: s,
		rows:   rows,
		pool:   pool,
	}
	for i, t := range s.Types() {
		if t == schema.String {
			db.stringColumns = append(db.stringColumns, i)
		}
	}
	return db
}

func load(data []byte, o options, rc *resource.Controller) (*DB, error) {
	img, err := persistence.DecodeAny(data)
	if err != nil {
		return nil, translateError(err)
	}

	s, err := schema.New(img.Types...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	pool, err := strpool.FromBytes(img.Strings, rc)
	if err != nil {
		return nil, translateError(err)
	}
	rows, err := rowtable.FromBytes(s.RowWidth(), img.Rows, rc)
	if err != nil {
		pool.Release()
		return nil, translateError(err)
	}

	db := newDB(o, rc, s, rows, pool)
	if err := db.validateHandles(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// validateHandles checks that every string handle is absent or addresses a
// chunk, so no read can run outside the pool.
func (db *DB) validateHandles() error {
	for r := range db.rows.Len() {
		row, _ := db.rows.Row(r * db.rows.Width())
		for _, i := range db.stringColumns {
			off := db.schema.Offset(i)
			h := binary.LittleEndian.Uint64(row[off:])
			if err := db.pool.Validate(h); err != nil {
				return fmt.Errorf("%w: row %d column %d: %w", ErrMalformed, r, i, err)
			}
		}
	}
	return nil
}

// Save encodes the database and writes it to name in the configured blob
// store, replacing any existing file.
func (db *DB) Save(ctx context.Context, name string) error {
	start := time.Now()

	data, err := db.MarshalBinary()
	if err == nil {
		err = db.rc.AcquireIO(ctx, len(data))
	}
	if err == nil {
		err = db.opts.store.Put(ctx, name, data)
	}
	if err != nil {
		err = fmt.Errorf("save %s: %w", name, translateError(err))
	}

	db.opts.metricsCollector.RecordSave(len(data), time.Since(start), err)
	db.opts.logger.LogSave(ctx, name, len(data), db.opts.compression, err)
	return err
}

// MarshalBinary returns the encoded file image, compressed as configured
// with WithCompression.
func (db *DB) MarshalBinary() ([]byte, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	raw, err := persistence.Marshal(db.image())
	if err != nil {
		return nil, err
	}
	return persistence.Compress(raw, db.opts.compression)
}

// WriteTo writes the encoded file image to w.
func (db *DB) WriteTo(w io.Writer) (int64, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	rw := resource.NewRateLimitedWriter(context.Background(), w, db.rc)
	if db.opts.compression == CompressionNone {
		return persistence.Encode(rw, db.image())
	}

	data, err := db.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := rw.Write(data)
	return int64(n), err
}

func (db *DB) image() *persistence.Image {
	return &persistence.Image{
		Types:   db.schema.Types(),
		Strings: db.pool.Bytes(),
		Rows:    db.rows.Bytes(),
	}
}

// CreateRow appends a zeroed row. String columns start absent.
func (db *DB) CreateRow() (Row, error) {
	start := time.Now()
	r, err := db.createRow()
	db.opts.metricsCollector.RecordCreateRow(time.Since(start), err)
	return r, err
}

func (db *DB) createRow() (Row, error) {
	if err := db.checkOpen(); err != nil {
		return Row{}, err
	}
	off, err := db.rows.Append()
	if err != nil {
		return Row{}, translateError(err)
	}
	row, _ := db.rows.Row(off)
	for _, i := range db.stringColumns {
		binary.LittleEndian.PutUint64(row[db.schema.Offset(i):], AbsentHandle)
	}
	return Row{db: db, offset: off, generation: db.generation}, nil
}

// Insert creates a row and sets its columns from values, one per column,
// converted as by Row.SetValue. On error no row is added.
func (db *DB) Insert(values ...any) (Row, error) {
	if err := db.checkOpen(); err != nil {
		return Row{}, err
	}
	if len(values) != db.schema.Columns() {
		return Row{}, fmt.Errorf("%w: %d values for %d columns", ErrColumnOutOfRange, len(values), db.schema.Columns())
	}

	r, err := db.CreateRow()
	if err != nil {
		return Row{}, err
	}
	for i, v := range values {
		if err := r.SetValue(i, v); err != nil {
			// The row is last, so removing it shifts nothing.
			if derr := db.deleteRow(r.offset); derr != nil {
				return Row{}, fmt.Errorf("%w (rollback: %w)", err, derr)
			}
			return Row{}, err
		}
	}
	return r, nil
}

// Len returns the number of rows.
func (db *DB) Len() int {
	if db.closed {
		return 0
	}
	return db.rows.Len()
}

// Row returns the row at position i.
func (db *DB) Row(i int) (Row, error) {
	if err := db.checkOpen(); err != nil {
		return Row{}, err
	}
	if i < 0 || i >= db.rows.Len() {
		return Row{}, fmt.Errorf("%w: %d (rows %d)", ErrRowOutOfRange, i, db.rows.Len())
	}
	return Row{db: db, offset: i * db.rows.Width(), generation: db.generation}, nil
}

// Rows iterates over all rows in table order. Iteration stops early if the
// table is modified by a deletion.
func (db *DB) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if db.closed {
			return
		}
		gen := db.generation
		width := db.rows.Width()
		// Rows created during iteration are not visited.
		end := db.rows.Size()
		for off := 0; off < end; off += width {
			if db.closed || db.generation != gen {
				return
			}
			if !yield(Row{db: db, offset: off, generation: gen}) {
				return
			}
		}
	}
}

// Schema returns the database schema.
func (db *DB) Schema() *schema.Schema {
	return db.schema
}

// Stats returns size statistics.
func (db *DB) Stats() Stats {
	if db.closed {
		return Stats{Columns: db.schema.Columns(), RowWidth: db.schema.RowWidth()}
	}
	return Stats{
		Columns:      db.schema.Columns(),
		Rows:         db.rows.Len(),
		RowWidth:     db.schema.RowWidth(),
		RowBytes:     db.rows.Size(),
		StringBytes:  db.pool.Size(),
		StringChunks: db.pool.Chunks(),
		FreeChunks:   db.pool.FreeChunks(),
		MemoryUsage:  db.rc.MemoryUsage(),
	}
}

// Layout returns the section offsets of the plain encoded file.
func (db *DB) Layout() Layout {
	meta := persistence.MetadataSize(db.schema.Columns())
	strs := 0
	rows := 0
	if !db.closed {
		strs = db.pool.Size()
		rows = db.rows.Size()
	}
	return Layout{
		MetadataSize:      meta,
		StringTableOffset: meta,
		RowTableOffset:    meta + strs,
		Size:              meta + strs + rows,
	}
}

// Check verifies that every string pool chunk is either free or part of
// exactly one string referenced by a row.
func (db *DB) Check() error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	_, err := db.pool.Audit(db.handles())
	return translateError(err)
}

// handles yields every string handle in the table, absent ones included.
func (db *DB) handles() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		width := db.rows.Width()
		buf := db.rows.Bytes()
		for off := 0; off < len(buf); off += width {
			for _, i := range db.stringColumns {
				if !yield(binary.LittleEndian.Uint64(buf[off+db.schema.Offset(i):])) {
					return
				}
			}
		}
	}
}

// Export encodes all rows as a list of value lists. A nil codec uses the
// one configured with WithCodec.
func (db *DB) Export(c codec.Codec) ([]byte, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if c == nil {
		c = db.opts.codec
	}

	out := make([][]any, 0, db.rows.Len())
	for r := range db.Rows() {
		values, err := r.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return c.Marshal(out)
}

// deleteRow frees the strings of the row at off and removes it. All
// chains are verified before any is freed.
func (db *DB) deleteRow(off int) error {
	row, err := db.rows.Row(off)
	if err != nil {
		return err
	}
	if err := db.pool.Verify(db.rowHandles(row)...); err != nil {
		return translateError(err)
	}
	for _, i := range db.stringColumns {
		if err := db.releaseString(row[db.schema.Offset(i):]); err != nil {
			return translateError(err)
		}
	}
	return db.rows.Delete(off)
}

// rowHandles returns the string handles stored in row.
func (db *DB) rowHandles(row []byte) []uint64 {
	out := make([]uint64, 0, len(db.stringColumns))
	for _, i := range db.stringColumns {
		out = append(out, binary.LittleEndian.Uint64(row[db.schema.Offset(i):]))
	}
	return out
}

// storeString replaces the string referenced by the handle in b. The
// handle is only updated once the new string is stored, so a failed write
// keeps the old value.
func (db *DB) storeString(b []byte, text string) error {
	h, err := db.pool.Replace(binary.LittleEndian.Uint64(b), text)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, h)
	return nil
}

// releaseString frees the string referenced by the handle in b and marks
// it absent.
func (db *DB) releaseString(b []byte) error {
	h := binary.LittleEndian.Uint64(b)
	if h == AbsentHandle {
		return nil
	}
	if err := db.pool.Remove(h); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, AbsentHandle)
	return nil
}

func (db *DB) checkOpen() error {
	if db == nil || db.closed {
		return ErrClosed
	}
	return nil
}
