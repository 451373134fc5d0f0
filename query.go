package rowdb

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/rowdb/schema"
)

// Query selects rows by single-column equality.
//
// Where adds every matching row to the selection; With keeps only the
// selected rows that also match. The first error sticks: later calls are
// no-ops and the error is reported by Err and RemoveSelection.
//
//	n, err := db.Query().Where(0, 2).With(1, "Bob").RemoveSelection()
type Query struct {
	db         *DB
	generation uint64
	// selection holds row indices.
	selection *roaring.Bitmap
	err       error
}

// Query starts an empty selection over db.
func (db *DB) Query() *Query {
	q := &Query{db: db, selection: roaring.New()}
	if err := db.checkOpen(); err != nil {
		q.err = err
		return q
	}
	q.generation = db.generation
	return q
}

// Where scans the whole table and adds every row whose column col equals v
// to the selection. v is converted as by Row.SetValue.
func (q *Query) Where(col int, v any) *Query {
	if !q.ok() {
		return q
	}
	start := time.Now()

	match, err := q.matcher(col, v)
	if err != nil {
		q.err = err
		return q
	}

	n := q.db.rows.Len()
	matched := 0
	for i := range n {
		ok, err := match(i)
		if err != nil {
			q.err = err
			return q
		}
		if ok {
			q.selection.Add(uint32(i))
			matched++
		}
	}

	q.db.opts.metricsCollector.RecordQuery(n, matched, time.Since(start))
	return q
}

// With removes every selected row whose column col does not equal v.
func (q *Query) With(col int, v any) *Query {
	if !q.ok() {
		return q
	}
	start := time.Now()

	match, err := q.matcher(col, v)
	if err != nil {
		q.err = err
		return q
	}

	scanned := int(q.selection.GetCardinality())
	drop := roaring.New()
	it := q.selection.Iterator()
	for it.HasNext() {
		i := it.Next()
		ok, err := match(int(i))
		if err != nil {
			q.err = err
			return q
		}
		if !ok {
			drop.Add(i)
		}
	}
	q.selection.AndNot(drop)

	q.db.opts.metricsCollector.RecordQuery(scanned, int(q.selection.GetCardinality()), time.Since(start))
	return q
}

// Selection returns the selected rows in table order, or nil after an error.
func (q *Query) Selection() []Row {
	if !q.ok() {
		return nil
	}
	width := q.db.rows.Width()
	rows := make([]Row, 0, q.selection.GetCardinality())
	it := q.selection.Iterator()
	for it.HasNext() {
		rows = append(rows, Row{db: q.db, offset: int(it.Next()) * width, generation: q.generation})
	}
	return rows
}

// Count returns the number of selected rows.
func (q *Query) Count() int {
	if !q.ok() {
		return 0
	}
	return int(q.selection.GetCardinality())
}

// Clear empties the selection. A sticky error is kept.
func (q *Query) Clear() *Query {
	q.selection.Clear()
	return q
}

// Err returns the first error encountered by the query.
func (q *Query) Err() error {
	q.ok()
	return q.err
}

// RemoveSelection deletes every selected row, frees their strings and
// shrinks the table. It returns the number of rows removed.
//
// Rows are deleted from the highest offset down so that pending offsets
// stay valid. If any selected string chain is damaged no row is removed.
// Afterwards every Row and Query obtained earlier is stale; q itself stays
// usable with an empty selection.
func (q *Query) RemoveSelection() (int, error) {
	if !q.ok() {
		return 0, q.err
	}
	start := time.Now()
	db := q.db
	width := db.rows.Width()

	// Every string of the selection is checked up front so that a damaged
	// chain removes nothing.
	var handles []uint64
	sel := q.selection.Iterator()
	for sel.HasNext() {
		row, err := db.rows.Row(int(sel.Next()) * width)
		if err != nil {
			return 0, q.fail(start, translateError(err))
		}
		handles = append(handles, db.rowHandles(row)...)
	}
	if err := db.pool.Verify(handles...); err != nil {
		return 0, q.fail(start, translateError(err))
	}

	var err error
	removed := 0
	it := q.selection.ReverseIterator()
	for it.HasNext() {
		if err = db.deleteRow(int(it.Next()) * width); err != nil {
			err = translateError(err)
			break
		}
		removed++
	}

	if removed > 0 {
		db.rows.Compact()
		db.generation++
	}
	q.selection.Clear()
	q.generation = db.generation
	if err != nil {
		q.err = err
	}

	db.opts.metricsCollector.RecordRemove(removed, time.Since(start), err)
	db.opts.logger.LogRemoveSelection(context.Background(), removed, db.rows.Len(), err)
	return removed, err
}

// fail records err as the query error of a removal that removed nothing.
func (q *Query) fail(start time.Time, err error) error {
	q.err = err
	q.db.opts.metricsCollector.RecordRemove(0, time.Since(start), err)
	q.db.opts.logger.LogRemoveSelection(context.Background(), 0, q.db.rows.Len(), err)
	return err
}

// ok records a closed database or a stale selection as the query error.
func (q *Query) ok() bool {
	if q.err != nil {
		return false
	}
	if err := q.db.checkOpen(); err != nil {
		q.err = err
		return false
	}
	if q.generation != q.db.generation {
		q.err = ErrStaleRow
		return false
	}
	return true
}

// matcher returns a predicate reporting whether row i has v in column col.
func (q *Query) matcher(col int, v any) (func(i int) (bool, error), error) {
	s := q.db.schema
	if !s.Has(col) {
		return nil, outOfRange(col)
	}
	ct := s.Type(col)
	target, err := convert(col, ct, v, true)
	if err != nil {
		return nil, err
	}

	width := s.RowWidth()
	off := s.Offset(col)
	size := s.Size(col)

	if ct != schema.String {
		return func(i int) (bool, error) {
			buf := q.db.rows.Bytes()
			start := i*width + off
			return decode(ct, buf[start:start+size]) == target, nil
		}, nil
	}

	return func(i int) (bool, error) {
		r := Row{db: q.db, offset: i * width, generation: q.generation}
		got, err := r.Value(col)
		if err != nil {
			return false, err
		}
		return got == target, nil
	}, nil
}
