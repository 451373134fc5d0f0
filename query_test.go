package rowdb

import (
	"testing"

	"github.com/hupe1980/rowdb/schema"
	"github.com/hupe1980/rowdb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indices(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Index()
	}
	return out
}

func TestQuery_Conjunction(t *testing.T) {
	rng := testutil.NewRNG(7)
	db, err := New([]schema.ColumnType{schema.UI8, schema.I32, schema.String})
	require.NoError(t, err)

	labels := []string{"red", "green", "blue"}
	type rec struct {
		a uint8
		b int32
		c string
	}
	var recs []rec
	for range 200 {
		r := rec{uint8(rng.Intn(4)), int32(rng.Intn(3) - 1), labels[rng.Intn(len(labels))]}
		_, err := db.Insert(r.a, r.b, r.c)
		require.NoError(t, err)
		recs = append(recs, r)
	}

	for a := range 4 {
		for _, c := range labels {
			var want []int
			for i, r := range recs {
				if int(r.a) == a && r.c == c {
					want = append(want, i)
				}
			}

			q1 := db.Query().Where(0, a).With(2, c)
			q2 := db.Query().Where(2, c).With(0, a)
			require.NoError(t, q1.Err())
			require.NoError(t, q2.Err())

			got := indices(q1.Selection())
			assert.Equal(t, indices(q2.Selection()), got)
			if want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, want, got)
			}
			assert.Equal(t, len(want), q1.Count())
		}
	}

	// Repeated With narrows further.
	q := db.Query().Where(0, 1).With(1, -1).With(2, "blue")
	for _, r := range q.Selection() {
		values, err := r.Values()
		require.NoError(t, err)
		assert.Equal(t, []any{uint8(1), int32(-1), "blue"}, values)
	}
}

func TestQuery_WhereIsUnion(t *testing.T) {
	db := newScenarioDB(t)

	q := db.Query().Where(0, 2).Where(0, 2).Where(1, "This is another row.")
	require.NoError(t, q.Err())
	assert.Equal(t, []int{0, 1}, indices(q.Selection()))

	assert.Equal(t, 0, q.Clear().Count())
	assert.Equal(t, 0, db.Query().With(0, 2).Count())
}

func TestQuery_RemoveSelection(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.UI32, schema.String})
	require.NoError(t, err)
	for i, s := range []string{"A", "B", "C", "D"} {
		_, err := db.Insert(i+1, s)
		require.NoError(t, err)
	}
	before := db.Stats()

	q := db.Query().Where(1, "B").Where(1, "D")
	assert.Equal(t, 2, q.Count())

	n, err := q.RemoveSelection()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, [][]any{{uint32(1), "A"}, {uint32(3), "C"}}, collect(t, db))

	after := db.Stats()
	assert.Equal(t, before.RowBytes-2*before.RowWidth, after.RowBytes)
	assert.Equal(t, 2, after.FreeChunks)
	assert.NoError(t, db.Check())

	// The query stays usable with an empty selection.
	assert.Equal(t, 0, q.Count())
	assert.Equal(t, 1, q.Where(0, 3).Count())

	n, err = db.Query().RemoveSelection()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQuery_StaleAfterRemoval(t *testing.T) {
	db := newScenarioDB(t)

	first, err := db.Row(0)
	require.NoError(t, err)
	older := db.Query().Where(0, 4)

	// Appends do not invalidate existing handles.
	_, err = db.CreateRow()
	require.NoError(t, err)
	_, err = first.Value(0)
	require.NoError(t, err)

	_, err = db.Query().Where(0, 3).RemoveSelection()
	require.NoError(t, err)

	_, err = first.Value(0)
	assert.ErrorIs(t, err, ErrStaleRow)
	assert.ErrorIs(t, Set(first, 0, uint32(9)), ErrStaleRow)

	assert.ErrorIs(t, older.Err(), ErrStaleRow)
	assert.Nil(t, older.Selection())
	_, err = older.RemoveSelection()
	assert.ErrorIs(t, err, ErrStaleRow)
	assert.Equal(t, 3, db.Len())

	fresh, err := db.Row(0)
	require.NoError(t, err)
	v, err := Get[uint32](fresh, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
}

func TestQuery_StickyErrors(t *testing.T) {
	db := newScenarioDB(t)

	q := db.Query().Where(0, "two").Where(0, 2)
	assert.ErrorIs(t, q.Err(), ErrTypeMismatch)
	assert.Equal(t, 0, q.Count())
	n, err := q.RemoveSelection()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, db.Len())

	q = db.Query().Where(5, 1)
	assert.ErrorIs(t, q.Err(), ErrColumnOutOfRange)

	q = db.Query().Where(0, -1)
	assert.ErrorIs(t, q.Err(), ErrTypeMismatch)
}
