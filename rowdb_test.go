package rowdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hupe1980/rowdb/blobstore"
	"github.com/hupe1980/rowdb/codec"
	"github.com/hupe1980/rowdb/schema"
	"github.com/hupe1980/rowdb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenario = []struct {
	id   uint32
	text string
}{
	{2, "Hello there :)"},
	{3, "This is another row."},
	{4, "This is a longer string, and also another row."},
}

func newScenarioDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := New([]schema.ColumnType{schema.UI32, schema.String}, opts...)
	require.NoError(t, err)
	for _, s := range scenario {
		row, err := db.CreateRow()
		require.NoError(t, err)
		require.NoError(t, Set(row, 0, s.id))
		require.NoError(t, Set(row, 1, s.text))
	}
	return db
}

func collect(t *testing.T, db *DB) [][]any {
	t.Helper()
	var out [][]any
	for r := range db.Rows() {
		v, err := r.Values()
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestScenario_SaveAndOpen(t *testing.T) {
	ctx := context.Background()
	db := newScenarioDB(t)

	var texts []string
	for r := range db.Rows() {
		s, err := Get[string](r, 1)
		require.NoError(t, err)
		texts = append(texts, s)
	}
	assert.Equal(t, []string{scenario[0].text, scenario[1].text, scenario[2].text}, texts)

	path := filepath.Join(t.TempDir(), "scenario.rdb")
	require.NoError(t, db.Save(ctx, path))

	loaded, err := Open(ctx, path)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, db.Schema().Types(), loaded.Schema().Types())
	require.Equal(t, 3, loaded.Len())
	for i, s := range scenario {
		r, err := loaded.Row(i)
		require.NoError(t, err)
		id, err := Get[uint32](r, 0)
		require.NoError(t, err)
		text, err := Get[string](r, 1)
		require.NoError(t, err)
		assert.Equal(t, s.id, id)
		assert.Equal(t, s.text, text)
	}
	assert.NoError(t, loaded.Check())
}

func TestLayout(t *testing.T) {
	db := newScenarioDB(t)

	// Two one-chunk strings and one two-chunk string.
	assert.Equal(t, Layout{
		MetadataSize:      12,
		StringTableOffset: 12,
		RowTableOffset:    172,
		Size:              208,
	}, db.Layout())

	var buf bytes.Buffer
	n, err := db.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(208), n)

	data := buf.Bytes()
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data))
	assert.Equal(t, uint64(160), binary.LittleEndian.Uint64(data[4:]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[172:]))
}

func TestRoundTrip_Random(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := testutil.NewRNG(seed)

		types := make([]schema.ColumnType, 1+rng.Intn(8))
		for i := range types {
			types[i] = schema.ColumnType(rng.Intn(12))
		}

		db, err := New(types)
		require.NoError(t, err)

		var want [][]any
		for range rng.Intn(50) {
			values := rng.Values(types)
			_, err := db.Insert(values...)
			require.NoError(t, err)
			want = append(want, values)
		}

		// Overwrite some strings to leave free chunks behind.
		for r := range db.Rows() {
			for i, ct := range types {
				if ct == schema.String && rng.Intn(3) == 0 {
					text := rng.Text(rng.Intn(80))
					require.NoError(t, Set(r, i, text))
					want[r.Index()][i] = text
				}
			}
		}
		require.NoError(t, db.Check())

		for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
			var buf bytes.Buffer
			db.opts.compression = c
			_, err := db.WriteTo(&buf)
			require.NoError(t, err)

			loaded, err := Read(&buf)
			require.NoError(t, err, "seed %d, %s", seed, c)
			assert.Equal(t, types, loaded.Schema().Types())
			assert.Equal(t, want, collect(t, loaded), "seed %d, %s", seed, c)
			assert.NoError(t, loaded.Check())
		}
	}
}

func TestStringOverwrite_LeakFree(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.String, schema.String})
	require.NoError(t, err)

	rows := make([]Row, 4)
	for i := range rows {
		rows[i], err = db.Insert("filler", "x")
		require.NoError(t, err)
	}

	values := []string{
		"short",
		"a string that needs two chunks of the pool",
		"and one that is long enough to need three chunks of thirty two bytes",
	}
	for _, v := range values {
		require.NoError(t, Set(rows[2], 0, v))
		require.NoError(t, db.Check())

		st := db.Stats()
		assert.LessOrEqual(t, st.FreeChunks, st.StringChunks)
	}

	got, err := Get[string](rows[2], 0)
	require.NoError(t, err)
	assert.Equal(t, values[2], got)

	// Neighbouring strings are untouched.
	for _, r := range rows {
		s, err := Get[string](r, 1)
		require.NoError(t, err)
		assert.Equal(t, "x", s)
	}
}

func TestChunkReuse(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.String})
	require.NoError(t, err)

	row, err := db.CreateRow()
	require.NoError(t, err)

	require.NoError(t, Set(row, 0, "a string that needs two chunks of the pool"))
	chunks := db.Stats().StringChunks
	assert.Equal(t, 2, chunks)

	require.NoError(t, row.Clear(0))
	assert.Equal(t, 2, db.Stats().FreeChunks)

	other, err := db.CreateRow()
	require.NoError(t, err)
	require.NoError(t, Set(other, 0, "fits in one chunk"))
	require.NoError(t, Set(row, 0, "so does this"))

	st := db.Stats()
	assert.Equal(t, chunks, st.StringChunks)
	assert.Equal(t, 0, st.FreeChunks)
	assert.NoError(t, db.Check())
}

func TestDefaultAbsentString(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.I64, schema.String})
	require.NoError(t, err)

	row, err := db.CreateRow()
	require.NoError(t, err)

	absent, err := row.IsAbsent(1)
	require.NoError(t, err)
	assert.True(t, absent)

	h, err := row.Handle(1)
	require.NoError(t, err)
	assert.Equal(t, AbsentHandle, h)

	s, err := Get[string](row, 1)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	// An empty string is stored and distinct from absent.
	require.NoError(t, Set(row, 1, ""))
	absent, err = row.IsAbsent(1)
	require.NoError(t, err)
	assert.False(t, absent)
	assert.Equal(t, 1, db.Stats().StringChunks)

	require.NoError(t, row.Clear(1))
	absent, err = row.IsAbsent(1)
	require.NoError(t, err)
	assert.True(t, absent)

	// The absent handle survives a round trip.
	data, err := db.MarshalBinary()
	require.NoError(t, err)
	loaded, err := Decode(data)
	require.NoError(t, err)
	r, err := loaded.Row(0)
	require.NoError(t, err)
	absent, err = r.IsAbsent(1)
	require.NoError(t, err)
	assert.True(t, absent)
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, schema.ErrNoColumns)

	_, err = New([]schema.ColumnType{schema.ColumnType(42)})
	assert.ErrorIs(t, err, schema.ErrInvalidColumnType)
}

func TestOpen_NotFound(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing.rdb"))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Open(ctx, "missing.rdb", WithBlobStore(blobstore.NewMemoryStore()))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDecode_Malformed(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.String})
	require.NoError(t, err)
	_, err = db.Insert("x")
	require.NoError(t, err)

	valid, err := db.MarshalBinary()
	require.NoError(t, err)
	// Header is 11 bytes, the pool one 40-byte chunk, the row one handle.
	require.Len(t, valid, 59)

	withHandle := func(h uint64) []byte {
		b := bytes.Clone(valid)
		binary.LittleEndian.PutUint64(b[51:], h)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"Truncated", valid[:5]},
		{"TrailingByte", append(bytes.Clone(valid), 0)},
		{"MisalignedHandle", withHandle(7)},
		{"HandleOutOfRange", withHandle(40)},
		{"CorruptFrame", append([]byte{0x28, 0xb5, 0x2f, 0xfd}, 1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	// A corrupt chain that passes the handle check is caught when read.
	b := bytes.Clone(valid)
	binary.LittleEndian.PutUint64(b[11+32:], AbsentHandle)
	loaded, err := Decode(b)
	require.NoError(t, err)
	r, err := loaded.Row(0)
	require.NoError(t, err)
	_, err = r.Value(0)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, loaded.Check(), ErrMalformed)
}

func TestInsert(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.UI8, schema.String, schema.F32})
	require.NoError(t, err)

	row, err := db.Insert(7, "seven", 7.5)
	require.NoError(t, err)
	values, err := row.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{uint8(7), "seven", float32(7.5)}, values)

	// A failing value rolls the row back and frees its strings.
	_, err = db.Insert(8, "eight", "not a float")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, 1, db.Len())
	assert.NoError(t, db.Check())

	_, err = db.Insert(1, "too few")
	assert.ErrorIs(t, err, ErrColumnOutOfRange)

	// The earlier row is still valid.
	s, err := Get[string](row, 1)
	require.NoError(t, err)
	assert.Equal(t, "seven", s)
}

func TestRow_ByIndex(t *testing.T) {
	db := newScenarioDB(t)

	r, err := db.Row(2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Index())
	assert.Equal(t, 24, r.Offset())

	_, err = db.Row(3)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = db.Row(-1)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestRows_StopsAfterDeletion(t *testing.T) {
	db := newScenarioDB(t)

	seen := 0
	for r := range db.Rows() {
		seen++
		if r.Index() == 0 {
			_, err := db.Query().Where(0, 4).RemoveSelection()
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 2, db.Len())
}

func TestClose(t *testing.T) {
	db := newScenarioDB(t, WithMemoryLimit(1<<20))
	row, err := db.Row(0)
	require.NoError(t, err)
	assert.Positive(t, db.Stats().MemoryUsage)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.Equal(t, int64(0), db.rc.MemoryUsage())
	assert.Equal(t, 0, db.Len())

	_, err = db.CreateRow()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = row.Value(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Query().Err(), ErrClosed)
	assert.ErrorIs(t, db.Save(context.Background(), "x"), ErrClosed)
	_, err = db.Export(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryLimit(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.UI64}, WithMemoryLimit(100))
	require.NoError(t, err)

	var createErr error
	for range 20 {
		if _, createErr = db.CreateRow(); createErr != nil {
			break
		}
	}
	assert.ErrorIs(t, createErr, ErrMemoryLimitExceeded)
	assert.Equal(t, 12, db.Len())
	assert.LessOrEqual(t, db.Stats().MemoryUsage, int64(100))

	// Loading is charged against the limit too.
	data, err := db.MarshalBinary()
	require.NoError(t, err)
	_, err = Decode(data, WithMemoryLimit(50))
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
}

func TestExport(t *testing.T) {
	db := newScenarioDB(t, WithCodec(codec.JSON{}))

	data, err := db.Export(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[[2,"Hello there :)"],[3,"This is another row."],[4,"This is a longer string, and also another row."]]`, string(data))

	fast, err := db.Export(codec.GoJSON{})
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(fast))
}

func TestBlobStores(t *testing.T) {
	ctx := context.Background()
	primary := blobstore.NewMemoryStore()
	replica := blobstore.NewLocalStore(t.TempDir())
	store := blobstore.NewMirrorStore(primary, replica)

	db := newScenarioDB(t, WithBlobStore(store), WithCompression(CompressionLZ4), WithIOLimit(1<<20))
	require.NoError(t, db.Save(ctx, "tables/people.rdb"))

	names, err := replica.List(ctx, "tables/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/people.rdb"}, names)

	for _, s := range []blobstore.BlobStore{primary, replica} {
		loaded, err := Open(ctx, "tables/people.rdb", WithBlobStore(s))
		require.NoError(t, err)
		assert.Equal(t, collect(t, db), collect(t, loaded))
	}
}

func TestMetricsAndLogging(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	var logs bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := blobstore.NewMemoryStore()

	db := newScenarioDB(t,
		WithMetricsCollector(metrics),
		WithLogger(logger),
		WithBlobStore(store),
	)
	require.NoError(t, db.Save(ctx, "people.rdb"))

	_, err := db.Query().Where(0, 3).RemoveSelection()
	require.NoError(t, err)

	_, err = Open(ctx, "people.rdb", WithBlobStore(store), WithMetricsCollector(metrics), WithLogger(logger))
	require.NoError(t, err)
	_, err = Open(ctx, "missing.rdb", WithBlobStore(store), WithMetricsCollector(metrics), WithLogger(logger))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats.CreateRowCount)
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Equal(t, int64(208), stats.SaveBytes)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(3), stats.QueryScanned)
	assert.Equal(t, int64(1), stats.QueryMatched)
	assert.Equal(t, int64(1), stats.RowsRemoved)
	assert.Equal(t, int64(2), stats.LoadCount)
	assert.Equal(t, int64(1), stats.LoadErrors)

	out := logs.String()
	assert.Contains(t, out, `"msg":"database saved"`)
	assert.Contains(t, out, `"msg":"selection removed"`)
	assert.Contains(t, out, `"msg":"database opened"`)
	assert.Contains(t, out, `"msg":"open failed"`)
}

func TestOptions_NilValues(t *testing.T) {
	db, err := New([]schema.ColumnType{schema.Bool}, WithLogger(nil), WithMetricsCollector(nil), WithCodec(nil), nil)
	require.NoError(t, err)
	_, err = db.CreateRow()
	require.NoError(t, err)

	data, err := db.Export(nil)
	require.NoError(t, err)
	assert.Equal(t, "[[false]]", string(data))
}
