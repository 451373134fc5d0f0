package rowdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/rowdb/blobstore"
	"github.com/hupe1980/rowdb/internal/rowtable"
	"github.com/hupe1980/rowdb/internal/strpool"
	"github.com/hupe1980/rowdb/schema"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"NotFound", blobstore.ErrNotFound, ErrNotFound},
		{"InvalidText", strpool.ErrInvalidText, ErrInvalidText},
		{"CorruptChain", strpool.ErrCorruptChain, ErrMalformed},
		{"LeakedChunk", strpool.ErrLeakedChunk, ErrMalformed},
		{"PoolMisaligned", strpool.ErrMisaligned, ErrMalformed},
		{"RowsMisaligned", rowtable.ErrMisaligned, ErrMalformed},
		{"Wrapped", fmt.Errorf("load: %w", strpool.ErrCorruptChain), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	assert.NoError(t, translateError(nil))

	other := errors.New("boom")
	assert.Same(t, other, translateError(other))

	// Errors already in the public set are not wrapped twice.
	once := translateError(strpool.ErrCorruptChain)
	assert.Equal(t, once, translateError(once))
}

func TestColumnError(t *testing.T) {
	err := mismatch(2, schema.F64, "string")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.NotErrorIs(t, err, ErrColumnOutOfRange)
	assert.EqualError(t, err, "column 2: column type mismatch: expected f64, got string")

	err = outOfRange(-1)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
	assert.EqualError(t, err, "column -1: column index out of range")
}
