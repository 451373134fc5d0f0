package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/rowdb/schema"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

const textAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,:;!?()-"

// Text returns n random printable ASCII bytes. The result never contains NUL.
func (r *RNG) Text(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = textAlphabet[r.rand.Intn(len(textAlphabet))]
	}
	return string(b)
}

// Value returns a random Go value of the type matching ct.
// Floats are finite so that values compare equal after a round trip.
func (r *RNG) Value(ct schema.ColumnType) any {
	switch ct {
	case schema.Bool:
		return r.Intn(2) == 1
	case schema.UI8:
		return uint8(r.Uint64())
	case schema.I8:
		return int8(r.Uint64())
	case schema.UI16:
		return uint16(r.Uint64())
	case schema.I16:
		return int16(r.Uint64())
	case schema.UI32:
		return uint32(r.Uint64())
	case schema.I32:
		return int32(r.Uint64())
	case schema.UI64:
		return r.Uint64()
	case schema.I64:
		return int64(r.Uint64())
	case schema.F32:
		return float32(r.Float64()*2000 - 1000)
	case schema.F64:
		return r.Float64()*2e6 - 1e6
	case schema.String:
		return r.Text(r.Intn(100))
	default:
		return nil
	}
}

// Values returns one random value per column type.
func (r *RNG) Values(types []schema.ColumnType) []any {
	out := make([]any, len(types))
	for i, ct := range types {
		out[i] = r.Value(ct)
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Compute normalization constant (harmonic number with exponent s)
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Sample from uniform and use inverse transform
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}
