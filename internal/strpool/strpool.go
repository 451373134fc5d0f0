// Package strpool implements the chunked string pool backing String columns.
//
// The pool is a flat byte buffer partitioned into 40-byte chunks: 32 bytes of
// payload followed by an 8-byte little-endian link. A string occupies a chain
// of chunks. Each link holds one of three values:
//
//   - the offset of the next chunk in the chain,
//   - the offset of the chain's first chunk, marking the last chunk,
//   - FreeLink, marking the chunk as free for reuse.
//
// Strings are referenced by the offset of their first chunk (the handle).
// Handles are offsets, never addresses, so they stay valid when the buffer
// grows.
package strpool

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
)

const (
	// PayloadSize is the number of text bytes per chunk.
	PayloadSize = 32
	// LinkSize is the size of the link field trailing each payload.
	LinkSize = 8
	// ChunkSize is the full size of a chunk.
	ChunkSize = PayloadSize + LinkSize

	// FreeLink marks a chunk as free. It doubles as the absent-string handle.
	FreeLink uint64 = math.MaxUint64
)

var (
	// ErrCorruptChain is returned when a chain is misaligned, out of range,
	// runs through a free chunk, shares a chunk with another chain or does not
	// terminate.
	ErrCorruptChain = errors.New("strpool: corrupt chain")

	// ErrLeakedChunk is returned by Audit for chunks that are neither free nor live.
	ErrLeakedChunk = errors.New("strpool: leaked chunk")

	// ErrMisaligned is returned when a buffer is not a whole number of chunks.
	ErrMisaligned = errors.New("strpool: size is not a multiple of the chunk size")

	// ErrInvalidText is returned for text that contains a NUL byte.
	ErrInvalidText = errors.New("strpool: text contains NUL byte")
)

// LinkKind is the meaning of a link value relative to its chain.
type LinkKind uint8

const (
	// LinkNext points at the next chunk in the chain.
	LinkNext LinkKind = iota
	// LinkTerminal points back at the first chunk: this is the last chunk.
	LinkTerminal
	// LinkFree marks an unused chunk.
	LinkFree
)

// Classify interprets link as seen while walking the chain starting at start.
func Classify(link, start uint64) LinkKind {
	switch link {
	case FreeLink:
		return LinkFree
	case start:
		return LinkTerminal
	default:
		return LinkNext
	}
}

// MemoryAccountant is charged for pool growth.
type MemoryAccountant interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Pool is the chunked string store. It is not safe for concurrent use.
type Pool struct {
	buf  []byte
	acct MemoryAccountant
}

// New returns an empty pool. acct may be nil.
func New(acct MemoryAccountant) *Pool {
	return &Pool{acct: acct}
}

// FromBytes adopts b as the pool buffer. The pool takes ownership of b.
func FromBytes(b []byte, acct MemoryAccountant) (*Pool, error) {
	if len(b)%ChunkSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMisaligned, len(b))
	}
	p := &Pool{acct: acct}
	if err := p.acquire(len(b)); err != nil {
		return nil, err
	}
	p.buf = b
	return p, nil
}

// Bytes returns the pool buffer. It is only valid until the next mutation.
func (p *Pool) Bytes() []byte { return p.buf }

// Size returns the pool size in bytes.
func (p *Pool) Size() int { return len(p.buf) }

// Chunks returns the total number of chunks.
func (p *Pool) Chunks() int { return len(p.buf) / ChunkSize }

// FreeChunks returns the number of chunks marked free.
func (p *Pool) FreeChunks() int {
	n := 0
	for off := 0; off < len(p.buf); off += ChunkSize {
		if p.link(uint64(off)) == FreeLink {
			n++
		}
	}
	return n
}

// ChunksFor returns the number of chunks needed to store text of length n.
func ChunksFor(n int) int {
	// +1 reserves the terminator.
	return (n + PayloadSize) / PayloadSize
}

// Add stores text and returns its handle.
//
// Free chunks are reused first-fit from the start of the pool; missing chunks
// are appended. Payload bytes after the terminator are left as they were.
func (p *Pool) Add(text string) (uint64, error) {
	if strings.IndexByte(text, 0) >= 0 {
		return 0, ErrInvalidText
	}
	return p.add(text, 0)
}

// Replace stores text in place of the chain at handle and returns the new
// handle. handle may be FreeLink. The old chain is freed first so its chunks
// are reused, but only after any growth has been charged: on error the pool
// and the old string are unchanged.
func (p *Pool) Replace(handle uint64, text string) (uint64, error) {
	if strings.IndexByte(text, 0) >= 0 {
		return 0, ErrInvalidText
	}

	var old []uint64
	if handle != FreeLink {
		var err error
		if old, err = p.chain(handle); err != nil {
			return 0, err
		}
	}

	prepaid := 0
	if missing := ChunksFor(len(text)) - p.FreeChunks() - len(old); missing > 0 {
		prepaid = missing * ChunkSize
		if err := p.acquire(prepaid); err != nil {
			return 0, err
		}
	}

	for _, off := range old {
		p.setLink(off, FreeLink)
	}
	return p.add(text, prepaid)
}

// add stores text, which must not contain NUL. prepaid bytes of growth have
// already been charged to the accountant.
func (p *Pool) add(text string, prepaid int) (uint64, error) {
	needed := ChunksFor(len(text))
	offsets := make([]uint64, 0, needed)

	for off := 0; off < len(p.buf) && len(offsets) < needed; off += ChunkSize {
		if p.link(uint64(off)) == FreeLink {
			offsets = append(offsets, uint64(off))
		}
	}

	if missing := needed - len(offsets); missing > 0 {
		grow := missing * ChunkSize
		if err := p.acquire(grow - prepaid); err != nil {
			return 0, err
		}
		first := len(p.buf)
		p.buf = append(p.buf, make([]byte, grow)...)
		for i := range missing {
			offsets = append(offsets, uint64(first+i*ChunkSize))
		}
	}

	last := len(offsets) - 1
	for i, off := range offsets {
		next := offsets[0]
		if i < last {
			next = offsets[i+1]
		}
		p.setLink(off, next)

		n := 0
		if start := i * PayloadSize; start < len(text) {
			n = copy(p.buf[off:off+PayloadSize], text[start:])
		}
		if i == last {
			p.buf[off+uint64(n)] = 0
		}
	}

	return offsets[0], nil
}

// Get returns the text stored at handle.
func (p *Pool) Get(handle uint64) (string, error) {
	chain, err := p.chain(handle)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(chain) * PayloadSize)
	for i, off := range chain {
		payload := p.buf[off : off+PayloadSize]
		if i == len(chain)-1 {
			if j := bytes.IndexByte(payload, 0); j >= 0 {
				payload = payload[:j]
			}
		}
		sb.Write(payload)
	}
	return sb.String(), nil
}

// Remove marks every chunk of the chain at handle as free.
func (p *Pool) Remove(handle uint64) error {
	// Validate before touching anything so a corrupt chain is not half freed.
	if _, err := p.chain(handle); err != nil {
		return err
	}

	off := handle
	for {
		next := p.link(off)
		p.setLink(off, FreeLink)
		if next == handle {
			return nil
		}
		off = next
	}
}

// Stats summarises chunk usage.
type Stats struct {
	Chunks int
	Free   int
	Live   int
}

// Audit checks that every chunk is either free or part of exactly one of the
// given live chains. FreeLink handles are skipped.
func (p *Pool) Audit(handles iter.Seq[uint64]) (Stats, error) {
	stats := Stats{Chunks: p.Chunks()}
	owned := make([]bool, stats.Chunks)

	for h := range handles {
		if h == FreeLink {
			continue
		}
		chain, err := p.chain(h)
		if err != nil {
			return stats, err
		}
		for _, off := range chain {
			idx := off / ChunkSize
			if owned[idx] {
				return stats, fmt.Errorf("%w: chunk %d referenced twice", ErrCorruptChain, off)
			}
			owned[idx] = true
			stats.Live++
		}
	}

	for idx, live := range owned {
		if live {
			continue
		}
		off := uint64(idx * ChunkSize)
		if p.link(off) != FreeLink {
			return stats, fmt.Errorf("%w: chunk %d", ErrLeakedChunk, off)
		}
		stats.Free++
	}
	return stats, nil
}

// Verify checks that every handle is FreeLink or a well-formed chain, and
// that no two chains share a chunk. Handles that are checked together can
// then be removed without failing halfway.
func (p *Pool) Verify(handles ...uint64) error {
	seen := make(map[uint64]struct{})
	for _, h := range handles {
		if h == FreeLink {
			continue
		}
		chain, err := p.chain(h)
		if err != nil {
			return err
		}
		for _, off := range chain {
			if _, ok := seen[off]; ok {
				return fmt.Errorf("%w: chunk %d referenced twice", ErrCorruptChain, off)
			}
			seen[off] = struct{}{}
		}
	}
	return nil
}

// Validate reports whether handle is FreeLink or the offset of a chunk.
func (p *Pool) Validate(handle uint64) error {
	if handle == FreeLink {
		return nil
	}
	return p.checkOffset(handle)
}

// Release returns the pool's memory to the accountant and empties the pool.
func (p *Pool) Release() {
	if p.acct != nil && len(p.buf) > 0 {
		p.acct.ReleaseMemory(int64(len(p.buf)))
	}
	p.buf = nil
}

// chain returns the chunk offsets of the chain at handle, in order.
// The walk is bounded by the chunk count.
func (p *Pool) chain(handle uint64) ([]uint64, error) {
	if err := p.checkOffset(handle); err != nil {
		return nil, err
	}

	var chain []uint64
	off := handle
	for range p.Chunks() {
		chain = append(chain, off)
		next := p.link(off)
		switch Classify(next, handle) {
		case LinkTerminal:
			return chain, nil
		case LinkFree:
			return nil, fmt.Errorf("%w: chunk %d of chain %d is free", ErrCorruptChain, off, handle)
		}
		if err := p.checkOffset(next); err != nil {
			return nil, err
		}
		off = next
	}
	return nil, fmt.Errorf("%w: chain %d does not terminate", ErrCorruptChain, handle)
}

func (p *Pool) checkOffset(off uint64) error {
	if off%ChunkSize != 0 || off >= uint64(len(p.buf)) {
		return fmt.Errorf("%w: invalid chunk offset %d (pool size %d)", ErrCorruptChain, off, len(p.buf))
	}
	return nil
}

func (p *Pool) link(off uint64) uint64 {
	return binary.LittleEndian.Uint64(p.buf[off+PayloadSize:])
}

func (p *Pool) setLink(off, v uint64) {
	binary.LittleEndian.PutUint64(p.buf[off+PayloadSize:], v)
}

func (p *Pool) acquire(n int) error {
	if p.acct == nil || n == 0 {
		return nil
	}
	return p.acct.AcquireMemory(int64(n))
}
