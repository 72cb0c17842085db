// Package strtab implements the compiler's string intern table: the only
// long-lived form of identifier. Its one user is internal/template, whose
// instantiation cache keys off the 32-bit Handle returned here; symbol and
// type tables key off plain strings and IDs instead. Once inserted,
// strings are never freed or rewritten; the table persists for the whole
// compilation, outliving the per-translation-unit AST arena (§5).
package strtab

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Handle is a stable 32-bit identifier for an interned byte string.
type Handle uint32

// Invalid is never returned by Intern; it marks an unset Handle field.
const Invalid Handle = 0

// Table is a concurrency-safe intern table. The zero value is not usable;
// create one with New, which reserves the sentinel slot 0 for Invalid, so
// the first real string always lands in slot 1.
type Table struct {
	mu      sync.RWMutex
	strs    []string         // index 0 is an unused placeholder for Invalid.
	byHash  map[uint64][]Handle // hash -> candidate handles (may collide).
}

// New returns an empty Table, ready for interning.
func New() *Table {
	return &Table{
		strs:   []string{""},
		byHash: make(map[uint64][]Handle),
	}
}

// Intern returns the Handle for s, inserting it if this is the first time s
// has been seen. Intern is idempotent: repeated calls with the same bytes
// return the same Handle.
func (t *Table) Intern(s string) Handle {
	h := xxhash.Sum64String(s)

	t.mu.RLock()
	for _, cand := range t.byHash[h] {
		if t.strs[cand] == s {
			t.mu.RUnlock()
			return cand
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check under the write lock: another goroutine may have interned
	// the same string between the RUnlock above and this Lock.
	for _, cand := range t.byHash[h] {
		if t.strs[cand] == s {
			return cand
		}
	}
	handle := Handle(len(t.strs))
	t.strs = append(t.strs, s)
	t.byHash[h] = append(t.byHash[h], handle)
	return handle
}

// String returns the byte string for a Handle previously returned by
// Intern. Panics on an out-of-range handle, which indicates a compiler bug
// (a handle minted by one Table used against another, or data corruption).
func (t *Table) String(h Handle) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h) <= 0 || int(h) >= len(t.strs) {
		panic(fmt.Sprintf("strtab: handle %d out of range", h))
	}
	return t.strs[h]
}

// Len returns the number of distinct strings interned so far (excluding the
// Invalid sentinel).
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strs) - 1
}

// Builder composes a temporary concatenation of fragments and commits the
// result to a Table atomically in one Intern call, mirroring the
// append/commit shape the original FlashCpp StringBuilder uses for building
// mangled-name and lazy-instantiation lookup keys piecewise.
type Builder struct {
	t  *Table
	sb []byte
}

// NewBuilder returns a Builder that will commit into t.
func NewBuilder(t *Table) *Builder {
	return &Builder{t: t}
}

// Append appends a literal fragment and returns the Builder for chaining.
func (b *Builder) Append(s string) *Builder {
	b.sb = append(b.sb, s...)
	return b
}

// AppendHandle appends the string behind handle h and returns the Builder
// for chaining.
func (b *Builder) AppendHandle(h Handle) *Builder {
	return b.Append(b.t.String(h))
}

// Preview returns the composed string without interning it.
func (b *Builder) Preview() string {
	return string(b.sb)
}

// Commit interns the composed fragments as a single string and resets the
// Builder so it can be reused.
func (b *Builder) Commit() Handle {
	h := b.t.Intern(string(b.sb))
	b.sb = b.sb[:0]
	return h
}
