package handle

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Kind identifies what a Handle refers to.
type Kind uint8

const (
	KindListener       Kind = 0x11
	KindListenerPoller Kind = 0x12
	KindTopic          Kind = 0x13
	KindSubscriber     Kind = 0x14
	KindPublisher      Kind = 0x15
	KindEntry          Kind = 0x16
)

const (
	kindShift = 24
	instShift = 20
	instMask  = 0xf
	indexMask = 0xfffff
)

// Limits of the handle layout.
const (
	MaxIndex    = indexMask
	MaxInstance = instMask
)

// Handle is an opaque reference to a table entry.
// Layout: bits 30..24 kind, 23..20 instance, 19..0 index. Zero is invalid.
type Handle uint32

// New packs a kind, instance and index into a Handle.
func New(kind Kind, inst, index int) Handle {
	if inst < 0 || inst > MaxInstance || index < 0 || index > MaxIndex {
		return 0
	}
	return Handle(uint32(kind&0x7f)<<kindShift | uint32(inst)<<instShift | uint32(index))
}

func (h Handle) Kind() Kind    { return Kind(h>>kindShift) & 0x7f }
func (h Handle) Instance() int { return int(h>>instShift) & instMask }
func (h Handle) Index() int    { return int(h) & indexMask }

// IsValid reports whether h is non-zero.
func (h Handle) IsValid() bool { return h != 0 }

// Is reports whether h is a valid handle of the given kind.
func (h Handle) Is(kind Kind) bool { return h.IsValid() && h.Kind() == kind }

func (h Handle) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%02x:%d:%d", uint8(h.Kind()), h.Instance(), h.Index())
}

// Table stores entries addressed by Handle. It is not safe for concurrent
// use; callers serialize access.
//
// Indexes are handed out in increasing order and only reused after the
// index space wraps, so a removed handle stays stale for a long time.
type Table[T any] struct {
	kind    Kind
	inst    int
	next    int
	entries map[int]*T
}

// NewTable creates an empty table for handles of the given kind and instance.
func NewTable[T any](kind Kind, inst int) *Table[T] {
	return &Table[T]{
		kind:    kind,
		inst:    inst,
		next:    1,
		entries: make(map[int]*T),
	}
}

// Add allocates a handle and stores the entry built by newEntry.
// Returns the zero handle and nil when the index space is exhausted.
func (t *Table[T]) Add(newEntry func(Handle) *T) (Handle, *T) {
	if len(t.entries) >= MaxIndex {
		return 0, nil
	}
	for {
		index := t.next
		t.next++
		if t.next > MaxIndex {
			t.next = 1
		}
		if _, used := t.entries[index]; used {
			continue
		}
		h := New(t.kind, t.inst, index)
		entry := newEntry(h)
		t.entries[index] = entry
		return h, entry
	}
}

// Get returns the entry for h, or nil if h is stale or of another table.
func (t *Table[T]) Get(h Handle) *T {
	if !t.owns(h) {
		return nil
	}
	return t.entries[h.Index()]
}

// Remove deletes and returns the entry for h, or nil if absent.
func (t *Table[T]) Remove(h Handle) *T {
	if !t.owns(h) {
		return nil
	}
	entry, ok := t.entries[h.Index()]
	if !ok {
		return nil
	}
	delete(t.entries, h.Index())
	return entry
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int { return len(t.entries) }

// All iterates live entries in index order.
func (t *Table[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for _, index := range slices.Sorted(maps.Keys(t.entries)) {
			entry, ok := t.entries[index]
			if !ok {
				continue
			}
			if !yield(New(t.kind, t.inst, index), entry) {
				return
			}
		}
	}
}

func (t *Table[T]) owns(h Handle) bool {
	return h.Is(t.kind) && h.Instance() == t.inst
}
