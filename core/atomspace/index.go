package atomspace

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/emirpasic/gods/v2/trees/redblacktree"
	lru "github.com/hashicorp/golang-lru"

	"github.com/cogpy/atomspace/core/atom"
)

// contentKey builds the canonical dedup key for a node or link: type joined
// with either its name or the decimal values of its outgoing handles.
// Links and nodes never collide because the type namespaces are disjoint
// (a type is registered as exactly one of NODE or LINK).
func nodeContentKey(t atom.Type, name string) string {
	var b strings.Builder
	b.WriteString(string(t))
	b.WriteByte('\x00')
	b.WriteString(name)
	return b.String()
}

func linkContentKey(t atom.Type, outgoing []atom.Handle) string {
	var b strings.Builder
	b.WriteString(string(t))
	for _, h := range outgoing {
		b.WriteByte('\x00')
		b.WriteString(strconv.FormatUint(uint64(h), 10))
	}
	return b.String()
}

// indexes holds every secondary index spec.md §4.2 requires, keyed either
// directly by handle or by a dense ordinal for the roaring-bitmap-backed
// type and incoming-set indexes.
type indexes struct {
	// content is the authoritative canonicalisation map: contentKey -> handle.
	content map[string]atom.Handle
	// contentCache is an LRU front-cache over content, avoiding repeated
	// string-builder allocation and map probing on the hot duplicate-insert
	// path under churn (see SPEC_FULL.md §4.2 EXPANSION note).
	contentCache *lru.Cache

	ordinals      map[atom.Handle]uint32
	ordinalHandle []atom.Handle
	nextOrdinal   uint32

	// incoming maps a handle's ordinal to the bitmap of link ordinals that
	// reference it directly (spec.md invariant 5).
	incoming map[uint32]*roaring.Bitmap

	// typeExact maps a type to the bitmap of atom ordinals of exactly that
	// type (not subtypes; subtype union is resolved via atom.Subtypes at
	// query time in AtomsByType).
	typeExact *redblacktree.Tree[atom.Type, *roaring.Bitmap]
}

func newIndexes(cacheSize int) *indexes {
	cache, err := lru.New(cacheSize)
	if err != nil {
		// lru.New only errors on size <= 0; fall back to a minimal cache
		// rather than letting a misconfigured size crash construction.
		cache, _ = lru.New(1)
	}
	return &indexes{
		content:      make(map[string]atom.Handle),
		contentCache: cache,
		ordinals:     make(map[atom.Handle]uint32),
		incoming:     make(map[uint32]*roaring.Bitmap),
		typeExact: redblacktree.NewWith[atom.Type, *roaring.Bitmap](
			func(a, b atom.Type) int { return strings.Compare(string(a), string(b)) },
		),
	}
}

func (ix *indexes) lookupContent(key string) (atom.Handle, bool) {
	if v, ok := ix.contentCache.Get(key); ok {
		return v.(atom.Handle), true
	}
	h, ok := ix.content[key]
	if ok {
		ix.contentCache.Add(key, h)
	}
	return h, ok
}

func (ix *indexes) putContent(key string, h atom.Handle) {
	ix.content[key] = h
	ix.contentCache.Add(key, h)
}

func (ix *indexes) deleteContent(key string) {
	delete(ix.content, key)
	ix.contentCache.Remove(key)
}

// ordinalFor returns the dense ordinal for h, allocating a fresh one if h
// has not been seen before. Ordinals are never reused within a process,
// which keeps stale bitmap bits from a freed ordinal from being
// reinterpreted as a different, later atom.
func (ix *indexes) ordinalFor(h atom.Handle) uint32 {
	if o, ok := ix.ordinals[h]; ok {
		return o
	}
	o := ix.nextOrdinal
	ix.nextOrdinal++
	ix.ordinals[h] = o
	ix.ordinalHandle = append(ix.ordinalHandle, h)
	return o
}

func (ix *indexes) typeBitmap(t atom.Type) *roaring.Bitmap {
	bm, found := ix.typeExact.Get(t)
	if !found {
		bm = roaring.New()
		ix.typeExact.Put(t, bm)
	}
	return bm
}

func (ix *indexes) addToType(t atom.Type, ordinal uint32) {
	ix.typeBitmap(t).Add(ordinal)
}

func (ix *indexes) removeFromType(t atom.Type, ordinal uint32) {
	if bm, found := ix.typeExact.Get(t); found {
		bm.Remove(ordinal)
	}
}

func (ix *indexes) incomingBitmap(ordinal uint32) *roaring.Bitmap {
	bm, ok := ix.incoming[ordinal]
	if !ok {
		bm = roaring.New()
		ix.incoming[ordinal] = bm
	}
	return bm
}

func (ix *indexes) addIncoming(outgoingOrdinal, linkOrdinal uint32) {
	ix.incomingBitmap(outgoingOrdinal).Add(linkOrdinal)
}

func (ix *indexes) removeIncoming(outgoingOrdinal, linkOrdinal uint32) {
	if bm, ok := ix.incoming[outgoingOrdinal]; ok {
		bm.Remove(linkOrdinal)
	}
}

func (ix *indexes) handleAt(ordinal uint32) atom.Handle {
	return ix.ordinalHandle[ordinal]
}
