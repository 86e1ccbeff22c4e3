// Package atomspace implements the hypergraph knowledge store (C2):
// content-addressed insertion, lookup by handle/type/name, the
// incoming-set index, type-hierarchy-aware enumeration, and concurrent
// access under a reader/writer lock discipline (spec.md §4.2, §5).
package atomspace

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/storage"
)

// BackendError is pushed to an AtomSpace's error channel when a
// write-through call to an attached backend fails; the backend is then
// marked degraded rather than rolling back the in-memory mutation
// (spec.md §4.2, §5, Open Question ii).
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Op, e.Err)
}

type attachedBackend struct {
	name     string
	node     storage.StorageNode
	mode     storage.Mode
	degraded bool
}

// AtomSpace is the in-memory hypergraph store. It is explicitly an
// instance — there is no process-wide singleton (spec.md §9) — so callers
// may construct as many independent AtomSpaces as they need.
type AtomSpace struct {
	mu sync.RWMutex

	cfg *Config
	log *log.Logger

	atoms map[atom.Handle]*atom.Atom
	ix    *indexes

	backends []*attachedBackend
	errCh    chan BackendError

	fetchGroup singleflight.Group

	generation uint64
}

// Generation returns a monotonically increasing counter bumped on every
// mutating operation (add/remove/set-truth-value). The matcher's
// query-result cache (SPEC_FULL.md §4.4 EXPANSION note) uses it to
// invalidate memoized bindings without tracking individual atoms.
func (as *AtomSpace) Generation() uint64 {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.generation
}

// New constructs an empty AtomSpace. A nil cfg uses DefaultConfig().
func New(cfg *Config) *AtomSpace {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &AtomSpace{
		cfg:   cfg,
		log:   log.New(os.Stderr, "atomspace: ", log.LstdFlags),
		atoms: make(map[atom.Handle]*atom.Atom),
		ix:    newIndexes(cfg.ContentCacheSize),
		errCh: make(chan BackendError, cfg.ErrorChannelSize),
	}
}

// Errors returns the channel BackendErrors are pushed to. Callers that
// never drain it simply never observe degradations; the channel drops
// rather than blocks once full.
func (as *AtomSpace) Errors() <-chan BackendError { return as.errCh }

func (as *AtomSpace) reportError(be BackendError) {
	select {
	case as.errCh <- be:
	default:
		as.log.Printf("dropping backend error (channel full): %v", be)
	}
}

// AttachStorage registers a storage node for write-through. Mode is
// recorded with the backend; in either mode a mutation waits until the
// backend's StoreAtom returns, and whether that call persists or only
// enqueues is up to the backend itself; see storage.Mode.
func (as *AtomSpace) AttachStorage(ctx context.Context, name string, node storage.StorageNode, mode storage.Mode) error {
	if err := node.Open(ctx); err != nil {
		return atom.NewError(atom.StorageUnavailable, "AttachStorage", err)
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	as.backends = append(as.backends, &attachedBackend{name: name, node: node, mode: mode})
	return nil
}

// AddNode is idempotent: it returns the existing handle if (type, name) is
// already present, otherwise allocates a fresh one (spec.md §4.2).
func (as *AtomSpace) AddNode(ctx context.Context, t atom.Type, name string) (atom.Handle, error) {
	if !atom.IsNodeType(t) {
		return 0, atom.NewError(atom.InvalidArgument, "AddNode", fmt.Errorf("type %q is not a node type", t))
	}

	as.mu.Lock()
	key := nodeContentKey(t, name)
	if h, ok := as.ix.lookupContent(key); ok {
		as.mu.Unlock()
		return h, nil
	}

	n, err := atom.NewNode(t, name)
	if err != nil {
		as.mu.Unlock()
		return 0, err
	}
	as.insertLocked(key, n)
	as.mu.Unlock()

	as.writeThrough(ctx, n)
	return n.Handle(), nil
}

// AddLink is idempotent and fails with InvalidArgument if any outgoing
// handle is unknown to this store (spec.md §4.2, invariant 3: closure).
func (as *AtomSpace) AddLink(ctx context.Context, t atom.Type, outgoing []atom.Handle) (atom.Handle, error) {
	if !atom.IsLinkType(t) {
		return 0, atom.NewError(atom.InvalidArgument, "AddLink", fmt.Errorf("type %q is not a link type", t))
	}

	as.mu.Lock()
	for _, o := range outgoing {
		if _, ok := as.atoms[o]; !ok {
			as.mu.Unlock()
			return 0, atom.NewError(atom.InvalidArgument, "AddLink", fmt.Errorf("outgoing handle %d unknown to this store", o))
		}
	}

	key := linkContentKey(t, outgoing)
	if h, ok := as.ix.lookupContent(key); ok {
		as.mu.Unlock()
		return h, nil
	}

	l, err := atom.NewLink(t, outgoing)
	if err != nil {
		as.mu.Unlock()
		return 0, err
	}
	as.insertLocked(key, l)
	as.mu.Unlock()

	as.writeThrough(ctx, l)
	return l.Handle(), nil
}

// insertLocked performs step 2-3 of the insertion algorithm (spec.md §4.2):
// allocate, store, and update every secondary index, including incoming-set
// entries for each outgoing atom of a link. Caller must hold as.mu.
func (as *AtomSpace) insertLocked(key string, a *atom.Atom) {
	as.atoms[a.Handle()] = a
	as.ix.putContent(key, a.Handle())
	as.generation++

	ordinal := as.ix.ordinalFor(a.Handle())
	as.ix.addToType(a.Type(), ordinal)

	if a.Kind() == atom.KindLink {
		outgoing, _ := a.Outgoing()
		for _, o := range outgoing {
			oOrd := as.ix.ordinalFor(o)
			as.ix.addIncoming(oOrd, ordinal)
		}
	}
}

// Get is a constant-time lookup by handle.
func (as *AtomSpace) Get(h atom.Handle) (*atom.Atom, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	a, ok := as.atoms[h]
	return a, ok
}

// GetNode looks up a node by content.
func (as *AtomSpace) GetNode(t atom.Type, name string) (atom.Handle, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.ix.lookupContent(nodeContentKey(t, name))
}

// GetLink looks up a link by content.
func (as *AtomSpace) GetLink(t atom.Type, outgoing []atom.Handle) (atom.Handle, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.ix.lookupContent(linkContentKey(t, outgoing))
}

// AtomsByType enumerates every handle of type t; when includeSubtypes is
// true the result also includes every registered subtype of t (spec.md
// §4.2 index 5, property P5).
func (as *AtomSpace) AtomsByType(t atom.Type, includeSubtypes bool) []atom.Handle {
	as.mu.RLock()
	defer as.mu.RUnlock()

	types := []atom.Type{t}
	if includeSubtypes {
		types = atom.Subtypes(t)
	}

	union := make(map[uint32]struct{})
	for _, ty := range types {
		bm, found := as.ix.typeExact.Get(ty)
		if !found {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			union[it.Next()] = struct{}{}
		}
	}

	out := make([]atom.Handle, 0, len(union))
	for ord := range union {
		out = append(out, as.ix.handleAt(ord))
	}
	return out
}

// Incoming returns every link that references h directly (spec.md §4.2
// index 4, property P3).
func (as *AtomSpace) Incoming(h atom.Handle) []atom.Handle {
	as.mu.RLock()
	defer as.mu.RUnlock()

	ord, ok := as.ix.ordinals[h]
	if !ok {
		return nil
	}
	bm, ok := as.ix.incoming[ord]
	if !ok {
		return nil
	}
	out := make([]atom.Handle, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, as.ix.handleAt(it.Next()))
	}
	return out
}

// Remove deletes h and, if cascade is true, every link transitively
// referencing it, in reverse topological order so closure holds at every
// intermediate step (spec.md §4.2 deletion algorithm, property P4).
func (as *AtomSpace) Remove(ctx context.Context, h atom.Handle, cascade bool) (bool, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if _, ok := as.atoms[h]; !ok {
		return false, nil
	}

	order := as.transitiveRemovalOrderLocked(h, cascade)
	for _, victim := range order {
		as.removeOneLocked(victim)
	}
	return true, nil
}

// transitiveRemovalOrderLocked returns h and (if cascade) every link
// transitively incoming on it, ordered leaves-of-reference first: the
// outermost referencing links are removed before the atoms they reference,
// so at no point does a removed link's outgoing atom disappear first.
func (as *AtomSpace) transitiveRemovalOrderLocked(h atom.Handle, cascade bool) []atom.Handle {
	if !cascade {
		return []atom.Handle{h}
	}

	visited := make(map[atom.Handle]bool)
	var order []atom.Handle

	var visit func(atom.Handle)
	visit = func(cur atom.Handle) {
		if visited[cur] {
			return
		}
		visited[cur] = true
		ord, ok := as.ix.ordinals[cur]
		if ok {
			if bm, ok := as.ix.incoming[ord]; ok {
				it := bm.Iterator()
				for it.HasNext() {
					visit(as.ix.handleAt(it.Next()))
				}
			}
		}
		order = append(order, cur)
	}
	visit(h)

	// The post-order append already lists the outermost referencing links
	// first and h last.
	return order
}

// removeOneLocked removes a single atom and updates every index. Caller
// must hold as.mu and must have already removed everything that
// transitively references this atom.
func (as *AtomSpace) removeOneLocked(h atom.Handle) {
	a, ok := as.atoms[h]
	if !ok {
		return
	}

	ord := as.ix.ordinals[h]
	as.ix.removeFromType(a.Type(), ord)

	if a.Kind() == atom.KindLink {
		outgoing, _ := a.Outgoing()
		for _, o := range outgoing {
			if oOrd, ok := as.ix.ordinals[o]; ok {
				as.ix.removeIncoming(oOrd, ord)
			}
		}
		as.ix.deleteContent(linkContentKey(a.Type(), outgoing))
	} else {
		name, _ := a.Name()
		as.ix.deleteContent(nodeContentKey(a.Type(), name))
	}
	delete(as.ix.incoming, ord)
	delete(as.atoms, h)
	as.generation++
}

// Size returns the number of atoms currently in the store.
func (as *AtomSpace) Size() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return len(as.atoms)
}

// Clear removes every atom and resets every index.
func (as *AtomSpace) Clear() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.atoms = make(map[atom.Handle]*atom.Atom)
	as.ix = newIndexes(as.cfg.ContentCacheSize)
	as.generation++
}

// SetTruthValue replaces an atom's truth value wholesale. It takes the
// writer lock per spec.md §5 even though truth-value replacement does not
// itself touch any secondary index, preserving the spec's stated ordering
// guarantees across mutating operations.
func (as *AtomSpace) SetTruthValue(h atom.Handle, tv atom.TruthValue) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	a, ok := as.atoms[h]
	if !ok {
		return atom.NewError(atom.NotFound, "SetTruthValue", fmt.Errorf("handle %d not found", h))
	}
	a.SetTruthValue(tv)
	as.generation++
	return nil
}
