// Package storage defines the abstract persistence contract (spec.md §4.3)
// that the hypergraph store attaches backends through, plus the concrete
// backend implementations. The engine never inspects backend-specific
// formats: every backend here round-trips through AtomRecord, a flat,
// backend-agnostic representation of one atom.
package storage

import (
	"context"

	"github.com/cogpy/atomspace/core/atom"
)

// AtomRecord is the wire-neutral representation of one atom used by every
// StorageNode implementation, so the engine never depends on a backend's
// on-disk or over-the-wire format.
type AtomRecord struct {
	Handle   atom.Handle
	Kind     atom.Kind
	Type     atom.Type
	Name     string
	Outgoing []atom.Handle
	Strength float64
	Confidence float64
}

// GraphSource is implemented by whatever StoreGraph dumps from — in
// practice *atomspace.AtomSpace. Records are yielded closure-first (nodes
// and their dependent links before anything referencing them), so a
// backend can stream a dump without buffering the whole graph.
type GraphSource interface {
	AllAtoms() []AtomRecord
}

// GraphSink is implemented by whatever LoadGraph populates — in practice
// *atomspace.AtomSpace. ImportAtom must be idempotent and canonicalising,
// exactly like AddNode/AddLink, so replaying an already-loaded record is
// harmless.
type GraphSink interface {
	ImportAtom(rec AtomRecord) (atom.Handle, error)
}

// StorageNode is the abstract persistence contract of spec.md §4.3. Every
// concrete backend (file, sqlite, dgraph, supabase, redis-async) implements
// it identically from the engine's point of view.
type StorageNode interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Connected() bool

	StoreAtom(ctx context.Context, rec AtomRecord) error
	FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error)

	StoreGraph(ctx context.Context, src GraphSource) error
	LoadGraph(ctx context.Context, sink GraphSink) error

	Stats(ctx context.Context) (map[string]any, error)
}

// Mode labels a backend attached to an AtomSpace as synchronous (its
// StoreAtom persists before returning) or asynchronous (its StoreAtom
// enqueues and returns quickly; backpressure and degradation are then the
// backend's internal concern — see redis_async.go). In both modes the
// mutating call blocks until every backend's StoreAtom returns.
type Mode int

const (
	Synchronous Mode = iota
	Asynchronous
)
