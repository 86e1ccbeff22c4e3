package atomspace

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/storage"
)

func toRecord(a *atom.Atom) storage.AtomRecord {
	tv := a.TruthValue()
	rec := storage.AtomRecord{
		Handle:     a.Handle(),
		Kind:       a.Kind(),
		Type:       a.Type(),
		Strength:   tv.Strength,
		Confidence: tv.Confidence,
	}
	if a.Kind() == atom.KindNode {
		rec.Name, _ = a.Name()
	} else {
		rec.Outgoing, _ = a.Outgoing()
	}
	return rec
}

// writeThrough fans a just-inserted atom out to every attached backend
// concurrently via errgroup, per the SPEC_FULL.md §4.2 EXPANSION note. A
// forwarding failure never rolls back the in-memory mutation; it is
// reported on the error channel and the backend is marked degraded
// (spec.md §4.2, Open Question ii).
func (as *AtomSpace) writeThrough(ctx context.Context, a *atom.Atom) {
	as.mu.RLock()
	backends := make([]*attachedBackend, len(as.backends))
	copy(backends, as.backends)
	as.mu.RUnlock()

	if len(backends) == 0 {
		return
	}

	rec := toRecord(a)
	wctx := ctx
	var cancel context.CancelFunc
	if as.cfg.WriteThroughTimeout > 0 {
		wctx, cancel = context.WithTimeout(ctx, as.cfg.WriteThroughTimeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, be := range backends {
		be := be
		g.Go(func() error {
			if err := be.node.StoreAtom(wctx, rec); err != nil {
				as.mu.Lock()
				be.degraded = true
				as.mu.Unlock()
				as.reportError(BackendError{Backend: be.name, Op: "StoreAtom", Err: err})
				return nil // degradation is reported, not propagated as a hard failure
			}
			as.mu.Lock()
			be.degraded = false
			as.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// AllAtoms implements storage.GraphSource. Atoms are yielded nodes-first,
// then links, each link after every link in its outgoing set, so a
// streaming backend dump respects closure.
func (as *AtomSpace) AllAtoms() []storage.AtomRecord {
	as.mu.RLock()
	defer as.mu.RUnlock()

	var nodes, links []storage.AtomRecord
	emitted := make(map[atom.Handle]bool, len(as.atoms))
	var emit func(a *atom.Atom)
	emit = func(a *atom.Atom) {
		if emitted[a.Handle()] {
			return
		}
		emitted[a.Handle()] = true
		if a.Kind() == atom.KindNode {
			nodes = append(nodes, toRecord(a))
			return
		}
		outgoing, _ := a.Outgoing()
		for _, o := range outgoing {
			if oa, ok := as.atoms[o]; ok {
				emit(oa)
			}
		}
		links = append(links, toRecord(a))
	}
	for _, a := range as.atoms {
		emit(a)
	}
	return append(nodes, links...)
}

// ImportAtom implements storage.GraphSink, canonicalising exactly like
// AddNode/AddLink so a replayed record is idempotent (P10's round-trip
// property).
func (as *AtomSpace) ImportAtom(rec storage.AtomRecord) (atom.Handle, error) {
	ctx := context.Background()
	if rec.Kind == atom.KindNode {
		h, err := as.AddNode(ctx, rec.Type, rec.Name)
		if err != nil {
			return 0, err
		}
		tv, err := atom.NewTruthValue(rec.Strength, rec.Confidence)
		if err != nil {
			return 0, err
		}
		if err := as.SetTruthValue(h, tv); err != nil {
			return 0, err
		}
		return h, nil
	}
	h, err := as.AddLink(ctx, rec.Type, rec.Outgoing)
	if err != nil {
		return 0, err
	}
	tv, err := atom.NewTruthValue(rec.Strength, rec.Confidence)
	if err != nil {
		return 0, err
	}
	if err := as.SetTruthValue(h, tv); err != nil {
		return 0, err
	}
	return h, nil
}

// FetchOrLoad resolves a handle, consulting attached backends in
// attachment order on a local miss. Concurrent FetchOrLoad calls for the
// same handle are deduplicated via singleflight so a thundering herd of
// readers triggers at most one backend round trip (SPEC_FULL.md §4.2
// EXPANSION note).
func (as *AtomSpace) FetchOrLoad(ctx context.Context, h atom.Handle) (*atom.Atom, error) {
	if a, ok := as.Get(h); ok {
		return a, nil
	}

	key := strconv.FormatUint(uint64(h), 10)
	v, err, _ := as.fetchGroup.Do(key, func() (interface{}, error) {
		if a, ok := as.Get(h); ok {
			return a, nil
		}

		as.mu.RLock()
		backends := make([]*attachedBackend, len(as.backends))
		copy(backends, as.backends)
		as.mu.RUnlock()

		for _, be := range backends {
			rec, found, ferr := be.node.FetchAtom(ctx, h)
			if ferr != nil {
				as.reportError(BackendError{Backend: be.name, Op: "FetchAtom", Err: ferr})
				continue
			}
			if !found {
				continue
			}
			imported, ierr := as.ImportAtom(*rec)
			if ierr != nil {
				return nil, ierr
			}
			a, _ := as.Get(imported)
			return a, nil
		}
		return nil, atom.NewError(atom.NotFound, "FetchOrLoad", nil)
	})
	if err != nil {
		return nil, err
	}
	return v.(*atom.Atom), nil
}
