package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogpy/atomspace/core/atom"
)

type fakeGraph struct {
	records []AtomRecord
	loaded  []AtomRecord
}

func (f *fakeGraph) AllAtoms() []AtomRecord { return f.records }

func (f *fakeGraph) ImportAtom(rec AtomRecord) (atom.Handle, error) {
	f.loaded = append(f.loaded, rec)
	return rec.Handle, nil
}

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "atoms.sexpr")

	src := &fakeGraph{records: []AtomRecord{
		{Handle: 1, Kind: atom.KindNode, Type: atom.TypeConceptNode, Name: "dog", Strength: 0.9, Confidence: 0.9},
		{Handle: 2, Kind: atom.KindNode, Type: atom.TypeConceptNode, Name: "mammal", Strength: 0.5, Confidence: 0},
		{Handle: 3, Kind: atom.KindLink, Type: atom.TypeInheritanceLink, Outgoing: []atom.Handle{1, 2}, Strength: 0.9, Confidence: 0.9},
	}}

	backend := NewFileBackend(path)
	require.NoError(t, backend.Open(ctx))
	require.NoError(t, backend.StoreGraph(ctx, src))

	sink := &fakeGraph{}
	fresh := NewFileBackend(path)
	require.NoError(t, fresh.Open(ctx))
	require.NoError(t, fresh.LoadGraph(ctx, sink))

	require.Len(t, sink.loaded, 3)
	// go-cmp with EquateApprox tolerates the float round-trip through the
	// S-expression wire format while still diffing every field at once,
	// rather than a per-field assert.Equal/InDelta pair per record.
	approx := cmpopts.EquateApprox(0, 1e-12)
	for i, rec := range src.records {
		if diff := cmp.Diff(rec, sink.loaded[i], approx); diff != "" {
			t.Errorf("round-tripped record %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestFileBackend_FetchAtom(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "atoms.sexpr")
	backend := NewFileBackend(path)
	require.NoError(t, backend.Open(ctx))

	rec := AtomRecord{Handle: 42, Kind: atom.KindNode, Type: atom.TypeConceptNode, Name: "x", Strength: 0.5, Confidence: 0}
	require.NoError(t, backend.StoreAtom(ctx, rec))

	got, found, err := backend.FetchAtom(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec.Name, got.Name)

	_, found, err = backend.FetchAtom(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, found)
}
