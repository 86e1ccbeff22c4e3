package atomspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogpy/atomspace/core/atom"
)

func TestAddNode_Canonicalisation(t *testing.T) {
	as := New(nil)
	ctx := context.Background()

	h1, err := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	require.NoError(t, err)
	h2, err := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "P1: add_node(t,n) called twice returns the same handle")
	assert.Equal(t, 1, as.Size())
}

func TestAddLink_Canonicalisation(t *testing.T) {
	as := New(nil)
	ctx := context.Background()

	dog, _ := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	mammal, _ := as.AddNode(ctx, atom.TypeConceptNode, "mammal")

	l1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, mammal})
	require.NoError(t, err)
	l2, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, mammal})
	require.NoError(t, err)

	assert.Equal(t, l1, l2, "P1: add_link(t,L) called twice returns the same handle")
	assert.Equal(t, 3, as.Size())
}

func TestAddLink_UnknownOutgoingFails(t *testing.T) {
	as := New(nil)
	ctx := context.Background()
	_, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{12345})
	require.Error(t, err)
	assert.True(t, atom.Is(err, atom.InvalidArgument))
}

func TestClosureAndIncomingSet(t *testing.T) {
	as := New(nil)
	ctx := context.Background()

	dog, _ := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	mammal, _ := as.AddNode(ctx, atom.TypeConceptNode, "mammal")
	link, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, mammal})
	require.NoError(t, err)

	// P2: closure.
	outAtom, ok := as.Get(dog)
	require.True(t, ok)
	assert.NotNil(t, outAtom)

	// P3: incoming-set consistency.
	incoming := as.Incoming(dog)
	assert.Contains(t, incoming, link)
	incoming = as.Incoming(mammal)
	assert.Contains(t, incoming, link)
}

func TestCascadeDelete(t *testing.T) {
	as := New(nil)
	ctx := context.Background()

	a, _ := as.AddNode(ctx, atom.TypeConceptNode, "A")
	b, _ := as.AddNode(ctx, atom.TypeConceptNode, "B")
	_, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, b})
	require.NoError(t, err)
	require.Equal(t, 3, as.Size())

	ok, err := as.Remove(ctx, a, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, as.Size(), "P4: cascade deletion must leave only B")

	_, found := as.Get(a)
	assert.False(t, found)
}

func TestTypeEnumerationCompleteness(t *testing.T) {
	as := New(nil)
	ctx := context.Background()

	require.NoError(t, atom.RegisterType("DOG_CONCEPT_NODE", atom.TypeConceptNode))
	n1, _ := as.AddNode(ctx, atom.TypeConceptNode, "generic")
	n2, _ := as.AddNode(ctx, "DOG_CONCEPT_NODE", "dog")

	withSubtypes := as.AtomsByType(atom.TypeConceptNode, true)
	assert.Contains(t, withSubtypes, n1)
	assert.Contains(t, withSubtypes, n2)

	exactOnly := as.AtomsByType(atom.TypeConceptNode, false)
	assert.Contains(t, exactOnly, n1)
	assert.NotContains(t, exactOnly, n2)
}

func TestSetTruthValue(t *testing.T) {
	as := New(nil)
	ctx := context.Background()
	h, _ := as.AddNode(ctx, atom.TypeConceptNode, "dog")

	a, _ := as.Get(h)
	assert.Equal(t, atom.DEFAULT, a.TruthValue(), "invariant 4: truth-value non-null default")

	tv := atom.TruthValue{Strength: 0.9, Confidence: 0.9}
	require.NoError(t, as.SetTruthValue(h, tv))
	assert.Equal(t, tv, a.TruthValue())
}

func TestSetTruthValue_NotFound(t *testing.T) {
	as := New(nil)
	err := as.SetTruthValue(99999, atom.DEFAULT)
	require.Error(t, err)
	assert.True(t, atom.Is(err, atom.NotFound))
}

func TestClear(t *testing.T) {
	as := New(nil)
	ctx := context.Background()
	as.AddNode(ctx, atom.TypeConceptNode, "dog")
	as.Clear()
	assert.Equal(t, 0, as.Size())
}
