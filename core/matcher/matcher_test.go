package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
)

func setupInheritanceChain(t *testing.T) (*atomspace.AtomSpace, atom.Handle, atom.Handle, atom.Handle) {
	t.Helper()
	as := atomspace.New(nil)
	ctx := context.Background()

	dog, err := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	require.NoError(t, err)
	mammal, err := as.AddNode(ctx, atom.TypeConceptNode, "mammal")
	require.NoError(t, err)
	animal, err := as.AddNode(ctx, atom.TypeConceptNode, "animal")
	require.NoError(t, err)

	l1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, mammal})
	require.NoError(t, err)
	require.NoError(t, as.SetTruthValue(l1, atom.TruthValue{Strength: 0.9, Confidence: 0.9}))

	l2, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{mammal, animal})
	require.NoError(t, err)
	require.NoError(t, as.SetTruthValue(l2, atom.TruthValue{Strength: 0.85, Confidence: 0.9}))

	return as, dog, mammal, animal
}

func TestMatch_VariableBindingAgainstConcreteLink(t *testing.T) {
	as, dog, mammal, _ := setupInheritanceChain(t)
	ctx := context.Background()

	xVar, err := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	require.NoError(t, err)
	template, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{xVar, mammal})
	require.NoError(t, err)

	m := New(as, 64)
	results, err := m.Match(ctx, template)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dog, results[0].Bindings["x"])
}

func TestMatch_ConfidenceOrdering(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()

	a1, _ := as.AddNode(ctx, atom.TypeConceptNode, "a1")
	b1, _ := as.AddNode(ctx, atom.TypeConceptNode, "b1")
	a2, _ := as.AddNode(ctx, atom.TypeConceptNode, "a2")
	b2, _ := as.AddNode(ctx, atom.TypeConceptNode, "b2")

	strong, _ := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a1, b1})
	require.NoError(t, as.SetTruthValue(strong, atom.TruthValue{Strength: 0.9, Confidence: 0.9}))
	weak, _ := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a2, b2})
	require.NoError(t, as.SetTruthValue(weak, atom.TruthValue{Strength: 0.6, Confidence: 0.3}))

	xVar, _ := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	yVar, _ := as.AddNode(ctx, atom.TypeVariableNode, "$y")
	template, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{xVar, yVar})
	require.NoError(t, err)

	m := New(as, 64)
	results, err := m.Match(ctx, template)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, strong, firstMatchedLink(as, results[0]))
	assert.Greater(t, results[0].Confidence, results[1].Confidence)
}

func firstMatchedLink(as *atomspace.AtomSpace, r Result) atom.Handle {
	x := r.Bindings["x"]
	y := r.Bindings["y"]
	h, _ := as.GetLink(atom.TypeInheritanceLink, []atom.Handle{x, y})
	return h
}

func TestMatch_GroundTemplateOnlyMatchesItself(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()
	a, _ := as.AddNode(ctx, atom.TypeConceptNode, "a")
	b, _ := as.AddNode(ctx, atom.TypeConceptNode, "b")
	c, _ := as.AddNode(ctx, atom.TypeConceptNode, "c")

	template, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, b})
	require.NoError(t, err)
	_, err = as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{b, c})
	require.NoError(t, err)

	m := New(as, 64)
	results, err := m.Match(ctx, template)
	require.NoError(t, err)
	require.Len(t, results, 1, "a ground template only unifies with the structurally-identical atom")
}

func TestMatch_NoCandidatesIsEmptyNotError(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()
	a, _ := as.AddNode(ctx, atom.TypeConceptNode, "a")
	b, _ := as.AddNode(ctx, atom.TypeConceptNode, "b")

	m := New(as, 64)
	xVar, _ := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	template, err := as.AddLink(ctx, atom.TypeSimilarityLink, []atom.Handle{a, xVar})
	require.NoError(t, err)
	_ = b

	results, err := m.Match(ctx, template)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatchConjunction_SharedVariable(t *testing.T) {
	as, dog, mammal, animal := setupInheritanceChain(t)
	ctx := context.Background()

	xVar, _ := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	clause1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, xVar})
	require.NoError(t, err)
	clause2, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{xVar, animal})
	require.NoError(t, err)

	m := New(as, 64)
	results, err := m.MatchConjunction(ctx, []Clause{{Template: clause1}, {Template: clause2}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mammal, results[0].Bindings["x"])
}

func TestParseVariable(t *testing.T) {
	ident, typ, has, ok := ParseVariable("$x")
	assert.True(t, ok)
	assert.Equal(t, "x", ident)
	assert.False(t, has)
	assert.Equal(t, atom.Type(""), typ)

	ident, typ, has, ok = ParseVariable("$x:CONCEPT_NODE")
	assert.True(t, ok)
	assert.Equal(t, "x", ident)
	assert.True(t, has)
	assert.Equal(t, atom.TypeConceptNode, typ)

	_, _, _, ok = ParseVariable("plain")
	assert.False(t, ok)
}
