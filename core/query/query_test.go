package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

func TestParse_TripleAndISA(t *testing.T) {
	q, err := Parse(`SELECT $x WHERE { dog likes $x . $x ISA mammal }`)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, q.Vars)
	require.Len(t, q.Clauses, 2)
	assert.Equal(t, ClauseTriple, q.Clauses[0].Kind)
	assert.Equal(t, ClauseISA, q.Clauses[1].Kind)
	assert.Equal(t, "x", q.Clauses[1].Terms[0].Ident)
	assert.True(t, q.Clauses[1].Terms[0].IsVar)
	assert.Equal(t, "mammal", q.Clauses[1].Terms[1].Ident)
}

func TestParse_TypedVariable(t *testing.T) {
	q, err := Parse(`SELECT $x:CONCEPT_NODE WHERE { $x ISA animal }`)
	require.NoError(t, err)
	require.Len(t, q.Clauses, 1)
	term := q.Clauses[0].Terms[0]
	assert.Equal(t, "x", term.Ident)
	assert.True(t, term.HasRestriction)
	assert.Equal(t, atom.TypeConceptNode, term.Restriction)
}

func TestParse_ReportsPositionOnMalformedQuery(t *testing.T) {
	_, err := Parse(`SELECT $x WHERE $x ISA animal }`)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Greater(t, perr.Pos, 0)
}

func TestExecute_TripleAndISAConjunction(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()

	dog, err := as.AddNode(ctx, atom.TypeConceptNode, "dog")
	require.NoError(t, err)
	bone, err := as.AddNode(ctx, atom.TypeConceptNode, "bone")
	require.NoError(t, err)
	mammal, err := as.AddNode(ctx, atom.TypeConceptNode, "mammal")
	require.NoError(t, err)
	likes, err := as.AddNode(ctx, atom.TypePredicateNode, "likes")
	require.NoError(t, err)

	list, err := as.AddLink(ctx, atom.TypeListLink, []atom.Handle{dog, bone})
	require.NoError(t, err)
	eval, err := as.AddLink(ctx, atom.TypeEvaluationLink, []atom.Handle{likes, list})
	require.NoError(t, err)
	require.NoError(t, as.SetTruthValue(eval, atom.TruthValue{Strength: 1, Confidence: 0.9}))

	inh, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{dog, mammal})
	require.NoError(t, err)
	require.NoError(t, as.SetTruthValue(inh, atom.TruthValue{Strength: 0.9, Confidence: 0.9}))

	m := matcher.New(as, 64)
	results, err := Execute(ctx, as, m, `SELECT $x WHERE { $x likes bone . $x ISA mammal }`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dog, results[0].Bindings["x"])
}

func TestExecute_UnknownTypeRestrictionSuggestsClosestMatch(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()
	m := matcher.New(as, 64)

	_, err := Execute(ctx, as, m, `SELECT $x:CONCEPT_NOD WHERE { $x ISA animal }`)
	require.Error(t, err)
	assert.True(t, atom.Is(err, atom.InvalidArgument))
	assert.Contains(t, err.Error(), "CONCEPT_NODE")
}
