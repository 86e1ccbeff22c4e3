package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
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

func TestBackwardChain_InheritanceChainDeduction(t *testing.T) {
	as, dog, mammal, animal := setupInheritanceChain(t)
	ctx := context.Background()

	m := matcher.New(as, 64)
	ded, err := NewDeductionRule(ctx, as)
	require.NoError(t, err)

	xVar, err := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	require.NoError(t, err)
	goal, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{xVar, animal})
	require.NoError(t, err)

	chainer := NewChainer(as, m, []*Rule{ded}, DefaultBackwardConfig())
	result, err := chainer.BackwardChain(ctx, goal, VariableFulfilment)
	require.NoError(t, err)

	byX := make(map[atom.Handle]Proof, len(result.Proofs))
	for _, p := range result.Proofs {
		byX[p.Binding["x"]] = p
	}

	require.Contains(t, byX, dog, "deduction must derive dog ISA animal")
	require.Contains(t, byX, mammal, "mammal ISA animal is a direct fact")

	dogProof := byX[dog]
	assert.InDelta(t, 0.729, dogProof.TruthValue.Confidence, 1e-9)
}

func TestBackwardChain_UnknownGoalIsInvalidArgument(t *testing.T) {
	as := atomspace.New(nil)
	m := matcher.New(as, 64)
	chainer := NewChainer(as, m, nil, nil)

	_, err := chainer.BackwardChain(context.Background(), atom.Handle(12345), VariableFulfilment)
	require.Error(t, err)
	assert.True(t, atom.Is(err, atom.InvalidArgument))
}

func TestBackwardChain_TimeoutReturnsPartialNotError(t *testing.T) {
	as := atomspace.New(nil)
	ctx := context.Background()

	prev, err := as.AddNode(ctx, atom.TypeConceptNode, "n0")
	require.NoError(t, err)
	for i := 1; i < 200; i++ {
		next, err := as.AddNode(ctx, atom.TypeConceptNode, nodeName(i))
		require.NoError(t, err)
		_, err = as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{prev, next})
		require.NoError(t, err)
		prev = next
	}

	m := matcher.New(as, 64)
	ded, err := NewDeductionRule(ctx, as)
	require.NoError(t, err)

	xVar, err := as.AddNode(ctx, atom.TypeVariableNode, "$x")
	require.NoError(t, err)
	goal, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{xVar, prev})
	require.NoError(t, err)

	chainer := NewChainer(as, m, []*Rule{ded}, &BackwardConfig{MaxDepth: 6, MaxIterations: 1000000, ConfThreshold: 0.2})

	deadlineCtx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()

	result, err := chainer.BackwardChain(deadlineCtx, goal, VariableFulfilment)
	require.NoError(t, err, "timeout must be reported via Status, never an error")
	assert.Equal(t, TimedOut, result.Status)
}

func nodeName(i int) string {
	return fmt.Sprintf("n%d", i)
}

func TestDeductionCombinator_ScenarioOne(t *testing.T) {
	premises := []atom.TruthValue{
		{Strength: 0.9, Confidence: 0.9},
		{Strength: 0.85, Confidence: 0.9},
	}
	tv := DeductionCombinator(premises)
	assert.InDelta(t, 0.729, tv.Confidence, 1e-9)
}

func TestForwardChainer_DerivesDeductionFixpoint(t *testing.T) {
	as, dog, _, animal := setupInheritanceChain(t)
	ctx := context.Background()

	m := matcher.New(as, 64)
	ded, err := NewDeductionRule(ctx, as)
	require.NoError(t, err)

	fc, err := NewForwardChainer(ctx, as, m, []*Rule{ded})
	require.NoError(t, err)
	defer fc.Stop(ctx)

	result, err := fc.Run(ctx, 10)
	require.NoError(t, err)
	assert.True(t, result.Fixpoint)

	h, ok := as.GetLink(atom.TypeInheritanceLink, []atom.Handle{dog, animal})
	require.True(t, ok, "forward chaining must derive dog ISA animal")
	a, ok := as.Get(h)
	require.True(t, ok)
	assert.InDelta(t, 0.729, a.TruthValue().Confidence, 1e-9)
}
