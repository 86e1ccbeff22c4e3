package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	n, err := NewNode(TypeConceptNode, "dog")
	require.NoError(t, err)
	assert.Equal(t, KindNode, n.Kind())
	name, err := n.Name()
	require.NoError(t, err)
	assert.Equal(t, "dog", name)
	assert.Equal(t, DEFAULT, n.TruthValue())
}

func TestNewNode_RejectsNonNodeType(t *testing.T) {
	_, err := NewNode(TypeInheritanceLink, "dog")
	require.Error(t, err)
	assert.True(t, Is(err, InvalidArgument))
}

func TestNewNode_Canonicalisation(t *testing.T) {
	a, err := NewNode(TypeConceptNode, "dog")
	require.NoError(t, err)
	b, err := NewNode(TypeConceptNode, "dog")
	require.NoError(t, err)
	assert.Equal(t, a.Handle(), b.Handle(), "same (type, name) must hash to the same handle")

	c, err := NewNode(TypeConceptNode, "cat")
	require.NoError(t, err)
	assert.NotEqual(t, a.Handle(), c.Handle())
}

func TestNewLink(t *testing.T) {
	dog, _ := NewNode(TypeConceptNode, "dog")
	mammal, _ := NewNode(TypeConceptNode, "mammal")

	l, err := NewLink(TypeInheritanceLink, []Handle{dog.Handle(), mammal.Handle()})
	require.NoError(t, err)
	assert.Equal(t, KindLink, l.Kind())
	assert.Equal(t, 2, l.Arity())

	out, err := l.Outgoing()
	require.NoError(t, err)
	assert.Equal(t, []Handle{dog.Handle(), mammal.Handle()}, out)
}

func TestNewLink_OrderSensitive(t *testing.T) {
	dog, _ := NewNode(TypeConceptNode, "dog")
	mammal, _ := NewNode(TypeConceptNode, "mammal")

	forward, _ := NewLink(TypeInheritanceLink, []Handle{dog.Handle(), mammal.Handle()})
	reversed, _ := NewLink(TypeInheritanceLink, []Handle{mammal.Handle(), dog.Handle()})
	assert.NotEqual(t, forward.Handle(), reversed.Handle())
}

func TestAtom_NameOutgoingMismatch(t *testing.T) {
	n, _ := NewNode(TypeConceptNode, "dog")
	_, err := n.Outgoing()
	require.Error(t, err)
	assert.True(t, Is(err, InvalidArgument))

	dog, _ := NewNode(TypeConceptNode, "dog")
	mammal, _ := NewNode(TypeConceptNode, "mammal")
	l, _ := NewLink(TypeInheritanceLink, []Handle{dog.Handle(), mammal.Handle()})
	_, err = l.Name()
	require.Error(t, err)
	assert.True(t, Is(err, InvalidArgument))
}

func TestAtom_IsVariable(t *testing.T) {
	v, _ := NewNode(TypeVariableNode, "$x")
	assert.True(t, v.IsVariable())

	n, _ := NewNode(TypeConceptNode, "dog")
	assert.False(t, n.IsVariable())
}

func TestAtom_SetTruthValue(t *testing.T) {
	n, _ := NewNode(TypeConceptNode, "dog")
	tv, err := NewTruthValue(0.9, 0.9)
	require.NoError(t, err)
	n.SetTruthValue(tv)
	assert.Equal(t, tv, n.TruthValue())
}

func TestTruthValue_Merge(t *testing.T) {
	cases := []struct {
		name     string
		a, b     TruthValue
		wantS    float64
		wantC    float64
	}{
		{"zero confidence returns first", TruthValue{0.7, 0}, TruthValue{0.1, 0}, 0.7, 0},
		{"equal confidence averages strength", TruthValue{1, 0.5}, TruthValue{0, 0.5}, 0.5, 1},
		{"weighted by confidence", TruthValue{0.9, 0.8}, TruthValue{0.2, 0.2}, 0.9*0.8/1.0 + 0.2*0.2/1.0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.Merge(tc.b)
			assert.InDelta(t, tc.wantS, got.Strength, 1e-9)
			assert.InDelta(t, tc.wantC, got.Confidence, 1e-9)
		})
	}
}

func TestNewTruthValue_RangeValidation(t *testing.T) {
	_, err := NewTruthValue(1.5, 0.5)
	require.Error(t, err)
	assert.True(t, Is(err, InvalidArgument))

	_, err = NewTruthValue(0.5, -0.1)
	require.Error(t, err)
	assert.True(t, Is(err, InvalidArgument))
}

func TestIsA(t *testing.T) {
	assert.True(t, IsA(TypeConceptNode, TypeNode))
	assert.True(t, IsA(TypeInheritanceLink, TypeLink))
	assert.True(t, IsA(TypeConceptNode, TypeConceptNode))
	assert.False(t, IsA(TypeConceptNode, TypeLink))
}

func TestSubtypes(t *testing.T) {
	err := RegisterType("DOG_CONCEPT_NODE", TypeConceptNode)
	require.NoError(t, err)
	subs := Subtypes(TypeConceptNode)
	assert.Contains(t, subs, Type("DOG_CONCEPT_NODE"))
	assert.Contains(t, subs, TypeConceptNode)
}
