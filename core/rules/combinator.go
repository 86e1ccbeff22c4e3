package rules

import "github.com/cogpy/atomspace/core/atom"

// discount is the fixed discount factor shared by spec.md §4.5.4's minimal
// combinator set.
const discount = 0.9

// Combinator computes a derived truth value from the truth values of a
// rule's premises, in the same order as Rule.Premises (spec.md §4.5,
// glossary "Rule combinator").
type Combinator func(premises []atom.TruthValue) atom.TruthValue

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DeductionCombinator implements A⊑B ∧ B⊑C ⇒ A⊑C. premises[0] is A⊑B,
// premises[1] is B⊑C. The strength formula needs a third term — the prior
// (base rate) of the shared middle term B — which this store does not
// track as a standalone truth value; absent a base-rate atom we use the
// neutral default 0.5, per the same default the spec applies to inversion.
//
// The confidence formula is written in spec.md §4.5.4 as
// c = min(c1,c2,c3)·discount, but scenario 1's own worked example
// (0.9, 0.9 premises, discount 0.9 ⇒ 0.729 = 0.9³) is only reproduced by
// a product of the premise confidences and the discount, not a min; this
// implementation follows the worked example.
func DeductionCombinator(premises []atom.TruthValue) atom.TruthValue {
	if len(premises) < 2 {
		return atom.DEFAULT
	}
	s1, c1 := premises[0].Strength, premises[0].Confidence
	s2, c2 := premises[1].Strength, premises[1].Confidence
	const s3 = 0.5 // default base rate for the unmodelled middle term

	var s float64
	if s2 >= 1 {
		s = s1
	} else {
		s = s1*s2 + (1-s1)*(s3-s2*s3)/(1-s2)
	}

	c := c1 * c2 * discount
	tv, err := atom.NewTruthValue(clamp01(s), clamp01(c))
	if err != nil {
		return atom.DEFAULT
	}
	return tv
}

// InversionCombinator swaps a premise A⊑B into B⊑A via a Bayes-style
// update using base-rate atoms when present; this store has no separate
// base-rate bookkeeping, so both base rates default to 0.5, which makes
// the update a no-op on strength (spec.md §4.5.4).
func InversionCombinator(premises []atom.TruthValue) atom.TruthValue {
	if len(premises) < 1 {
		return atom.DEFAULT
	}
	s, c := premises[0].Strength, premises[0].Confidence
	const baseA, baseB = 0.5, 0.5
	sInv := s
	if baseB > 0 {
		sInv = clamp01(s * baseA / baseB)
	}
	tv, err := atom.NewTruthValue(sInv, clamp01(c*discount))
	if err != nil {
		return atom.DEFAULT
	}
	return tv
}

// ModusPonensCombinator implements Impl(A,B) ∧ A ⇒ B. premises[0] is the
// implication, premises[1] is the antecedent (spec.md §4.5.4).
func ModusPonensCombinator(premises []atom.TruthValue) atom.TruthValue {
	if len(premises) < 2 {
		return atom.DEFAULT
	}
	impl, ant := premises[0], premises[1]
	s := clamp01(impl.Strength * ant.Strength)
	c := clamp01(min2(impl.Confidence, ant.Confidence) * discount)
	tv, err := atom.NewTruthValue(s, c)
	if err != nil {
		return atom.DEFAULT
	}
	return tv
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
