// Package rules implements the rule engine (C5): forward chaining over the
// whole store, backward chaining via a Backward Inference Tree, a mixed
// forward/backward strategy selector, and the minimal combinator set
// (spec.md §4.5).
package rules

import (
	"context"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// Rule is a declarative (premise-patterns → conclusion-template) pair with
// an associated confidence combinator (spec.md §4.5). Premises and
// Conclusion are handles of variable-bearing templates already present in
// the owning AtomSpace — every rule "owns" its own variable nodes (named
// e.g. "$ded_a") so that distinct rules never accidentally share a
// variable identity with a caller's goal template.
type Rule struct {
	Name       string
	Premises   []atom.Handle
	Conclusion atom.Handle
	Combinator Combinator
}

// clauses returns the rule's premises as matcher clauses, for conjunctive
// matching against the store.
func (r *Rule) clauses() []matcher.Clause {
	cs := make([]matcher.Clause, len(r.Premises))
	for i, p := range r.Premises {
		cs[i] = matcher.Clause{Template: p}
	}
	return cs
}

// premiseTruthValues instantiates each premise under binding and reads its
// current truth value, in premise order, for use by Combinator.
func (r *Rule) premiseTruthValues(ctx context.Context, as *atomspace.AtomSpace, binding matcher.Binding) ([]atom.TruthValue, error) {
	tvs := make([]atom.TruthValue, len(r.Premises))
	for i, p := range r.Premises {
		h, err := Instantiate(ctx, as, p, binding)
		if err != nil {
			return nil, err
		}
		a, ok := as.Get(h)
		if !ok {
			tvs[i] = atom.DEFAULT
			continue
		}
		tvs[i] = a.TruthValue()
	}
	return tvs, nil
}

// NewDeductionRule builds $ded_a⊑$ded_b ∧ $ded_b⊑$ded_c ⇒ $ded_a⊑$ded_c
// (spec.md §4.5, §4.5.4).
func NewDeductionRule(ctx context.Context, as *atomspace.AtomSpace) (*Rule, error) {
	a, err := as.AddNode(ctx, atom.TypeVariableNode, "$ded_a")
	if err != nil {
		return nil, err
	}
	b, err := as.AddNode(ctx, atom.TypeVariableNode, "$ded_b")
	if err != nil {
		return nil, err
	}
	c, err := as.AddNode(ctx, atom.TypeVariableNode, "$ded_c")
	if err != nil {
		return nil, err
	}
	p1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, b})
	if err != nil {
		return nil, err
	}
	p2, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{b, c})
	if err != nil {
		return nil, err
	}
	concl, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, c})
	if err != nil {
		return nil, err
	}
	return &Rule{
		Name:       "deduction",
		Premises:   []atom.Handle{p1, p2},
		Conclusion: concl,
		Combinator: DeductionCombinator,
	}, nil
}

// NewInversionRule builds $inv_a⊑$inv_b ⇒ $inv_b⊑$inv_a.
func NewInversionRule(ctx context.Context, as *atomspace.AtomSpace) (*Rule, error) {
	a, err := as.AddNode(ctx, atom.TypeVariableNode, "$inv_a")
	if err != nil {
		return nil, err
	}
	b, err := as.AddNode(ctx, atom.TypeVariableNode, "$inv_b")
	if err != nil {
		return nil, err
	}
	p1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, b})
	if err != nil {
		return nil, err
	}
	concl, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{b, a})
	if err != nil {
		return nil, err
	}
	return &Rule{
		Name:       "inversion",
		Premises:   []atom.Handle{p1},
		Conclusion: concl,
		Combinator: InversionCombinator,
	}, nil
}

// NewModusPonensRule builds Impl($mp_a,$mp_b) ∧ $mp_a ⇒ $mp_b, where the
// antecedent premise is represented as EvaluationLink(holds, $mp_a) so
// that it is an ordinary link the matcher can look up a truth value for.
func NewModusPonensRule(ctx context.Context, as *atomspace.AtomSpace) (*Rule, error) {
	a, err := as.AddNode(ctx, atom.TypeVariableNode, "$mp_a")
	if err != nil {
		return nil, err
	}
	b, err := as.AddNode(ctx, atom.TypeVariableNode, "$mp_b")
	if err != nil {
		return nil, err
	}
	holds, err := as.AddNode(ctx, atom.TypePredicateNode, "holds")
	if err != nil {
		return nil, err
	}
	impl, err := as.AddLink(ctx, atom.TypeImplicationLink, []atom.Handle{a, b})
	if err != nil {
		return nil, err
	}
	ant, err := as.AddLink(ctx, atom.TypeEvaluationLink, []atom.Handle{holds, a})
	if err != nil {
		return nil, err
	}
	concl, err := as.AddLink(ctx, atom.TypeEvaluationLink, []atom.Handle{holds, b})
	if err != nil {
		return nil, err
	}
	return &Rule{
		Name:       "modus-ponens",
		Premises:   []atom.Handle{impl, ant},
		Conclusion: concl,
		Combinator: ModusPonensCombinator,
	}, nil
}

// NewInheritanceToSubsetRule builds $subset_a⊑$subset_b ⇒
// Subset($subset_a,$subset_b). Its single-premise combinator passes the
// premise's strength through unchanged and multiplies the premise's
// confidence by the fixed discount.
func NewInheritanceToSubsetRule(ctx context.Context, as *atomspace.AtomSpace) (*Rule, error) {
	a, err := as.AddNode(ctx, atom.TypeVariableNode, "$subset_a")
	if err != nil {
		return nil, err
	}
	b, err := as.AddNode(ctx, atom.TypeVariableNode, "$subset_b")
	if err != nil {
		return nil, err
	}
	p1, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{a, b})
	if err != nil {
		return nil, err
	}
	concl, err := as.AddLink(ctx, atom.TypeSubsetLink, []atom.Handle{a, b})
	if err != nil {
		return nil, err
	}
	return &Rule{
		Name:       "inheritance-to-subset",
		Premises:   []atom.Handle{p1},
		Conclusion: concl,
		Combinator: func(premises []atom.TruthValue) atom.TruthValue {
			if len(premises) < 1 {
				return atom.DEFAULT
			}
			tv, err := atom.NewTruthValue(premises[0].Strength, clamp01(premises[0].Confidence*discount))
			if err != nil {
				return atom.DEFAULT
			}
			return tv
		},
	}, nil
}

// DefaultRules constructs the canonical built-in rule set (spec.md §4.5).
func DefaultRules(ctx context.Context, as *atomspace.AtomSpace) ([]*Rule, error) {
	var out []*Rule
	for _, ctor := range []func(context.Context, *atomspace.AtomSpace) (*Rule, error){
		NewDeductionRule,
		NewInversionRule,
		NewModusPonensRule,
		NewInheritanceToSubsetRule,
	} {
		r, err := ctor(ctx, as)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
