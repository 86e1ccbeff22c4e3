package matcher

import (
	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
)

// Binding maps a variable identifier (without the leading "$") to the
// concrete atom it was bound to.
type Binding map[string]atom.Handle

func (b Binding) clone() Binding {
	cp := make(Binding, len(b))
	for k, v := range b {
		cp[k] = v
	}
	return cp
}

// Unify exposes unify to other core packages (the rule engine's backward
// chainer unifies a rule's conclusion template against a BIT node's goal
// template, which may itself still contain variables).
func Unify(as *atomspace.AtomSpace, templateH, candidateH atom.Handle, env Binding) (Binding, bool, []atom.Handle, error) {
	return unify(as, templateH, candidateH, env)
}

// unify implements the structural unification rules of spec.md §4.4
// against as. It returns the extended binding, whether unification
// succeeded, the set of concrete (non-variable) atoms visited along the
// way (used for confidence computation), and an error only for a
// malformed template (e.g. an outgoing handle absent from the store).
func unify(as *atomspace.AtomSpace, templateH, candidateH atom.Handle, env Binding) (Binding, bool, []atom.Handle, error) {
	tmpl, ok := as.Get(templateH)
	if !ok {
		return nil, false, nil, atom.NewError(atom.InvalidArgument, "unify",
			errMalformedTemplate(templateH))
	}

	if tmpl.IsVariable() {
		name, _ := tmpl.Name()
		ident, restriction, hasRestriction, _ := ParseVariable(name)

		if bound, exists := env[ident]; exists {
			return env, bound == candidateH, nil, nil
		}

		cand, ok := as.Get(candidateH)
		if !ok {
			return env, false, nil, nil
		}
		if hasRestriction && !atom.IsA(cand.Type(), restriction) {
			return env, false, nil, nil
		}

		next := env.clone()
		next[ident] = candidateH
		return next, true, []atom.Handle{candidateH}, nil
	}

	if tmpl.Kind() == atom.KindNode {
		// Nodes are canonicalised by (type, name); structural equality
		// collapses to handle equality within one store.
		if templateH != candidateH {
			return env, false, nil, nil
		}
		return env, true, []atom.Handle{candidateH}, nil
	}

	cand, ok := as.Get(candidateH)
	if !ok || cand.Kind() != atom.KindLink || cand.Type() != tmpl.Type() {
		return env, false, nil, nil
	}

	tOut, _ := tmpl.Outgoing()
	cOut, _ := cand.Outgoing()
	if len(tOut) != len(cOut) {
		return env, false, nil, nil
	}

	cur := env
	matched := []atom.Handle{candidateH}
	for i := range tOut {
		next, ok, m, err := unify(as, tOut[i], cOut[i], cur)
		if err != nil {
			return nil, false, nil, err
		}
		if !ok {
			return env, false, nil, nil
		}
		cur = next
		matched = append(matched, m...)
	}
	return cur, true, matched, nil
}

func errMalformedTemplate(h atom.Handle) error {
	return &templateError{handle: h}
}

type templateError struct{ handle atom.Handle }

func (e *templateError) Error() string {
	return "template references handle not present in this store"
}
