package rules

import (
	"context"
	"fmt"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// Instantiate substitutes binding into the variable-bearing template
// rooted at templateH and canonicalises the result via as.AddLink/AddNode,
// returning the handle of the (possibly still variable-bearing, if binding
// doesn't cover every variable) result. Unbound variables pass through
// unchanged.
//
// Every template used by the rule engine — a rule's premises and
// conclusion, and a BIT node's virtual premises — is itself an ordinary
// store atom (spec.md §9 "variable nodes as ordinary nodes"), so
// Instantiate's recursive substitution can reuse the same AddNode/AddLink
// canonicalisation path as any other insertion instead of a separate
// template-rewriting representation.
func Instantiate(ctx context.Context, as *atomspace.AtomSpace, templateH atom.Handle, binding matcher.Binding) (atom.Handle, error) {
	tmpl, ok := as.Get(templateH)
	if !ok {
		return 0, atom.NewError(atom.InvalidArgument, "Instantiate",
			fmt.Errorf("template handle %d not present in this store", templateH))
	}

	if tmpl.IsVariable() {
		name, _ := tmpl.Name()
		ident, _, _, _ := matcher.ParseVariable(name)
		if h, bound := binding[ident]; bound {
			return h, nil
		}
		return templateH, nil
	}

	if tmpl.Kind() == atom.KindNode {
		return templateH, nil
	}

	outgoing, _ := tmpl.Outgoing()
	resolved := make([]atom.Handle, len(outgoing))
	for i, o := range outgoing {
		h, err := Instantiate(ctx, as, o, binding)
		if err != nil {
			return 0, err
		}
		resolved[i] = h
	}
	return as.AddLink(ctx, tmpl.Type(), resolved)
}

// isGround reports whether h's subtree contains no VARIABLE_NODE.
func isGround(as *atomspace.AtomSpace, h atom.Handle) bool {
	a, ok := as.Get(h)
	if !ok {
		return false
	}
	if a.IsVariable() {
		return false
	}
	if a.Kind() == atom.KindNode {
		return true
	}
	outgoing, _ := a.Outgoing()
	for _, o := range outgoing {
		if !isGround(as, o) {
			return false
		}
	}
	return true
}
